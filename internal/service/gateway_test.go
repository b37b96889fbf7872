package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mpesa-recon/internal/config"
	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

type staticTokens struct{ token string }

func (s *staticTokens) GetValidToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.GatewayConfig{
		BaseURL:         server.URL,
		Shortcode:       "174379",
		Passkey:         "passkey",
		CallbackURL:     "https://example.test/callback",
		ConfirmationURL: "https://example.test/confirm",
		ValidationURL:   "https://example.test/validate",
		Timeout:         5 * time.Second,
	}
	return NewGatewayClient(&staticTokens{token: "tok"}, cfg, logger.New("ERROR"))
}

func TestInitiateStkPushTruncatesAndSigns(t *testing.T) {
	fixed := time.Date(2024, 10, 12, 14, 30, 0, 0, time.UTC)
	var got model.StkPushRequest

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(model.StkPushResult{
			MerchantRequestID: "m-1",
			CheckoutRequestID: "c-1",
			ResponseCode:      "0",
		})
	})
	g.now = func() time.Time { return fixed }

	result, err := g.InitiateStkPush(context.Background(), "254712345678",
		decimal.NewFromInt(1500), "ACCOUNT-REFERENCE-TOO-LONG", "a description over the limit")
	require.NoError(t, err)
	require.Equal(t, "c-1", result.CheckoutRequestID)
	require.Equal(t, "0", result.ResponseCode)

	require.Equal(t, "ACCOUNT-REFE", got.AccountReference)
	require.Len(t, got.AccountReference, 12)
	require.Equal(t, "a description", got.TransactionDesc)
	require.Len(t, got.TransactionDesc, 13)

	require.Equal(t, "20241012143000", got.Timestamp)
	expected := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20241012143000"))
	require.Equal(t, expected, got.Password)
	require.Equal(t, "1500", got.Amount)
	// No till number configured, so the shortcode is the payee
	require.Equal(t, "174379", got.PartyB)
}

func TestInitiateStkPushShortFieldsUntouched(t *testing.T) {
	var got model.StkPushRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(model.StkPushResult{ResponseCode: "0"})
	})

	_, err := g.InitiateStkPush(context.Background(), "254712345678",
		decimal.NewFromInt(10), "SALE-42", "POS sale")
	require.NoError(t, err)
	require.Equal(t, "SALE-42", got.AccountReference)
	require.Equal(t, "POS sale", got.TransactionDesc)
}

func TestInitiateStkPushPrefersTillNumber(t *testing.T) {
	var got model.StkPushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(model.StkPushResult{ResponseCode: "0"})
	}))
	t.Cleanup(server.Close)

	cfg := &config.GatewayConfig{
		BaseURL:    server.URL,
		Shortcode:  "174379",
		Passkey:    "passkey",
		TillNumber: "555000",
		Timeout:    5 * time.Second,
	}
	g := NewGatewayClient(&staticTokens{token: "tok"}, cfg, logger.New("ERROR"))

	_, err := g.InitiateStkPush(context.Background(), "254712345678",
		decimal.NewFromInt(10), "ref", "desc")
	require.NoError(t, err)
	require.Equal(t, "555000", got.PartyB)
}

func TestInitiateStkPushSurfacesGatewayRefusal(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"invalid shortcode"}`, http.StatusForbidden)
	})

	_, err := g.InitiateStkPush(context.Background(), "254712345678",
		decimal.NewFromInt(10), "ref", "desc")

	var pushErr *model.PushInitiationError
	require.ErrorAs(t, err, &pushErr)
	require.Equal(t, http.StatusForbidden, pushErr.StatusCode)
	require.Contains(t, pushErr.Body, "invalid shortcode")
}

func TestQueryStatusReturnsPayloadVerbatim(t *testing.T) {
	payload := `{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req model.StkQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "c-9", req.CheckoutRequestID)
		require.NotEmpty(t, req.Password)
		w.Write([]byte(payload))
	})

	raw, err := g.QueryStatus(context.Background(), "c-9")
	require.NoError(t, err)
	require.JSONEq(t, payload, string(raw))
}

func TestGenerateQRCodeReturnsImagePayload(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req model.QRCodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "My Shop", req.MerchantName)
		require.Equal(t, "QR-1", req.RefNo)
		json.NewEncoder(w).Encode(model.QRCodeResult{ResponseCode: "00", QRCode: "aW1hZ2U="})
	})

	result, err := g.GenerateQRCode(context.Background(), "My Shop", "QR-1",
		decimal.NewFromInt(250), "BG", "300")
	require.NoError(t, err)
	require.Equal(t, "aW1hZ2U=", result.QRCode)
}

func TestRegisterCallbackURLsIdempotent(t *testing.T) {
	calls := 0
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req model.RegisterURLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Completed", req.ResponseType)
		json.NewEncoder(w).Encode(map[string]string{"ResponseDescription": "success"})
	})

	require.NoError(t, g.RegisterCallbackURLs(context.Background()))
	require.NoError(t, g.RegisterCallbackURLs(context.Background()))
	require.Equal(t, 2, calls)
}
