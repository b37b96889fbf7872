package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-recon/internal/config"
	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

// Hard gateway limits on free-text fields, enforced client-side before send
const (
	maxAccountRefLength  = 12
	maxDescriptionLength = 13
)

// TokenProvider supplies a valid gateway access token
type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

// GatewayClient builds signed requests and calls the external payment gateway
type GatewayClient struct {
	httpClient *http.Client
	tokens     TokenProvider
	config     *config.GatewayConfig
	logger     *logger.Logger

	now func() time.Time
}

// NewGatewayClient creates a new payment gateway client
func NewGatewayClient(tokens TokenProvider, cfg *config.GatewayConfig, log *logger.Logger) *GatewayClient {
	return &GatewayClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens: tokens,
		config: cfg,
		logger: log,
		now:    time.Now,
	}
}

// InitiateStkPush asks the gateway to prompt the customer's phone for a
// payment. The returned identifiers and response code are passed through
// verbatim; interpreting them is the caller's concern. No retry on timeout:
// the outcome is unknown and retrying risks a duplicate charge.
func (g *GatewayClient) InitiateStkPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, description string) (*model.StkPushResult, error) {
	timestamp := g.now().Format("20060102150405")

	payload := &model.StkPushRequest{
		BusinessShortCode: g.config.Shortcode,
		Password:          g.derivePassword(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerBuyGoodsOnline",
		Amount:            amount.String(),
		PartyA:            phone,
		PartyB:            g.payee(),
		PhoneNumber:       phone,
		CallBackURL:       g.config.CallbackURL,
		AccountReference:  truncate(accountRef, maxAccountRefLength),
		TransactionDesc:   truncate(description, maxDescriptionLength),
	}

	status, body, err := g.doRequest(ctx, "/mpesa/stkpush/v1/processrequest", payload, "push")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &model.PushInitiationError{StatusCode: status, Body: string(body)}
	}

	var result model.StkPushResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	g.logger.Info("STK push initiated",
		"checkout_request_id", result.CheckoutRequestID,
		"response_code", result.ResponseCode,
	)

	return &result, nil
}

// QueryStatus asks the gateway for the outcome of a push attempt and returns
// the payload unmodified.
func (g *GatewayClient) QueryStatus(ctx context.Context, checkoutRequestID string) (json.RawMessage, error) {
	timestamp := g.now().Format("20060102150405")

	payload := &model.StkQueryRequest{
		BusinessShortCode: g.config.Shortcode,
		Password:          g.derivePassword(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	status, body, err := g.doRequest(ctx, "/mpesa/stkpushquery/v1/query", payload, "status query")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &model.GatewayRequestError{StatusCode: status, Body: string(body)}
	}

	return json.RawMessage(body), nil
}

// GenerateQRCode asks the gateway for a scannable payment code
func (g *GatewayClient) GenerateQRCode(ctx context.Context, merchantName, refNo string, amount decimal.Decimal, trxCode, size string) (*model.QRCodeResult, error) {
	payload := &model.QRCodeRequest{
		MerchantName: merchantName,
		RefNo:        refNo,
		Amount:       amount.String(),
		TrxCode:      trxCode,
		CPI:          g.payee(),
		Size:         size,
	}

	status, body, err := g.doRequest(ctx, "/mpesa/qrcode/v1/generate", payload, "qr generation")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &model.GatewayRequestError{StatusCode: status, Body: string(body)}
	}

	var result model.QRCodeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode qr response: %w", err)
	}

	return &result, nil
}

// RegisterCallbackURLs registers the confirmation and validation endpoints
// with the gateway. Idempotent, safe to call on every startup.
func (g *GatewayClient) RegisterCallbackURLs(ctx context.Context) error {
	payload := &model.RegisterURLRequest{
		ShortCode:       g.config.Shortcode,
		ResponseType:    "Completed",
		ConfirmationURL: g.config.ConfirmationURL,
		ValidationURL:   g.config.ValidationURL,
	}

	status, body, err := g.doRequest(ctx, "/mpesa/c2b/v1/registerurl", payload, "url registration")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &model.GatewayRequestError{StatusCode: status, Body: string(body)}
	}

	g.logger.Info("Callback URLs registered",
		"confirmation_url", g.config.ConfirmationURL,
		"validation_url", g.config.ValidationURL,
	)

	return nil
}

// derivePassword computes base64(shortcode + passkey + timestamp)
func (g *GatewayClient) derivePassword(timestamp string) string {
	return base64.StdEncoding.EncodeToString(
		[]byte(g.config.Shortcode + g.config.Passkey + timestamp))
}

// payee returns the configured till number, falling back to the shortcode
func (g *GatewayClient) payee() string {
	if g.config.TillNumber != "" {
		return g.config.TillNumber
	}
	return g.config.Shortcode
}

// doRequest performs an authenticated POST against the gateway
func (g *GatewayClient) doRequest(ctx context.Context, path string, payload interface{}, op string) (int, []byte, error) {
	token, err := g.tokens.GetValidToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, &model.GatewayTimeoutError{Op: op, Err: err}
		}
		return 0, nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	return resp.StatusCode, body, nil
}

// truncate cuts s to at most n bytes
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
