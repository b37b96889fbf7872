package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mpesa-recon/internal/config"
	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

const minPlausibleTokenLength = 20

// TokenStore persists gateway access tokens
type TokenStore interface {
	Active() (*model.AccessToken, error)
	ReplaceActive(tok *model.AccessToken) error
	Deactivate(id int64) error
}

// TokenCache caches the gateway access credential, refreshing it through a
// single-flight guard. Reads are lock-free; only the refresh path serializes.
type TokenCache struct {
	store      TokenStore
	httpClient *http.Client
	config     *config.GatewayConfig
	buffer     time.Duration
	logger     *logger.Logger

	refreshMu sync.Mutex

	now func() time.Time
}

// NewTokenCache creates a new token cache
func NewTokenCache(store TokenStore, cfg *config.GatewayConfig, buffer time.Duration, log *logger.Logger) *TokenCache {
	return &TokenCache{
		store: store,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		buffer: buffer,
		logger: log,
		now:    time.Now,
	}
}

// GetValidToken returns the current access token, refreshing it from the
// gateway when the cached one is missing, implausible, or inside the expiry
// buffer.
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	tok, err := c.store.Active()
	if err != nil {
		return "", fmt.Errorf("failed to load active token: %w", err)
	}
	if c.usable(tok) {
		return tok.Token, nil
	}

	// Single-flight: two requests missing the cache at once must not both
	// hit the gateway and persist competing tokens.
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	tok, err = c.store.Active()
	if err != nil {
		return "", fmt.Errorf("failed to load active token: %w", err)
	}
	if c.usable(tok) {
		return tok.Token, nil
	}

	// Retire the stale or implausible token before fetching a new one so
	// the audit trail shows when it left service.
	if tok != nil {
		if err := c.store.Deactivate(tok.ID); err != nil {
			return "", fmt.Errorf("failed to deactivate stale token: %w", err)
		}
	}

	fresh, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}

	if err := c.store.ReplaceActive(fresh); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	c.logger.Info("Gateway token refreshed", "expires_at", fresh.ExpiresAt.Format(time.RFC3339))

	return fresh.Token, nil
}

// usable reports whether a cached token can still be sent to the gateway
func (c *TokenCache) usable(tok *model.AccessToken) bool {
	if tok == nil || tok.Status != model.TokenActive {
		return false
	}
	if len(tok.Token) <= minPlausibleTokenLength {
		return false
	}
	return tok.ExpiresAt.After(c.now().Add(c.buffer))
}

// refresh requests a new token from the gateway using HTTP Basic auth
func (c *TokenCache) refresh(ctx context.Context) (*model.AccessToken, error) {
	url := c.config.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString(
		[]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &model.GatewayTimeoutError{Op: "token request", Err: err}
		}
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &model.GatewayAuthError{Body: string(body)}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &model.GatewayConfigError{Body: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &model.GatewayRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload model.TokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if len(payload.AccessToken) <= minPlausibleTokenLength {
		return nil, &model.GatewayRequestError{StatusCode: resp.StatusCode, Body: "implausible access token in response"}
	}

	// Lifetime arrives as text
	lifetime, err := strconv.Atoi(payload.ExpiresIn)
	if err != nil || lifetime <= 0 {
		return nil, fmt.Errorf("invalid token lifetime %q", payload.ExpiresIn)
	}

	now := c.now()
	return &model.AccessToken{
		Token:     payload.AccessToken,
		TokenType: "Bearer",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(lifetime) * time.Second),
		Status:    model.TokenActive,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
