package model

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an unknown QR reference or manual entry ID
var ErrNotFound = errors.New("not found")

// ErrDuplicateRedemption marks an attempt to re-complete an already-resolved
// QR payment. Expected under races; logged, never fatal.
var ErrDuplicateRedemption = errors.New("payment already resolved")

// ErrNotPaid marks a sale-link attempt on a QR payment that has not been
// confirmed, rejected while the reserve-before-pay policy flag is off.
var ErrNotPaid = errors.New("payment not yet confirmed")

// ErrNotVerified marks a sale-link attempt on a manual entry that has not
// passed supervisor verification.
var ErrNotVerified = errors.New("entry not verified")

// GatewayAuthError indicates rejected gateway credentials (HTTP 401)
type GatewayAuthError struct {
	Body string
}

func (e *GatewayAuthError) Error() string {
	return fmt.Sprintf("gateway rejected credentials: %s", e.Body)
}

// GatewayConfigError indicates a malformed request the gateway refused,
// typically a wrong shortcode or passkey (HTTP 400)
type GatewayConfigError struct {
	Body string
}

func (e *GatewayConfigError) Error() string {
	return fmt.Sprintf("gateway rejected request as malformed: %s", e.Body)
}

// GatewayTimeoutError indicates the gateway did not answer within the
// configured deadline. The outcome of the submitted request is unknown;
// callers must poll or await a callback rather than retry blindly.
type GatewayTimeoutError struct {
	Op  string
	Err error
}

func (e *GatewayTimeoutError) Error() string {
	return fmt.Sprintf("gateway %s timed out: %v", e.Op, e.Err)
}

func (e *GatewayTimeoutError) Unwrap() error {
	return e.Err
}

// GatewayRequestError surfaces any other non-successful gateway response,
// carrying status and body for diagnostics
type GatewayRequestError struct {
	StatusCode int
	Body       string
}

func (e *GatewayRequestError) Error() string {
	return fmt.Sprintf("gateway request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// PushInitiationError indicates the push endpoint refused the initiation
type PushInitiationError struct {
	StatusCode int
	Body       string
}

func (e *PushInitiationError) Error() string {
	return fmt.Sprintf("push initiation failed: status=%d body=%s", e.StatusCode, e.Body)
}
