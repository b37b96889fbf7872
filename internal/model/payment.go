package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QRPaymentStatus is the lifecycle state of a QR payment request
type QRPaymentStatus string

const (
	QRPaymentPending QRPaymentStatus = "PENDING"
	QRPaymentPaid    QRPaymentStatus = "PAID"
	QRPaymentExpired QRPaymentStatus = "EXPIRED"
)

// ManualEntryStatus is the lifecycle state of a transcribed confirmation
type ManualEntryStatus string

const (
	ManualEntryPending  ManualEntryStatus = "PENDING"
	ManualEntryVerified ManualEntryStatus = "VERIFIED"
	ManualEntryInvalid  ManualEntryStatus = "INVALID"
	ManualEntryLinked   ManualEntryStatus = "LINKED"
)

// TokenStatus is the lifecycle state of a gateway access token
type TokenStatus string

const (
	TokenActive     TokenStatus = "ACTIVE"
	TokenSuperseded TokenStatus = "SUPERSEDED"
)

// QRConsumedSentinel marks an unmatched transaction consumed by a QR match
// that carries no sale, prefixed to the QR reference.
const QRConsumedSentinel = "QR:"

// AccessToken is a persisted gateway credential. Superseded tokens are kept
// as an audit trail, never deleted.
type AccessToken struct {
	ID        int64       `json:"id"`
	Token     string      `json:"-"`
	TokenType string      `json:"token_type"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	Status    TokenStatus `json:"status"`
}

// QRPayment is a short-lived, amount-bound payment request awaiting
// confirmation through any channel.
type QRPayment struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Status        QRPaymentStatus `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	TrxCode       string          `json:"trx_code,omitempty"`
	SaleID        string          `json:"sale_id,omitempty"`
}

// ManualEntry is a cashier-transcribed confirmation awaiting supervisor
// verification before it can be linked to a sale.
type ManualEntry struct {
	ID              string            `json:"id"`
	RawText         string            `json:"raw_text"`
	TrxCode         string            `json:"trx_code"`
	Amount          decimal.Decimal   `json:"amount"`
	SenderPhone     string            `json:"sender_phone"`
	SenderName      string            `json:"sender_name"`
	TrxDate         time.Time         `json:"trx_date"`
	EnteredBy       string            `json:"entered_by"`
	CreatedAt       time.Time         `json:"created_at"`
	Verified        bool              `json:"verified"`
	VerifiedAt      *time.Time        `json:"verified_at,omitempty"`
	Status          ManualEntryStatus `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	SaleID          string            `json:"sale_id,omitempty"`
	ParseConfidence float64           `json:"parse_confidence"`
	DefaultedFields []string          `json:"defaulted_fields,omitempty"`
}

// UnmatchedTransaction is a gateway-confirmed payment not tied to any
// explicit push/QR session at receipt time. ConsumedBy is empty until the
// matcher (or a sale) claims it, exactly once.
type UnmatchedTransaction struct {
	ID         int64           `json:"id"`
	TrxCode    string          `json:"trx_code"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt time.Time       `json:"received_at"`
	ConsumedBy string          `json:"consumed_by,omitempty"`
}
