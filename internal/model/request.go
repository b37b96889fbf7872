package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PushRequestBody is the request body for initiating an STK push
type PushRequestBody struct {
	Phone       string          `json:"phone"`
	Amount      decimal.Decimal `json:"amount"`
	AccountRef  string          `json:"account_ref"`
	Description string          `json:"description"`
}

// CreateQRRequest is the request body for minting a QR payment
type CreateQRRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedBy     string          `json:"created_by"`
}

// MarkPaidRequest is the request body for completing a QR payment on
// gateway confirmation
type MarkPaidRequest struct {
	ReceiptNumber string `json:"receipt_number"`
	TrxCode       string `json:"trx_code"`
}

// LinkSaleRequest is the request body for attaching a sale
type LinkSaleRequest struct {
	SaleID string `json:"sale_id"`
}

// ManualSubmitRequest is the request body for submitting a transcribed
// confirmation
type ManualSubmitRequest struct {
	RawText   string `json:"raw_text"`
	EnteredBy string `json:"entered_by"`
}

// VerifyRequest is the request body for the supervisor decision
type VerifyRequest struct {
	Accept bool   `json:"accept"`
	Notes  string `json:"notes,omitempty"`
}

// UnmatchedIngestRequest is the deposit body used by the callback-ingestion
// collaborator
type UnmatchedIngestRequest struct {
	TrxCode    string          `json:"trx_code"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt time.Time       `json:"received_at"`
}
