package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"mpesa-recon/internal/config"
	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

// QRPaymentStore persists QR payments
type QRPaymentStore interface {
	Create(p *model.QRPayment) error
	GetByReference(reference string) (*model.QRPayment, error)
	MarkPaid(reference, receiptNumber, trxCode string, paidAt time.Time) (bool, error)
	LinkSale(reference, saleID string) (bool, error)
	ExpireStale(now time.Time) (int64, error)
	ListPending(now time.Time) ([]*model.QRPayment, error)
}

// CodeGenerator produces a scannable payment code for a reference
type CodeGenerator interface {
	GenerateQRCode(ctx context.Context, merchantName, refNo string, amount decimal.Decimal, trxCode, size string) (*model.QRCodeResult, error)
}

// CreatedQRPayment is the result of minting a payment code
type CreatedQRPayment struct {
	Payment *model.QRPayment `json:"payment"`
	// Code is a base64-encoded scannable image payload
	Code string `json:"code"`
	// CodeSource is "gateway" or "local" depending on where the payload
	// was rendered
	CodeSource string `json:"code_source"`
}

// QRPaymentService manages the QR payment lifecycle
type QRPaymentService struct {
	store               QRPaymentStore
	codes               CodeGenerator
	merchantName        string
	ttl                 time.Duration
	allowLinkBeforePaid bool
	logger              *logger.Logger

	now func() time.Time
}

// NewQRPaymentService creates a new QR payment service
func NewQRPaymentService(store QRPaymentStore, codes CodeGenerator, gatewayCfg *config.GatewayConfig, paymentsCfg *config.PaymentsConfig, log *logger.Logger) *QRPaymentService {
	return &QRPaymentService{
		store:               store,
		codes:               codes,
		merchantName:        gatewayCfg.MerchantName,
		ttl:                 paymentsCfg.QRPaymentTTL,
		allowLinkBeforePaid: paymentsCfg.AllowLinkBeforePaid,
		logger:              log,
		now:                 time.Now,
	}
}

// Create mints a new pending QR payment and its scannable code. When the
// gateway cannot render the code the reference is rendered locally so the
// cashier flow does not abort.
func (s *QRPaymentService) Create(ctx context.Context, amount decimal.Decimal, phone, name, description, createdBy string) (*CreatedQRPayment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}

	now := s.now()
	payment := &model.QRPayment{
		Reference:     s.newReference(now),
		Amount:        amount,
		CustomerPhone: phone,
		CustomerName:  name,
		Description:   description,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Status:        model.QRPaymentPending,
	}

	if err := s.store.Create(payment); err != nil {
		return nil, fmt.Errorf("failed to persist qr payment: %w", err)
	}

	code, source := s.renderCode(ctx, payment)

	s.logger.WithReference(payment.Reference).Info("QR payment created",
		"amount", amount.String(),
		"expires_at", payment.ExpiresAt.Format(time.RFC3339),
		"code_source", source,
	)

	return &CreatedQRPayment{
		Payment:    payment,
		Code:       code,
		CodeSource: source,
	}, nil
}

// renderCode asks the gateway for a code payload, rendering locally on failure
func (s *QRPaymentService) renderCode(ctx context.Context, payment *model.QRPayment) (string, string) {
	result, err := s.codes.GenerateQRCode(ctx, s.merchantName, payment.Reference, payment.Amount, "BG", "300")
	if err == nil && result.QRCode != "" {
		return result.QRCode, "gateway"
	}
	if err != nil {
		s.logger.WithReference(payment.Reference).Warn("Gateway QR generation failed, rendering locally", "error", err)
	}

	png, err := qrcode.Encode(payment.Reference, qrcode.Medium, 300)
	if err != nil {
		s.logger.WithReference(payment.Reference).Error("Local QR rendering failed", "error", err)
		return "", "none"
	}
	return base64.StdEncoding.EncodeToString(png), "local"
}

// MarkPaid completes a pending payment exactly once. Returns false when the
// reference is unknown or already resolved; a duplicate redemption is logged
// and swallowed since it is expected under races.
func (s *QRPaymentService) MarkPaid(reference, receiptNumber, trxCode string) (bool, error) {
	ok, err := s.store.MarkPaid(reference, receiptNumber, trxCode, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	if ok {
		s.logger.WithReference(reference).Info("QR payment paid",
			"receipt_number", receiptNumber,
			"trx_code", trxCode,
		)
		return true, nil
	}

	existing, err := s.store.GetByReference(reference)
	if err != nil {
		return false, err
	}
	if existing == nil {
		s.logger.WithReference(reference).Warn("MarkPaid on unknown reference")
	} else {
		s.logger.WithReference(reference).Warn("Duplicate redemption rejected",
			"status", existing.Status,
			"trx_code", trxCode,
		)
	}
	return false, nil
}

// LinkToSale records the sale association. Unless the reserve-before-pay
// policy flag is on, the payment must already be Paid.
func (s *QRPaymentService) LinkToSale(reference, saleID string) error {
	payment, err := s.store.GetByReference(reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return model.ErrNotFound
	}
	if !s.allowLinkBeforePaid && payment.Status != model.QRPaymentPaid {
		return model.ErrNotPaid
	}

	ok, err := s.store.LinkSale(reference, saleID)
	if err != nil {
		return fmt.Errorf("failed to link sale: %w", err)
	}
	if !ok {
		return model.ErrNotFound
	}

	s.logger.WithReference(reference).Info("QR payment linked to sale", "sale_id", saleID)
	return nil
}

// Get fetches one payment for UI polling of the waiting state
func (s *QRPaymentService) Get(reference string) (*model.QRPayment, error) {
	payment, err := s.store.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, model.ErrNotFound
	}
	return payment, nil
}

// ListPending returns payments still awaiting confirmation
func (s *QRPaymentService) ListPending() ([]*model.QRPayment, error) {
	return s.store.ListPending(s.now())
}

// ExpireStale transitions overdue pending payments to Expired
func (s *QRPaymentService) ExpireStale() (int64, error) {
	return s.store.ExpireStale(s.now())
}

// StartExpirySweep runs ExpireStale on a ticker until the returned stop
// function is called.
func (s *QRPaymentService) StartExpirySweep(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				count, err := s.ExpireStale()
				if err != nil {
					s.logger.Error("Failed to expire stale qr payments", "error", err)
				} else if count > 0 {
					s.logger.Info("Expired stale qr payments", "count", count)
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}

// newReference builds a reference with a human-readable timestamp and a
// uuid-derived suffix. The store's UNIQUE constraint is the hard guard.
func (s *QRPaymentService) newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("QR-%s-%s", now.Format("20060102150405"), suffix)
}
