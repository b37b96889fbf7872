package service

import (
	"time"

	"github.com/shopspring/decimal"

	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

// UnmatchedStore holds gateway-confirmed transactions awaiting a match
type UnmatchedStore interface {
	Ingest(trxCode string, amount decimal.Decimal, receivedAt time.Time) (bool, error)
	ListUnconsumed(from, to time.Time) ([]*model.UnmatchedTransaction, error)
	Consume(id int64, consumer string) (bool, error)
}

// PaymentCompleter resolves a pending QR payment
type PaymentCompleter interface {
	ListPending() ([]*model.QRPayment, error)
	MarkPaid(reference, receiptNumber, trxCode string) (bool, error)
}

// amountEpsilon is the currency tolerance for amount equality
var amountEpsilon = decimal.NewFromFloat(0.01)

// Matcher reconciles unclaimed confirmed transactions against pending QR
// payments. A transaction is consumed at most once; a payment is completed
// at most once; both guards are compare-and-swaps in the stores.
type Matcher struct {
	payments PaymentCompleter
	txns     UnmatchedStore
	logger   *logger.Logger
}

// NewMatcher creates a new reconciliation matcher
func NewMatcher(payments PaymentCompleter, txns UnmatchedStore, log *logger.Logger) *Matcher {
	return &Matcher{
		payments: payments,
		txns:     txns,
		logger:   log,
	}
}

// RunOnce performs one reconciliation pass and returns how many payments it
// resolved. A failure on one candidate pair is logged and skipped; it never
// halts the sweep for the remaining payments.
func (m *Matcher) RunOnce() (int, error) {
	pending, err := m.payments.ListPending()
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, payment := range pending {
		if m.matchOne(payment) {
			matched++
		}
	}

	if matched > 0 {
		m.logger.Info("Reconciliation pass completed", "matched", matched, "pending", len(pending))
	}
	return matched, nil
}

// matchOne tries to resolve a single pending payment
func (m *Matcher) matchOne(payment *model.QRPayment) bool {
	log := m.logger.WithReference(payment.Reference)

	candidates, err := m.txns.ListUnconsumed(payment.CreatedAt, payment.ExpiresAt)
	if err != nil {
		log.Error("Failed to load candidate transactions", "error", err)
		return false
	}

	var qualifying []*model.UnmatchedTransaction
	for _, txn := range candidates {
		if txn.Amount.Sub(payment.Amount).Abs().LessThan(amountEpsilon) {
			qualifying = append(qualifying, txn)
		}
	}
	if len(qualifying) == 0 {
		return false
	}

	// Earliest receivedAt wins. An exact tie between the two earliest
	// candidates cannot be resolved mechanically; leave the payment for a
	// supervisor instead of guessing.
	winner := qualifying[0]
	if len(qualifying) > 1 && qualifying[1].ReceivedAt.Equal(winner.ReceivedAt) {
		log.Warn("Ambiguous reconciliation candidates, skipping",
			"trx_code_a", winner.TrxCode,
			"trx_code_b", qualifying[1].TrxCode,
			"received_at", winner.ReceivedAt.Format(time.RFC3339),
		)
		return false
	}

	// Claim the transaction first: once consumed it can never be assigned
	// to another payment, even if marking this payment fails.
	consumed, err := m.txns.Consume(winner.ID, model.QRConsumedSentinel+payment.Reference)
	if err != nil {
		log.WithTrxCode(winner.TrxCode).Error("Failed to consume transaction", "error", err)
		return false
	}
	if !consumed {
		// A concurrent pass claimed it; the payment stays pending for
		// the next sweep.
		return false
	}

	ok, err := m.payments.MarkPaid(payment.Reference, winner.TrxCode, winner.TrxCode)
	if err != nil {
		log.WithTrxCode(winner.TrxCode).Error("Failed to mark payment paid after consuming transaction", "error", err)
		return false
	}
	if !ok {
		// The payment resolved through another channel while we held the
		// transaction. The consumption stands as an audit record.
		log.WithTrxCode(winner.TrxCode).Warn("Payment resolved elsewhere, transaction consumed without effect")
		return false
	}

	log.WithTrxCode(winner.TrxCode).Info("Unmatched transaction reconciled",
		"amount", winner.Amount.String(),
	)
	return true
}

// StartSweep runs RunOnce on a ticker until the returned stop function is
// called.
func (m *Matcher) StartSweep(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := m.RunOnce(); err != nil {
					m.logger.Error("Reconciliation pass failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}
