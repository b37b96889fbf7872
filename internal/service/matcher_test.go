package service

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

type fakeUnmatchedStore struct {
	mu   sync.Mutex
	txns []*model.UnmatchedTransaction
}

func (s *fakeUnmatchedStore) Ingest(trxCode string, amount decimal.Decimal, receivedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.TrxCode == trxCode {
			return false, nil
		}
	}
	s.txns = append(s.txns, &model.UnmatchedTransaction{
		ID:         int64(len(s.txns) + 1),
		TrxCode:    trxCode,
		Amount:     amount,
		ReceivedAt: receivedAt,
	})
	return true, nil
}

func (s *fakeUnmatchedStore) ListUnconsumed(from, to time.Time) ([]*model.UnmatchedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.UnmatchedTransaction
	for _, t := range s.txns {
		if t.ConsumedBy == "" && !t.ReceivedAt.Before(from) && !t.ReceivedAt.After(to) {
			copied := *t
			out = append(out, &copied)
		}
	}
	// received_at ascending, as the repository guarantees
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ReceivedAt.Before(out[j-1].ReceivedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *fakeUnmatchedStore) Consume(id int64, consumer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.ID == id && t.ConsumedBy == "" {
			t.ConsumedBy = consumer
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUnmatchedStore) get(trxCode string) *model.UnmatchedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.TrxCode == trxCode {
			return t
		}
	}
	return nil
}

func newMatcherFixture() (*Matcher, *fakeQRStore, *fakeUnmatchedStore) {
	qrStore := newFakeQRStore()
	txns := &fakeUnmatchedStore{}
	payments := newTestQRService(qrStore, &fakeCodeGenerator{result: &model.QRCodeResult{QRCode: "x"}})
	matcher := NewMatcher(payments, txns, logger.New("ERROR"))
	return matcher, qrStore, txns
}

func pendingPayment(ref string, amount int64, createdAt time.Time) *model.QRPayment {
	return &model.QRPayment{
		Reference: ref,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(30 * time.Minute),
		Status:    model.QRPaymentPending,
	}
}

func TestMatcherResolvesInWindowTransaction(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-10 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	// Amount 1000.00 received ten minutes into the window
	_, err := txns.Ingest("RK61H8I2Q7", decimal.RequireFromString("1000.00"), createdAt.Add(10*time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	p := qrStore.payments["QR-1"]
	require.Equal(t, model.QRPaymentPaid, p.Status)
	require.Equal(t, "RK61H8I2Q7", p.ReceiptNumber)
	require.Equal(t, "RK61H8I2Q7", p.TrxCode)

	txn := txns.get("RK61H8I2Q7")
	require.Equal(t, model.QRConsumedSentinel+"QR-1", txn.ConsumedBy)
}

func TestMatcherIgnoresAmountMismatch(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-5 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	_, err := txns.Ingest("TRXDIFF001", decimal.RequireFromString("999.98"), createdAt.Add(time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 0, matched)
	require.Equal(t, model.QRPaymentPending, qrStore.payments["QR-1"].Status)
}

func TestMatcherToleratesCurrencyEpsilon(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-5 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	_, err := txns.Ingest("TRXNEAR001", decimal.RequireFromString("1000.005"), createdAt.Add(time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 1, matched)
}

func TestMatcherIgnoresOutOfWindowTransaction(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-10 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	// Received before the payment was created
	_, err := txns.Ingest("TRXEARLY01", decimal.NewFromInt(1000), createdAt.Add(-time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 0, matched)
}

func TestMatcherNeverDoubleAssignsAcrossPasses(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-10 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 500, createdAt)
	qrStore.payments["QR-2"] = pendingPayment("QR-2", 500, createdAt.Add(time.Minute))

	// One transaction qualifies for both windows
	_, err := txns.Ingest("TRXSHARED1", decimal.NewFromInt(500), createdAt.Add(5*time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	// Repeated passes must not hand the consumed transaction to the other
	// payment
	for i := 0; i < 3; i++ {
		matched, err = matcher.RunOnce()
		require.NoError(t, err)
		require.Equal(t, 0, matched)
	}

	paid := 0
	for _, p := range qrStore.payments {
		if p.Status == model.QRPaymentPaid {
			paid++
		}
	}
	require.Equal(t, 1, paid)
}

func TestMatcherEarliestReceivedWins(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-20 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	_, err := txns.Ingest("TRXLATE001", decimal.NewFromInt(1000), createdAt.Add(8*time.Minute))
	require.NoError(t, err)
	_, err = txns.Ingest("TRXEARLY02", decimal.NewFromInt(1000), createdAt.Add(3*time.Minute))
	require.NoError(t, err)

	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	require.Equal(t, "TRXEARLY02", qrStore.payments["QR-1"].TrxCode)
	require.Empty(t, txns.get("TRXLATE001").ConsumedBy)
}

func TestMatcherSkipsExactTies(t *testing.T) {
	matcher, qrStore, txns := newMatcherFixture()

	createdAt := time.Now().Add(-20 * time.Minute)
	qrStore.payments["QR-1"] = pendingPayment("QR-1", 1000, createdAt)

	receivedAt := createdAt.Add(5 * time.Minute)
	_, err := txns.Ingest("TRXTIED001", decimal.NewFromInt(1000), receivedAt)
	require.NoError(t, err)
	_, err = txns.Ingest("TRXTIED002", decimal.NewFromInt(1000), receivedAt)
	require.NoError(t, err)

	// An exact tie is flagged for a supervisor, not resolved by guessing
	matched, err := matcher.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 0, matched)
	require.Equal(t, model.QRPaymentPending, qrStore.payments["QR-1"].Status)
	require.Empty(t, txns.get("TRXTIED001").ConsumedBy)
	require.Empty(t, txns.get("TRXTIED002").ConsumedBy)
}
