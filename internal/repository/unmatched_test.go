package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mpesa-recon/internal/model"
)

func newTestUnmatchedRepo(t *testing.T) *UnmatchedRepository {
	t.Helper()
	repo, err := NewUnmatchedRepository(newTestDB(t))
	require.NoError(t, err)
	return repo
}

func TestIngestDeduplicatesOnTrxCode(t *testing.T) {
	repo := newTestUnmatchedRepo(t)
	now := time.Now().UTC()

	inserted, err := repo.Ingest("RK61H8I2Q7", decimal.NewFromInt(500), now)
	require.NoError(t, err)
	require.True(t, inserted)

	// Callback redelivery must not create a second row
	inserted, err = repo.Ingest("RK61H8I2Q7", decimal.NewFromInt(500), now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, inserted)

	txns, err := repo.ListUnconsumed(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, now.Truncate(time.Second), txns[0].ReceivedAt.UTC().Truncate(time.Second))
}

func TestConsumeIsCompareAndSwap(t *testing.T) {
	repo := newTestUnmatchedRepo(t)
	now := time.Now().UTC()

	_, err := repo.Ingest("RK61H8I2Q7", decimal.NewFromInt(500), now)
	require.NoError(t, err)

	txns, err := repo.ListUnconsumed(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	id := txns[0].ID

	ok, err := repo.Consume(id, model.QRConsumedSentinel+"QR-1")
	require.NoError(t, err)
	require.True(t, ok)

	// A second consumer loses the swap
	ok, err = repo.Consume(id, "sale-2")
	require.NoError(t, err)
	require.False(t, ok)

	// Consumed rows are gone from the candidate list
	txns, err = repo.ListUnconsumed(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestListUnconsumedWindowAndOrder(t *testing.T) {
	repo := newTestUnmatchedRepo(t)
	base := time.Now().UTC().Truncate(time.Second)

	_, err := repo.Ingest("TRXLATE001", decimal.NewFromInt(100), base.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = repo.Ingest("TRXEARLY01", decimal.NewFromInt(100), base.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = repo.Ingest("TRXOUTSIDE", decimal.NewFromInt(100), base.Add(45*time.Minute))
	require.NoError(t, err)

	txns, err := repo.ListUnconsumed(base, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, "TRXEARLY01", txns[0].TrxCode)
	require.Equal(t, "TRXLATE001", txns[1].TrxCode)
}
