package repository

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-recon/internal/model"
)

// UnmatchedRepository handles database operations for gateway-confirmed
// transactions that arrived without an explicit push/QR session. Rows are
// deposited by the callback-ingestion collaborator and consumed at most once.
type UnmatchedRepository struct {
	db *sql.DB
}

// NewUnmatchedRepository creates a new unmatched transaction repository
func NewUnmatchedRepository(db *sql.DB) (*UnmatchedRepository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS unmatched_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trx_code TEXT NOT NULL UNIQUE,
			amount TEXT NOT NULL,
			received_at DATETIME NOT NULL,
			consumed_by TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_unmatched_received_at ON unmatched_transactions(received_at);
	`)
	if err != nil {
		return nil, err
	}

	return &UnmatchedRepository{db: db}, nil
}

// Ingest stores a confirmed transaction, deduplicating on transaction code.
// Returns false when the code was already ingested.
func (r *UnmatchedRepository) Ingest(trxCode string, amount decimal.Decimal, receivedAt time.Time) (bool, error) {
	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO unmatched_transactions (trx_code, amount, received_at)
		VALUES (?, ?, ?)
	`, trxCode, amount.String(), receivedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListUnconsumed returns unconsumed transactions received inside the window,
// earliest first.
func (r *UnmatchedRepository) ListUnconsumed(from, to time.Time) ([]*model.UnmatchedTransaction, error) {
	rows, err := r.db.Query(`
		SELECT id, trx_code, amount, received_at, consumed_by
		FROM unmatched_transactions
		WHERE consumed_by = '' AND received_at >= ? AND received_at <= ?
		ORDER BY received_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*model.UnmatchedTransaction
	for rows.Next() {
		var t model.UnmatchedTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.TrxCode, &amount, &t.ReceivedAt, &t.ConsumedBy); err != nil {
			return nil, err
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

// Consume claims a transaction for the given consumer. The empty-consumer
// predicate makes this a compare-and-swap: two concurrent matcher passes
// cannot assign the same transaction twice.
func (r *UnmatchedRepository) Consume(id int64, consumer string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE unmatched_transactions SET consumed_by = ?
		WHERE id = ? AND consumed_by = ''
	`, consumer, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
