package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-recon/internal/model"
)

// ManualEntryRepository handles database operations for manual entries
type ManualEntryRepository struct {
	db *sql.DB
}

// NewManualEntryRepository creates a new manual entry repository
func NewManualEntryRepository(db *sql.DB) (*ManualEntryRepository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS manual_entries (
			id TEXT PRIMARY KEY,
			raw_text TEXT NOT NULL,
			trx_code TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			sender_phone TEXT NOT NULL DEFAULT '',
			sender_name TEXT NOT NULL DEFAULT '',
			trx_date DATETIME NOT NULL,
			entered_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			verified_at DATETIME,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			sale_id TEXT NOT NULL DEFAULT '',
			parse_confidence REAL NOT NULL DEFAULT 0,
			defaulted_fields TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_entries_status ON manual_entries(status);
	`)
	if err != nil {
		return nil, err
	}

	return &ManualEntryRepository{db: db}, nil
}

// Create persists a new manual entry
func (r *ManualEntryRepository) Create(e *model.ManualEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO manual_entries (id, raw_text, trx_code, amount, sender_phone, sender_name,
			trx_date, entered_by, created_at, status, parse_confidence, defaulted_fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RawText, e.TrxCode, e.Amount.String(), e.SenderPhone, e.SenderName,
		e.TrxDate, e.EnteredBy, e.CreatedAt, e.Status, e.ParseConfidence,
		strings.Join(e.DefaultedFields, ","))
	return err
}

// GetByID fetches a manual entry, nil if unknown
func (r *ManualEntryRepository) GetByID(id string) (*model.ManualEntry, error) {
	row := r.db.QueryRow(`
		SELECT id, raw_text, trx_code, amount, sender_phone, sender_name, trx_date,
			entered_by, created_at, verified, verified_at, status, notes, sale_id,
			parse_confidence, defaulted_fields
		FROM manual_entries
		WHERE id = ?
		LIMIT 1
	`, id)
	return scanManualEntry(row)
}

// Verify records the supervisor decision on a PENDING entry. Returns false
// if the entry is unknown or already resolved.
func (r *ManualEntryRepository) Verify(id string, accept bool, notes string, at time.Time) (bool, error) {
	status := model.ManualEntryVerified
	if !accept {
		status = model.ManualEntryInvalid
	}
	result, err := r.db.Exec(`
		UPDATE manual_entries
		SET verified = ?, verified_at = ?, status = ?, notes = ?
		WHERE id = ? AND status = ?
	`, accept, at, status, notes, id, model.ManualEntryPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// LinkSale attaches a sale to a VERIFIED entry and moves it to LINKED
func (r *ManualEntryRepository) LinkSale(id, saleID string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE manual_entries SET sale_id = ?, status = ?
		WHERE id = ? AND status = ?
	`, saleID, model.ManualEntryLinked, id, model.ManualEntryVerified)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListPending returns entries awaiting supervisor verification
func (r *ManualEntryRepository) ListPending() ([]*model.ManualEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, raw_text, trx_code, amount, sender_phone, sender_name, trx_date,
			entered_by, created_at, verified, verified_at, status, notes, sale_id,
			parse_confidence, defaulted_fields
		FROM manual_entries
		WHERE status = ?
		ORDER BY created_at ASC
	`, model.ManualEntryPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.ManualEntry
	for rows.Next() {
		e, err := scanManualEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanManualEntry(row rowScanner) (*model.ManualEntry, error) {
	var e model.ManualEntry
	var amount, defaulted string
	var verifiedAt sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.RawText,
		&e.TrxCode,
		&amount,
		&e.SenderPhone,
		&e.SenderName,
		&e.TrxDate,
		&e.EnteredBy,
		&e.CreatedAt,
		&e.Verified,
		&verifiedAt,
		&e.Status,
		&e.Notes,
		&e.SaleID,
		&e.ParseConfidence,
		&defaulted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		e.VerifiedAt = &t
	}
	if defaulted != "" {
		e.DefaultedFields = strings.Split(defaulted, ",")
	}
	return &e, nil
}
