package repository

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-recon/internal/model"
)

// QRPaymentRepository handles database operations for QR payments
type QRPaymentRepository struct {
	db *sql.DB
}

// NewQRPaymentRepository creates a new QR payment repository
func NewQRPaymentRepository(db *sql.DB) (*QRPaymentRepository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS qr_payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT NOT NULL UNIQUE,
			amount TEXT NOT NULL,
			customer_phone TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			status TEXT NOT NULL,
			paid_at DATETIME,
			receipt_number TEXT NOT NULL DEFAULT '',
			trx_code TEXT NOT NULL DEFAULT '',
			sale_id TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_qr_status ON qr_payments(status);
		CREATE INDEX IF NOT EXISTS idx_qr_expires_at ON qr_payments(expires_at);
	`)
	if err != nil {
		return nil, err
	}

	return &QRPaymentRepository{db: db}, nil
}

// Create persists a new QR payment
func (r *QRPaymentRepository) Create(p *model.QRPayment) error {
	result, err := r.db.Exec(`
		INSERT INTO qr_payments (reference, amount, customer_phone, customer_name, description,
			created_by, created_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Reference, p.Amount.String(), p.CustomerPhone, p.CustomerName, p.Description,
		p.CreatedBy, p.CreatedAt, p.ExpiresAt, p.Status)
	if err != nil {
		return err
	}
	p.ID, _ = result.LastInsertId()
	return nil
}

// GetByReference fetches a QR payment by reference, nil if unknown
func (r *QRPaymentRepository) GetByReference(reference string) (*model.QRPayment, error) {
	row := r.db.QueryRow(`
		SELECT id, reference, amount, customer_phone, customer_name, description,
			created_by, created_at, expires_at, status, paid_at, receipt_number, trx_code, sale_id
		FROM qr_payments
		WHERE reference = ?
		LIMIT 1
	`, reference)
	return scanQRPayment(row)
}

// MarkPaid transitions a payment from PENDING to PAID. The status predicate
// makes this a compare-and-swap: concurrent callers racing to complete the
// same reference cannot both succeed.
func (r *QRPaymentRepository) MarkPaid(reference, receiptNumber, trxCode string, paidAt time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE qr_payments
		SET status = ?, paid_at = ?, receipt_number = ?, trx_code = ?
		WHERE reference = ? AND status = ?
	`, model.QRPaymentPaid, paidAt, receiptNumber, trxCode, reference, model.QRPaymentPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// LinkSale records a sale association on the payment
func (r *QRPaymentRepository) LinkSale(reference, saleID string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE qr_payments SET sale_id = ? WHERE reference = ?
	`, saleID, reference)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ExpireStale transitions every overdue PENDING payment to EXPIRED. PAID and
// already-EXPIRED rows are never touched.
func (r *QRPaymentRepository) ExpireStale(now time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE qr_payments SET status = ?
		WHERE status = ? AND expires_at <= ?
	`, model.QRPaymentExpired, model.QRPaymentPending, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListPending returns PENDING payments still within their window
func (r *QRPaymentRepository) ListPending(now time.Time) ([]*model.QRPayment, error) {
	rows, err := r.db.Query(`
		SELECT id, reference, amount, customer_phone, customer_name, description,
			created_by, created_at, expires_at, status, paid_at, receipt_number, trx_code, sale_id
		FROM qr_payments
		WHERE status = ? AND expires_at > ?
		ORDER BY created_at ASC
	`, model.QRPaymentPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*model.QRPayment
	for rows.Next() {
		p, err := scanQRPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQRPayment(row rowScanner) (*model.QRPayment, error) {
	var p model.QRPayment
	var amount string
	var paidAt sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.Reference,
		&amount,
		&p.CustomerPhone,
		&p.CustomerName,
		&p.Description,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.ExpiresAt,
		&p.Status,
		&paidAt,
		&p.ReceiptNumber,
		&p.TrxCode,
		&p.SaleID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
