package repository

import (
	"database/sql"

	"mpesa-recon/internal/model"
)

// TokenRepository handles database operations for gateway access tokens.
// Superseded rows are kept as an audit trail, never deleted.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB) (*TokenRepository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS access_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL,
			token_type TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			status TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tokens_status ON access_tokens(status);
	`)
	if err != nil {
		return nil, err
	}

	return &TokenRepository{db: db}, nil
}

// Active returns the current active token, or nil if none exists
func (r *TokenRepository) Active() (*model.AccessToken, error) {
	var tok model.AccessToken
	err := r.db.QueryRow(`
		SELECT id, token, token_type, created_at, expires_at, status
		FROM access_tokens
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, model.TokenActive).Scan(
		&tok.ID,
		&tok.Token,
		&tok.TokenType,
		&tok.CreatedAt,
		&tok.ExpiresAt,
		&tok.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ReplaceActive supersedes every active token and inserts the new one as
// active, in a single transaction.
func (r *TokenRepository) ReplaceActive(tok *model.AccessToken) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE access_tokens SET status = ? WHERE status = ?
	`, model.TokenSuperseded, model.TokenActive)
	if err != nil {
		return err
	}

	result, err := tx.Exec(`
		INSERT INTO access_tokens (token, token_type, created_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, tok.Token, tok.TokenType, tok.CreatedAt, tok.ExpiresAt, model.TokenActive)
	if err != nil {
		return err
	}

	tok.ID, _ = result.LastInsertId()
	tok.Status = model.TokenActive

	return tx.Commit()
}

// Deactivate marks a single token as superseded
func (r *TokenRepository) Deactivate(id int64) error {
	_, err := r.db.Exec(`
		UPDATE access_tokens SET status = ? WHERE id = ?
	`, model.TokenSuperseded, id)
	return err
}
