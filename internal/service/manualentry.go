package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

// ManualEntryStore persists transcribed confirmations
type ManualEntryStore interface {
	Create(e *model.ManualEntry) error
	GetByID(id string) (*model.ManualEntry, error)
	Verify(id string, accept bool, notes string, at time.Time) (bool, error)
	LinkSale(id, saleID string) (bool, error)
	ListPending() ([]*model.ManualEntry, error)
}

// ManualEntryService handles cashier-transcribed confirmations: parsing on
// submission, supervisor verification, and sale linking.
type ManualEntryService struct {
	store  ManualEntryStore
	parser *Parser
	logger *logger.Logger

	now func() time.Time
}

// NewManualEntryService creates a new manual entry service
func NewManualEntryService(store ManualEntryStore, parser *Parser, log *logger.Logger) *ManualEntryService {
	return &ManualEntryService{
		store:  store,
		parser: parser,
		logger: log,
		now:    time.Now,
	}
}

// Submit parses the raw text and stores the entry as Pending. A parse that
// defaulted fields is stored anyway for human correction, never rejected.
func (s *ManualEntryService) Submit(rawText, enteredBy string) (*model.ManualEntry, error) {
	if rawText == "" {
		return nil, fmt.Errorf("raw text is required")
	}

	fields := s.parser.Parse(rawText)

	entry := &model.ManualEntry{
		ID:              uuid.NewString(),
		RawText:         rawText,
		TrxCode:         fields.TrxCode,
		Amount:          fields.Amount,
		SenderPhone:     fields.SenderPhone,
		SenderName:      fields.SenderName,
		TrxDate:         fields.TrxDate,
		EnteredBy:       enteredBy,
		CreatedAt:       s.now(),
		Status:          model.ManualEntryPending,
		ParseConfidence: fields.Confidence,
		DefaultedFields: fields.DefaultedFields,
	}

	if err := s.store.Create(entry); err != nil {
		return nil, fmt.Errorf("failed to persist manual entry: %w", err)
	}

	log := s.logger.WithEntryID(entry.ID)
	if len(entry.DefaultedFields) > 0 {
		log.Warn("Manual entry stored with defaulted fields",
			"defaulted", entry.DefaultedFields,
			"confidence", entry.ParseConfidence,
		)
	} else {
		log.Info("Manual entry stored",
			"trx_code", entry.TrxCode,
			"confidence", entry.ParseConfidence,
		)
	}

	return entry, nil
}

// Verify records the supervisor decision on a pending entry
func (s *ManualEntryService) Verify(entryID string, accept bool, notes string) (*model.ManualEntry, error) {
	ok, err := s.store.Verify(entryID, accept, notes, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to verify entry: %w", err)
	}
	if !ok {
		existing, err := s.store.GetByID(entryID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("entry already resolved with status %s", existing.Status)
	}

	s.logger.WithEntryID(entryID).Info("Manual entry verified", "accepted", accept)

	return s.store.GetByID(entryID)
}

// LinkToSale attaches a verified entry to a sale
func (s *ManualEntryService) LinkToSale(entryID, saleID string) error {
	ok, err := s.store.LinkSale(entryID, saleID)
	if err != nil {
		return fmt.Errorf("failed to link entry to sale: %w", err)
	}
	if !ok {
		existing, err := s.store.GetByID(entryID)
		if err != nil {
			return err
		}
		if existing == nil {
			return model.ErrNotFound
		}
		return model.ErrNotVerified
	}

	s.logger.WithEntryID(entryID).Info("Manual entry linked to sale", "sale_id", saleID)
	return nil
}

// ListPending returns the supervisor queue
func (s *ManualEntryService) ListPending() ([]*model.ManualEntry, error) {
	return s.store.ListPending()
}
