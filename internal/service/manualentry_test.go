package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mpesa-recon/internal/model"
	"mpesa-recon/pkg/logger"
)

type fakeEntryStore struct {
	entries map[string]*model.ManualEntry
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: map[string]*model.ManualEntry{}}
}

func (s *fakeEntryStore) Create(e *model.ManualEntry) error {
	s.entries[e.ID] = e
	return nil
}

func (s *fakeEntryStore) GetByID(id string) (*model.ManualEntry, error) {
	return s.entries[id], nil
}

func (s *fakeEntryStore) Verify(id string, accept bool, notes string, at time.Time) (bool, error) {
	e, ok := s.entries[id]
	if !ok || e.Status != model.ManualEntryPending {
		return false, nil
	}
	e.Verified = accept
	e.VerifiedAt = &at
	e.Notes = notes
	if accept {
		e.Status = model.ManualEntryVerified
	} else {
		e.Status = model.ManualEntryInvalid
	}
	return true, nil
}

func (s *fakeEntryStore) LinkSale(id, saleID string) (bool, error) {
	e, ok := s.entries[id]
	if !ok || e.Status != model.ManualEntryVerified {
		return false, nil
	}
	e.SaleID = saleID
	e.Status = model.ManualEntryLinked
	return true, nil
}

func (s *fakeEntryStore) ListPending() ([]*model.ManualEntry, error) {
	var out []*model.ManualEntry
	for _, e := range s.entries {
		if e.Status == model.ManualEntryPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestEntryService(store ManualEntryStore) *ManualEntryService {
	return NewManualEntryService(store, NewParser(), logger.New("ERROR"))
}

func TestSubmitParsesAndStoresPending(t *testing.T) {
	store := newFakeEntryStore()
	svc := newTestEntryService(store)

	entry, err := svc.Submit("RK61H8I2Q7 Confirmed. Ksh500.00 received from JOHN DOE 254712345678 on 12/10/2024 at 2:30 PM", "cashier-1")
	require.NoError(t, err)
	require.Equal(t, model.ManualEntryPending, entry.Status)
	require.Equal(t, "RK61H8I2Q7", entry.TrxCode)
	require.Equal(t, "JOHN DOE", entry.SenderName)
	require.Equal(t, 1.0, entry.ParseConfidence)
	require.NotEmpty(t, entry.ID)
}

func TestSubmitStoresUnparseableTextForVerification(t *testing.T) {
	store := newFakeEntryStore()
	svc := newTestEntryService(store)

	// Garbage is stored anyway and left for the supervisor, never rejected
	entry, err := svc.Submit("paid by phone, said it went through", "cashier-1")
	require.NoError(t, err)
	require.Equal(t, model.ManualEntryPending, entry.Status)
	require.NotEmpty(t, entry.DefaultedFields)
	require.Equal(t, 0.0, entry.ParseConfidence)

	pending, err := svc.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestVerifyThenLink(t *testing.T) {
	store := newFakeEntryStore()
	svc := newTestEntryService(store)

	entry, err := svc.Submit("RK61H8I2Q7 Confirmed. Ksh500.00 received from JOHN DOE 254712345678", "cashier-1")
	require.NoError(t, err)

	// Linking before verification is rejected
	err = svc.LinkToSale(entry.ID, "sale-1")
	require.ErrorIs(t, err, model.ErrNotVerified)

	verified, err := svc.Verify(entry.ID, true, "checked")
	require.NoError(t, err)
	require.Equal(t, model.ManualEntryVerified, verified.Status)

	require.NoError(t, svc.LinkToSale(entry.ID, "sale-1"))
	require.Equal(t, model.ManualEntryLinked, store.entries[entry.ID].Status)
	require.Equal(t, "sale-1", store.entries[entry.ID].SaleID)
}

func TestVerifyUnknownEntry(t *testing.T) {
	svc := newTestEntryService(newFakeEntryStore())

	_, err := svc.Verify("missing-id", true, "")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestVerifyAlreadyResolvedEntry(t *testing.T) {
	store := newFakeEntryStore()
	svc := newTestEntryService(store)

	entry, err := svc.Submit("RK61H8I2Q7 Confirmed. Ksh500.00 received from JOHN DOE 254712345678", "cashier-1")
	require.NoError(t, err)

	_, err = svc.Verify(entry.ID, false, "no match")
	require.NoError(t, err)

	_, err = svc.Verify(entry.ID, true, "actually fine")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrNotFound)
}

func TestLinkUnknownEntry(t *testing.T) {
	svc := newTestEntryService(newFakeEntryStore())

	err := svc.LinkToSale("missing-id", "sale-1")
	require.ErrorIs(t, err, model.ErrNotFound)
}
