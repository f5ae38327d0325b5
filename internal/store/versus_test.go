package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

func TestVersusStore_CreateAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versus.json")
	s, err := NewVersusStore(path, testLogger())
	require.NoError(t, err)

	rec := s.Create(CreateParams{
		AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1.0, Side: domain.SideBuy,
		TPUSDA: 50, SLUSDA: 50, TPUSDB: 50, SLUSDB: 50,
	})
	assert.Len(t, rec.ID, 8)
	assert.Equal(t, domain.VersusPending, rec.Status)

	fetched, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.AccountA, fetched.AccountA)
}

func TestVersusStore_GetMissingIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versus.json")
	s, err := NewVersusStore(path, testLogger())
	require.NoError(t, err)

	_, err = s.Get("doesnotexist")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestVersusStore_UpdateStatusSetsTicketsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versus.json")
	s, err := NewVersusStore(path, testLogger())
	require.NoError(t, err)

	rec := s.Create(CreateParams{AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1.0, Side: domain.SideBuy})

	updated, err := s.UpdateStatus(rec.ID, domain.VersusCongelado, []uint64{101, 102}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VersusCongelado, updated.Status)
	assert.Equal(t, []uint64{101, 102}, updated.TicketsA)

	errMsg := "quote fetch failed"
	failed, err := s.UpdateStatus(rec.ID, domain.VersusError, nil, nil, &errMsg)
	require.NoError(t, err)
	assert.Equal(t, domain.VersusError, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, errMsg, *failed.ErrorMessage)
	assert.Equal(t, []uint64{101, 102}, failed.TicketsA, "tickets are preserved when not explicitly overwritten")
}

func TestVersusStore_DeleteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versus.json")
	s, err := NewVersusStore(path, testLogger())
	require.NoError(t, err)

	rec := s.Create(CreateParams{AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1.0, Side: domain.SideBuy})

	deleted, err := s.Delete(rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deletedAgain, err := s.Delete(rec.ID)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestVersusStore_DueForCongelarAndTransferir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versus.json")
	s, err := NewVersusStore(path, testLogger())
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	dueNow := s.Create(CreateParams{AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy, ScheduledCongelar: &past})
	notYet := s.Create(CreateParams{AccountA: 3, AccountB: 4, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy, ScheduledCongelar: &future})

	due := s.DueForCongelar(time.Now())
	ids := make(map[string]bool)
	for _, r := range due {
		ids[r.ID] = true
	}
	assert.True(t, ids[dueNow.ID])
	assert.False(t, ids[notYet.ID])

	_, err = s.UpdateStatus(dueNow.ID, domain.VersusCongelado, []uint64{1, 2}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetScheduledTransferir(dueNow.ID, past))

	dueTransfer := s.DueForTransferir(time.Now())
	require.Len(t, dueTransfer, 1)
	assert.Equal(t, dueNow.ID, dueTransfer[0].ID)
}
