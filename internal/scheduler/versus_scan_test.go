package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
)

type fakeEngine struct {
	congelarCalls   []string
	transferirCalls []string
	congelarErr     error
	transferirErr   error
}

func (f *fakeEngine) Congelar(ctx context.Context, id string) (*domain.VersusRecord, error) {
	f.congelarCalls = append(f.congelarCalls, id)
	if f.congelarErr != nil {
		return nil, f.congelarErr
	}
	return &domain.VersusRecord{ID: id, Status: domain.VersusCongelado}, nil
}

func (f *fakeEngine) Transferir(ctx context.Context, id string) (*domain.VersusRecord, error) {
	f.transferirCalls = append(f.transferirCalls, id)
	if f.transferirErr != nil {
		return nil, f.transferirErr
	}
	return &domain.VersusRecord{ID: id, Status: domain.VersusTransferido}, nil
}

func newVersusStore(t *testing.T) *store.VersusStore {
	t.Helper()
	s, err := store.NewVersusStore(filepath.Join(t.TempDir(), "versus.json"), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestVersusScanJob_RunsCongelarThenTransferirForDueRecords(t *testing.T) {
	versusStore := newVersusStore(t)
	past := time.Now().Add(-time.Minute)

	pending := versusStore.Create(store.CreateParams{AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy, ScheduledCongelar: &past})
	notDue := versusStore.Create(store.CreateParams{AccountA: 3, AccountB: 4, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy})

	congelado := versusStore.Create(store.CreateParams{AccountA: 5, AccountB: 6, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy})
	_, err := versusStore.UpdateStatus(congelado.ID, domain.VersusCongelado, []uint64{1, 2}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, versusStore.SetScheduledTransferir(congelado.ID, past))

	engine := &fakeEngine{}
	job := NewVersusScanJob(versusStore, engine, zerolog.Nop())

	err = job.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID}, engine.congelarCalls)
	assert.Equal(t, []string{congelado.ID}, engine.transferirCalls)
	assert.NotContains(t, engine.congelarCalls, notDue.ID)
}

func TestVersusScanJob_RunReturnsFirstErrorButContinuesScanning(t *testing.T) {
	versusStore := newVersusStore(t)
	past := time.Now().Add(-time.Minute)

	a := versusStore.Create(store.CreateParams{AccountA: 1, AccountB: 2, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy, ScheduledCongelar: &past})
	b := versusStore.Create(store.CreateParams{AccountA: 3, AccountB: 4, Symbol: "EURUSD", Lots: 1, Side: domain.SideBuy, ScheduledCongelar: &past})

	engine := &fakeEngine{congelarErr: apperr.New(apperr.PreconditionFailed, "quote fetch failed")}
	job := NewVersusScanJob(versusStore, engine, zerolog.Nop())

	err := job.Run()
	require.Error(t, err)
	assert.Len(t, engine.congelarCalls, 2, "a failure on one record must not stop the scan of the rest")
	_ = a
	_ = b
}

func TestVersusScanJob_Name(t *testing.T) {
	job := NewVersusScanJob(newVersusStore(t), &fakeEngine{}, zerolog.Nop())
	assert.Equal(t, "versus_scan", job.Name())
}
