package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
)

// Engine is the subset of the Versus engine the scan job drives; satisfied
// by *versus.Engine without an import cycle back into this package.
type Engine interface {
	Congelar(ctx context.Context, id string) (*domain.VersusRecord, error)
	Transferir(ctx context.Context, id string) (*domain.VersusRecord, error)
}

// VersusScanJob scans the Versus store once per tick for pending records
// due for Congelar and congelado records due for Transferir, running each
// due record through the same Engine code path the HTTP API uses.
type VersusScanJob struct {
	versus *store.VersusStore
	engine Engine
	log    zerolog.Logger
}

// NewVersusScanJob builds the periodic Versus scan job.
func NewVersusScanJob(versusStore *store.VersusStore, engine Engine, log zerolog.Logger) *VersusScanJob {
	return &VersusScanJob{
		versus: versusStore,
		engine: engine,
		log:    log.With().Str("job", "versus_scan").Logger(),
	}
}

// Name identifies the job for scheduler logs.
func (j *VersusScanJob) Name() string { return "versus_scan" }

// Run executes one scan iteration: Congelar for every due pending record,
// sequentially, then Transferir for every due congelado record,
// sequentially, in the store's iteration order.
func (j *VersusScanJob) Run() error {
	ctx := context.Background()
	now := time.Now().UTC()

	var firstErr error
	for _, rec := range j.versus.DueForCongelar(now) {
		if _, err := j.engine.Congelar(ctx, rec.ID); err != nil {
			j.log.Error().Err(err).Str("versus_id", rec.ID).Msg("scheduled congelar failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("congelar %s: %w", rec.ID, err)
			}
		}
	}
	for _, rec := range j.versus.DueForTransferir(now) {
		if _, err := j.engine.Transferir(ctx, rec.ID); err != nil {
			j.log.Error().Err(err).Str("versus_id", rec.ID).Msg("scheduled transferir failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("transferir %s: %w", rec.ID, err)
			}
		}
	}
	return firstErr
}
