package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

// VersusStore is the persisted map of Versus hedge records, keyed by their
// short opaque ID.
type VersusStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
	data map[string]*domain.VersusRecord
}

// NewVersusStore loads path (if present) and returns a ready VersusStore.
func NewVersusStore(path string, log zerolog.Logger) (*VersusStore, error) {
	s := &VersusStore{
		path: path,
		log:  log.With().Str("component", "versus_store").Logger(),
		data: make(map[string]*domain.VersusRecord),
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, fmt.Errorf("load versus store: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]*domain.VersusRecord)
	}
	s.log.Info().Int("count", len(s.data)).Msg("loaded versus records")
	return s, nil
}

// CreateParams carries the fields a caller supplies when opening a new
// Versus hedge; everything else (ID, status, timestamps) is assigned here.
type CreateParams struct {
	AccountA, AccountB           uint64
	Symbol                       string
	Lots                         float64
	Side                         domain.TradeSide
	TPUSDA, SLUSDA, TPUSDB, SLUSDB float64
	ScheduledCongelar            *time.Time
	HolderA, PropFirmA           string
	HolderB, PropFirmB           string
}

// Create inserts a new Versus record in VersusPending status.
func (s *VersusStore) Create(p CreateParams) *domain.VersusRecord {
	now := time.Now().UTC()
	rec := &domain.VersusRecord{
		ID:                  uuid.NewString()[:8],
		AccountA:            p.AccountA,
		AccountB:            p.AccountB,
		Symbol:              p.Symbol,
		Lots:                p.Lots,
		Side:                p.Side,
		TPUSDA:              p.TPUSDA,
		SLUSDA:              p.SLUSDA,
		TPUSDB:              p.TPUSDB,
		SLUSDB:              p.SLUSDB,
		Status:              domain.VersusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		ScheduledCongelar:   p.ScheduledCongelar,
		TicketsA:            []uint64{},
		TicketsB:            []uint64{},
		HolderA:             p.HolderA,
		PropFirmA:           p.PropFirmA,
		HolderB:             p.HolderB,
		PropFirmB:           p.PropFirmB,
	}

	s.mu.Lock()
	s.data[rec.ID] = rec
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	s.log.Info().Str("versus_id", rec.ID).Uint64("account_a", rec.AccountA).
		Uint64("account_b", rec.AccountB).Str("symbol", rec.Symbol).Msg("created versus record")
	return rec
}

// Get returns the record with the given ID.
func (s *VersusStore) Get(id string) (*domain.VersusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("versus record %q not found", id))
	}
	copy := *rec
	return &copy, nil
}

// All returns every record, independent copies safe for the caller to hold.
func (s *VersusStore) All() []*domain.VersusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.VersusRecord, 0, len(s.data))
	for _, rec := range s.data {
		copy := *rec
		out = append(out, &copy)
	}
	return out
}

// UpdateStatus transitions a record's status and optionally its tickets and
// error message, persisting the change.
func (s *VersusStore) UpdateStatus(id string, status domain.VersusStatus, ticketsA, ticketsB []uint64, errMsg *string) (*domain.VersusRecord, error) {
	s.mu.Lock()
	rec, ok := s.data[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("versus record %q not found", id))
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	if ticketsA != nil {
		rec.TicketsA = ticketsA
	}
	if ticketsB != nil {
		rec.TicketsB = ticketsB
	}
	if errMsg != nil {
		rec.ErrorMessage = errMsg
	}
	copy := *rec
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	s.log.Info().Str("versus_id", id).Str("status", string(status)).Msg("updated versus status")
	return &copy, nil
}

// Delete removes a record.
func (s *VersusStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	if _, ok := s.data[id]; !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.data, id)
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	return true, err
}

// DueForCongelar returns every pending record whose ScheduledCongelar time
// has passed, for the scheduler's periodic scan.
func (s *VersusStore) DueForCongelar(now time.Time) []*domain.VersusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*domain.VersusRecord
	for _, rec := range s.data {
		if rec.Status == domain.VersusPending && rec.ScheduledCongelar != nil && !rec.ScheduledCongelar.After(now) {
			copy := *rec
			due = append(due, &copy)
		}
	}
	return due
}

// DueForTransferir returns every congelado record whose ScheduledTransferir
// time has passed.
func (s *VersusStore) DueForTransferir(now time.Time) []*domain.VersusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*domain.VersusRecord
	for _, rec := range s.data {
		if rec.Status == domain.VersusCongelado && rec.ScheduledTransferir != nil && !rec.ScheduledTransferir.After(now) {
			copy := *rec
			due = append(due, &copy)
		}
	}
	return due
}

// SetScheduledTransferir records when Transferir should run for a
// congelado record.
func (s *VersusStore) SetScheduledTransferir(id string, when time.Time) error {
	s.mu.Lock()
	rec, ok := s.data[id]
	if !ok {
		s.mu.Unlock()
		return apperr.New(apperr.NotFound, fmt.Sprintf("versus record %q not found", id))
	}
	rec.ScheduledTransferir = &when
	rec.UpdatedAt = time.Now().UTC()
	snapshot := s.cloneLocked()
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	return err
}

func (s *VersusStore) cloneLocked() map[string]*domain.VersusRecord {
	out := make(map[string]*domain.VersusRecord, len(s.data))
	for k, v := range s.data {
		copy := *v
		out[k] = &copy
	}
	return out
}
