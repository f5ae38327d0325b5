package store

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultPhase is returned for any account that has never had a phase
// recorded.
const DefaultPhase = "F1"

// PhaseStore is the persisted account-number -> phase-label map.
type PhaseStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
	data map[string]string
}

// NewPhaseStore loads path (if present) and returns a ready PhaseStore.
func NewPhaseStore(path string, log zerolog.Logger) (*PhaseStore, error) {
	s := &PhaseStore{
		path: path,
		log:  log.With().Str("component", "phase_store").Logger(),
		data: make(map[string]string),
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, fmt.Errorf("load phase store: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.log.Info().Int("count", len(s.data)).Msg("loaded phase values")
	return s, nil
}

// Get returns the phase for accountID, defaulting to DefaultPhase.
func (s *PhaseStore) Get(accountID uint64) string {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v
	}
	return DefaultPhase
}

// Update sets the phase for accountID and persists it.
func (s *PhaseStore) Update(accountID uint64, phase string) error {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	s.data[key] = phase
	snapshot := cloneStringMap(s.data)
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	return err
}

// All returns a copy of every recorded phase, keyed by account number as a
// string (matching the on-disk representation).
func (s *PhaseStore) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneStringMap(s.data)
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
