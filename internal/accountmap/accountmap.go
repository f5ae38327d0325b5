// Package accountmap is the in-memory, process-lifetime cache mapping an
// account number to the agent currently reporting it. It exists so a
// single-account trade proxy request (open/close/modify) can route directly
// to the right agent instead of fanning out to the whole fleet.
package accountmap

import (
	"sync"

	"github.com/rs/zerolog"
)

// Map is safe for concurrent use.
type Map struct {
	mu   sync.RWMutex
	data map[uint64]string
	log  zerolog.Logger
}

// New returns an empty Map.
func New(log zerolog.Logger) *Map {
	return &Map{
		data: make(map[uint64]string),
		log:  log.With().Str("component", "account_map").Logger(),
	}
}

// Update records that accountID is currently owned by agentName.
func (m *Map) Update(accountID uint64, agentName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[accountID] = agentName
}

// Entry is one (account, owning agent) pair for a bulk update.
type Entry struct {
	AccountID uint64
	AgentName string
}

// UpdateBulk replaces/adds mappings for every entry, typically called once
// per aggregation cycle with the full fan-out result.
func (m *Map) UpdateBulk(entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.AccountID == 0 || e.AgentName == "" {
			continue
		}
		m.data[e.AccountID] = e.AgentName
	}
	m.log.Info().Int("size", len(m.data)).Msg("updated account-agent map")
}

// Get returns the agent name owning accountID, and whether it is known.
func (m *Map) Get(accountID uint64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.data[accountID]
	return name, ok
}

// Clear empties the map.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[uint64]string)
	m.log.Info().Msg("cleared account-agent map")
}

// Size reports the number of cached mappings.
func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
