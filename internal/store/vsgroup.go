package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// VSGroupStore is the persisted account-number -> VS-group-label map. A VS
// group names at most two accounts meant to run opposite legs of the same
// hedge; Update enforces that invariant.
type VSGroupStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
	data map[string]string
}

// NewVSGroupStore loads path (if present) and returns a ready VSGroupStore.
func NewVSGroupStore(path string, log zerolog.Logger) (*VSGroupStore, error) {
	s := &VSGroupStore{
		path: path,
		log:  log.With().Str("component", "vs_group_store").Logger(),
		data: make(map[string]string),
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, fmt.Errorf("load vs group store: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.log.Info().Int("count", len(s.data)).Msg("loaded vs group values")
	return s, nil
}

// Get returns the VS group assigned to accountID, or "" if none.
func (s *VSGroupStore) Get(accountID uint64) string {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Update assigns group to accountID, or clears it when group is blank.
// Returns (false, message) without mutating state if group already has two
// other members.
func (s *VSGroupStore) Update(accountID uint64, group string) (bool, string, error) {
	key := fmt.Sprintf("%d", accountID)
	group = strings.TrimSpace(group)

	s.mu.Lock()
	if group == "" {
		if _, ok := s.data[key]; !ok {
			s.mu.Unlock()
			return true, "no changes made", nil
		}
		delete(s.data, key)
		snapshot := cloneStringMap(s.data)
		s.mu.Unlock()
		err := saveJSON(s.path, snapshot)
		logOrNil(s.log, "save", s.path, err)
		return true, "vs group removed", err
	}

	members := 0
	for acc, val := range s.data {
		if val == group && acc != key {
			members++
		}
	}
	if members >= 2 {
		s.mu.Unlock()
		return false, fmt.Sprintf("vs group %q already has 2 accounts assigned", group), nil
	}

	s.data[key] = group
	snapshot := cloneStringMap(s.data)
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	return true, fmt.Sprintf("vs group updated to %q", group), err
}

// All returns a copy of every recorded VS group assignment.
func (s *VSGroupStore) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneStringMap(s.data)
}

// Partner returns the other account number assigned to accountID's VS
// group, and whether one exists.
func (s *VSGroupStore) Partner(accountID uint64) (uint64, bool) {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	group, ok := s.data[key]
	if !ok || group == "" {
		s.mu.Unlock()
		return 0, false
	}
	var partner string
	for acc, val := range s.data {
		if val == group && acc != key {
			partner = acc
			break
		}
	}
	s.mu.Unlock()
	if partner == "" {
		return 0, false
	}
	var id uint64
	if _, err := fmt.Sscanf(partner, "%d", &id); err != nil {
		return 0, false
	}
	return id, true
}
