// Package cache is the Smart Cache: a concurrent, TTL-bounded per-account
// snapshot cache plus the per-agent status vector, with selective
// invalidation so a single trade never forces a full-fleet refresh.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

type entry struct {
	snapshot domain.AccountSnapshot
	cachedAt time.Time
}

type agentStatusEntry struct {
	status   domain.AgentStatus
	cachedAt time.Time
}

// Cache holds the single mutex guarding every map; operations never return
// an error, only presence/absence, matching the original's "cache never
// throws" contract.
type Cache struct {
	mu              sync.Mutex
	ttl             time.Duration
	accounts        map[uint64]entry
	agentStatuses   map[string]agentStatusEntry
	lastFullRefresh *time.Time
	log             zerolog.Logger
}

// New builds a Cache with the given TTL.
func New(ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		ttl:           ttl,
		accounts:      make(map[uint64]entry),
		agentStatuses: make(map[string]agentStatusEntry),
		log:           log.With().Str("component", "smart_cache").Logger(),
	}
}

func (c *Cache) expired(t time.Time) bool {
	return time.Since(t) > c.ttl
}

// GetAccount returns the cached snapshot for id if present and fresh,
// pruning it if expired.
func (c *Cache) GetAccount(id uint64) (domain.AccountSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.accounts[id]
	if !ok {
		return domain.AccountSnapshot{}, false
	}
	if c.expired(e.cachedAt) {
		delete(c.accounts, id)
		return domain.AccountSnapshot{}, false
	}
	return e.snapshot, true
}

// GetAllAccounts returns every fresh snapshot, or ok=false if the fleet-wide
// cache is missing or has gone stale. Expired entries are pruned in the
// same pass regardless of the overall freshness verdict.
func (c *Cache) GetAllAccounts() ([]domain.AccountSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	fresh := make([]domain.AccountSnapshot, 0, len(c.accounts))
	for id, e := range c.accounts {
		if now.Sub(e.cachedAt) > c.ttl {
			delete(c.accounts, id)
			continue
		}
		fresh = append(fresh, e.snapshot)
	}

	if c.lastFullRefresh == nil || now.Sub(*c.lastFullRefresh) > c.ttl {
		return nil, false
	}
	return fresh, true
}

// SetAccounts bulk-inserts a full snapshot set under one shared cachedAt,
// and marks the fleet cache fresh. This is the only operation that
// establishes fleet-wide freshness.
func (c *Cache) SetAccounts(snapshots []domain.AccountSnapshot) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = make(map[uint64]entry, len(snapshots))
	for _, s := range snapshots {
		c.accounts[s.AccountID] = entry{snapshot: s, cachedAt: now}
	}
	c.lastFullRefresh = &now
}

// InvalidateAccount drops a single account's cache entry without touching
// lastFullRefresh, the key operation that lets one trade narrow its
// invalidation blast radius.
func (c *Cache) InvalidateAccount(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, id)
}

// UpdateAccountField applies a local overlay mutation (phase, vs_group) to
// an existing fresh entry and refreshes its cachedAt; a no-op if the entry
// is absent or already expired.
func (c *Cache) UpdateAccountField(id uint64, apply func(*domain.AccountSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.accounts[id]
	if !ok || c.expired(e.cachedAt) {
		return
	}
	apply(&e.snapshot)
	e.cachedAt = time.Now()
	c.accounts[id] = e
}

// SetAgentStatus records the last-observed status of one agent.
func (c *Cache) SetAgentStatus(agentName string, status domain.AgentStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentStatuses[agentName] = agentStatusEntry{status: status, cachedAt: time.Now()}
}

// AgentStatus returns the last-observed status of agentName.
func (c *Cache) AgentStatus(agentName string) (domain.AgentStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.agentStatuses[agentName]
	if !ok {
		return "", false
	}
	return e.status, true
}

// Clear drops every cached entry, agent statuses and fleet-wide freshness
// included.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = make(map[uint64]entry)
	c.agentStatuses = make(map[string]agentStatusEntry)
	c.lastFullRefresh = nil
	c.log.Info().Msg("smart cache cleared")
}

// Stats is the observability snapshot returned by GET /api/cache/stats.
type Stats struct {
	CachedAccounts  int        `json:"cached_accounts"`
	CachedAgents    int        `json:"cached_agents"`
	LastFullRefresh *time.Time `json:"last_full_refresh"`
	TTLSeconds      int        `json:"ttl_seconds"`
}

// Stats reports counters for observability.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		CachedAccounts:  len(c.accounts),
		CachedAgents:    len(c.agentStatuses),
		LastFullRefresh: c.lastFullRefresh,
		TTLSeconds:      int(c.ttl.Seconds()),
	}
}
