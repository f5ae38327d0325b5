package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCache_GetAccountMissIsNotAnError(t *testing.T) {
	c := New(time.Minute, testLogger())
	_, ok := c.GetAccount(1)
	assert.False(t, ok)
}

func TestCache_SetAccountsEstablishesFleetFreshness(t *testing.T) {
	c := New(time.Minute, testLogger())
	snaps := []domain.AccountSnapshot{
		{AccountID: 1, Balance: 100},
		{AccountID: 2, Balance: 200},
	}
	c.SetAccounts(snaps)

	got, ok := c.GetAccount(1)
	assert.True(t, ok)
	assert.Equal(t, 100.0, got.Balance)

	all, ok := c.GetAllAccounts()
	assert.True(t, ok)
	assert.Len(t, all, 2)
}

func TestCache_GetAllAccountsIsStaleWithoutAFullRefresh(t *testing.T) {
	c := New(time.Minute, testLogger())
	_, ok := c.GetAllAccounts()
	assert.False(t, ok, "no SetAccounts call yet means the fleet cache has never been established")
}

func TestCache_EntriesExpireAfterTTL(t *testing.T) {
	c := New(time.Millisecond, testLogger())
	c.SetAccounts([]domain.AccountSnapshot{{AccountID: 1, Balance: 100}})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.GetAccount(1)
	assert.False(t, ok, "expired entries must be pruned")

	_, ok = c.GetAllAccounts()
	assert.False(t, ok, "an expired full refresh is no longer fresh")
}

func TestCache_InvalidateAccountDoesNotTouchFleetFreshness(t *testing.T) {
	c := New(time.Minute, testLogger())
	c.SetAccounts([]domain.AccountSnapshot{
		{AccountID: 1, Balance: 100},
		{AccountID: 2, Balance: 200},
	})

	c.InvalidateAccount(1)

	_, ok := c.GetAccount(1)
	assert.False(t, ok)

	all, ok := c.GetAllAccounts()
	assert.True(t, ok, "fleet freshness survives a single-account invalidation")
	assert.Len(t, all, 1, "the pruned account drops out of the fresh set")
}

func TestCache_UpdateAccountFieldIsNoopWhenAbsentOrExpired(t *testing.T) {
	c := New(time.Millisecond, testLogger())
	applied := false
	c.UpdateAccountField(999, func(s *domain.AccountSnapshot) { applied = true })
	assert.False(t, applied, "no-op when the account was never cached")

	c.SetAccounts([]domain.AccountSnapshot{{AccountID: 1, Balance: 100}})
	time.Sleep(5 * time.Millisecond)
	c.UpdateAccountField(1, func(s *domain.AccountSnapshot) { applied = true })
	assert.False(t, applied, "no-op when the cached entry has expired")
}

func TestCache_UpdateAccountFieldAppliesOverlayAndRefreshesCachedAt(t *testing.T) {
	c := New(time.Minute, testLogger())
	c.SetAccounts([]domain.AccountSnapshot{{AccountID: 1, Balance: 100}})

	c.UpdateAccountField(1, func(s *domain.AccountSnapshot) { s.Holder = "jdoe" })

	got, ok := c.GetAccount(1)
	assert.True(t, ok)
	assert.Equal(t, "jdoe", got.Holder)
}

func TestCache_AgentStatusRoundTrip(t *testing.T) {
	c := New(time.Minute, testLogger())
	_, ok := c.AgentStatus("agent-a")
	assert.False(t, ok)

	c.SetAgentStatus("agent-a", domain.AgentOnline)
	status, ok := c.AgentStatus("agent-a")
	assert.True(t, ok)
	assert.Equal(t, domain.AgentOnline, status)
}

func TestCache_ClearDropsAccountsAndFleetFreshness(t *testing.T) {
	c := New(time.Minute, testLogger())
	c.SetAccounts([]domain.AccountSnapshot{{AccountID: 1, Balance: 100}})
	c.SetAgentStatus("agent-a", domain.AgentOnline)

	c.Clear()

	_, ok := c.GetAccount(1)
	assert.False(t, ok)
	_, ok = c.GetAllAccounts()
	assert.False(t, ok)

	status, ok := c.AgentStatus("agent-a")
	assert.False(t, ok, "Clear drops agent statuses too")
	assert.Empty(t, status)
}

func TestCache_Stats(t *testing.T) {
	c := New(30*time.Second, testLogger())
	c.SetAccounts([]domain.AccountSnapshot{{AccountID: 1}, {AccountID: 2}})
	c.SetAgentStatus("agent-a", domain.AgentOnline)

	stats := c.Stats()
	assert.Equal(t, 2, stats.CachedAccounts)
	assert.Equal(t, 1, stats.CachedAgents)
	assert.Equal(t, 30, stats.TTLSeconds)
	assert.NotNil(t, stats.LastFullRefresh)
}
