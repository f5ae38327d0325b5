package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

func TestTradeHistoryStore_GetUncachedAccountIsEmptyNotCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)

	summary := s.Get(555)
	assert.False(t, summary.Cached)
	assert.Empty(t, summary.Trades)
	assert.Nil(t, summary.LastSyncTime)
}

func TestTradeHistoryStore_MergeDedupesByPositionIDAndSortsDescending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)

	older := domain.TradeRecord{PositionID: 1, Symbol: "EURUSD", Profit: 10, Commission: 1, ExitTime: time.Now().Add(-time.Hour)}
	newer := domain.TradeRecord{PositionID: 2, Symbol: "EURUSD", Profit: 20, Commission: 2, ExitTime: time.Now()}

	summary := s.Merge(101, []domain.TradeRecord{older, newer})
	require.Len(t, summary.Trades, 2)
	assert.Equal(t, uint64(2), summary.Trades[0].PositionID, "newest exit time sorts first")
	assert.Equal(t, uint64(1), summary.Trades[1].PositionID)
	assert.Equal(t, 2, summary.TotalTrades)
	assert.InDelta(t, 30.0, summary.TotalProfit, 0.001)
	assert.InDelta(t, 3.0, summary.TotalCommission, 0.001)
	assert.True(t, summary.Cached)

	updatedOlder := domain.TradeRecord{PositionID: 1, Symbol: "EURUSD", Profit: 99, Commission: 1, ExitTime: older.ExitTime}
	resynced := s.Merge(101, []domain.TradeRecord{updatedOlder})
	assert.Len(t, resynced.Trades, 2, "re-submitting the same PositionID overwrites rather than duplicates")
	assert.InDelta(t, 119.0, resynced.TotalProfit, 0.001)
}

func TestTradeHistoryStore_LastSyncTimeAdvancesAfterMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)

	assert.True(t, s.LastSyncTime(202).IsZero(), "no sync yet")

	s.Merge(202, []domain.TradeRecord{{PositionID: 9, ExitTime: time.Now()}})
	assert.False(t, s.LastSyncTime(202).IsZero())
}

func TestTradeHistoryStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)
	s.Merge(303, []domain.TradeRecord{{PositionID: 1, Profit: 5, ExitTime: time.Now()}})

	reloaded, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)
	summary := reloaded.Get(303)
	assert.True(t, summary.Cached)
	assert.Equal(t, 1, summary.TotalTrades)
}

func TestTradeHistoryStore_ClearRemovesCachedHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewTradeHistoryStore(path, testLogger())
	require.NoError(t, err)
	s.Merge(404, []domain.TradeRecord{{PositionID: 1, ExitTime: time.Now()}})

	cleared, err := s.Clear(404)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.False(t, s.Get(404).Cached)

	clearedAgain, err := s.Clear(404)
	require.NoError(t, err)
	assert.False(t, clearedAgain, "clearing an already-empty account is idempotent")
}
