package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

// accountTrades is the on-disk shape for one account's cached trade
// history, mirroring the original's incremental cache record.
type accountTrades struct {
	Trades         []domain.TradeRecord `json:"trades"`
	TotalTrades    int                   `json:"total_trades"`
	TotalProfit    float64               `json:"total_profit"`
	TotalCommission float64              `json:"total_commission"`
	LastSyncTime   time.Time             `json:"last_sync_time"`
}

// TradeHistoryStore is the persisted, per-account incremental trade-history
// cache. New fetches from an agent are merged by PositionID so reruns are
// idempotent, then aggregate profit/commission are recomputed.
type TradeHistoryStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
	data map[string]*accountTrades
}

// NewTradeHistoryStore loads path (if present) and returns a ready store.
func NewTradeHistoryStore(path string, log zerolog.Logger) (*TradeHistoryStore, error) {
	s := &TradeHistoryStore{
		path: path,
		log:  log.With().Str("component", "trade_history_store").Logger(),
		data: make(map[string]*accountTrades),
	}
	if err := loadJSON(path, &s.data); err != nil {
		return nil, fmt.Errorf("load trade history store: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]*accountTrades)
	}
	s.log.Info().Int("count", len(s.data)).Msg("loaded trade history cache")
	return s, nil
}

// LastSyncTime returns the last successful sync cursor for accountID, the
// zero time if the account has never synced.
func (s *TradeHistoryStore) LastSyncTime(accountID uint64) time.Time {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.data[key]; ok {
		return rec.LastSyncTime
	}
	return time.Time{}
}

// Summary is the merged view returned to API callers.
type Summary struct {
	AccountID       uint64               `json:"account_number"`
	Trades          []domain.TradeRecord `json:"trades"`
	TotalTrades     int                  `json:"total_trades"`
	TotalProfit     float64              `json:"total_profit"`
	TotalCommission float64              `json:"total_commission"`
	LastSyncTime    *time.Time           `json:"last_sync_time"`
	Cached          bool                 `json:"cached"`
}

// Get returns the cached summary for accountID without fetching anything
// new.
func (s *TradeHistoryStore) Get(accountID uint64) Summary {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[key]
	if !ok {
		return Summary{AccountID: accountID, Trades: []domain.TradeRecord{}, Cached: false}
	}
	last := rec.LastSyncTime
	return Summary{
		AccountID:       accountID,
		Trades:          rec.Trades,
		TotalTrades:     rec.TotalTrades,
		TotalProfit:     rec.TotalProfit,
		TotalCommission: rec.TotalCommission,
		LastSyncTime:    &last,
		Cached:          true,
	}
}

// Merge folds newTrades into the cached set for accountID, keyed by
// PositionID (new entries overwrite old ones with the same ID), recomputes
// aggregate totals, and persists the result.
func (s *TradeHistoryStore) Merge(accountID uint64, newTrades []domain.TradeRecord) Summary {
	key := fmt.Sprintf("%d", accountID)

	s.mu.Lock()
	existing, ok := s.data[key]
	byID := make(map[uint64]domain.TradeRecord)
	if ok {
		for _, t := range existing.Trades {
			byID[t.PositionID] = t
		}
	}
	for _, t := range newTrades {
		byID[t.PositionID] = t
	}

	merged := make([]domain.TradeRecord, 0, len(byID))
	for _, t := range byID {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ExitTime.After(merged[j].ExitTime)
	})

	profits := make([]float64, len(merged))
	commissions := make([]float64, len(merged))
	for i, t := range merged {
		profits[i] = t.Profit
		commissions[i] = t.Commission
	}

	now := time.Now().UTC()
	rec := &accountTrades{
		Trades:          merged,
		TotalTrades:     len(merged),
		TotalProfit:      round2(floats.Sum(profits)),
		TotalCommission:  round2(floats.Sum(commissions)),
		LastSyncTime:    now,
	}
	s.data[key] = rec
	snapshot := cloneAccountTrades(s.data)
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	s.log.Info().Uint64("account_id", accountID).Int("new_trades", len(newTrades)).
		Int("total_trades", rec.TotalTrades).Msg("merged trade history")

	return Summary{
		AccountID:       accountID,
		Trades:          rec.Trades,
		TotalTrades:     rec.TotalTrades,
		TotalProfit:     rec.TotalProfit,
		TotalCommission: rec.TotalCommission,
		LastSyncTime:    &now,
		Cached:          true,
	}
}

// Clear drops the cached history for one account.
func (s *TradeHistoryStore) Clear(accountID uint64) (bool, error) {
	key := fmt.Sprintf("%d", accountID)
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.data, key)
	snapshot := cloneAccountTrades(s.data)
	s.mu.Unlock()

	err := saveJSON(s.path, snapshot)
	logOrNil(s.log, "save", s.path, err)
	return true, err
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func cloneAccountTrades(m map[string]*accountTrades) map[string]*accountTrades {
	out := make(map[string]*accountTrades, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}
