package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

func parseAccountID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.InputValidation, "invalid account id", err)
	}
	return id, nil
}

// overlay stamps the phase/vs_group local overlays onto a freshly fetched
// or cached snapshot, since agents themselves know nothing about these
// backend-local labels.
func (s *Server) overlay(acc domain.AccountSnapshot) domain.AccountSnapshot {
	acc.Phase = s.cfg.PhaseStore.Get(acc.AccountID)
	acc.VSGroup = s.cfg.VSStore.Get(acc.AccountID)
	return acc
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	forceRefresh := r.URL.Query().Get("force_refresh") == "true"

	var accounts []domain.AccountSnapshot
	if !forceRefresh {
		if cached, ok := s.cfg.SmartCache.GetAllAccounts(); ok {
			accounts = cached
		}
	}

	if accounts == nil {
		fetched, statuses := s.cfg.Aggregator.FetchAllAgents(r.Context())
		accounts = fetched
		s.cfg.SmartCache.SetAccounts(fetched)
		for _, st := range statuses {
			s.cfg.SmartCache.SetAgentStatus(st.AgentName, st.Status)
		}
		s.cfg.Bus.Emit(events.AccountsRefreshed, "aggregator", map[string]interface{}{"accounts": len(fetched)})
	}

	resp := domain.AggregatedResponse{LastRefresh: time.Now().UTC()}
	for _, acc := range accounts {
		acc = s.overlay(acc)
		resp.Accounts = append(resp.Accounts, acc)
		resp.TotalAccounts++
		resp.TotalBalance += acc.Balance
		if acc.Status == domain.AccountConnected {
			resp.ConnectedAccounts++
		} else {
			resp.DisconnectedAccounts++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if cached, ok := s.cfg.SmartCache.GetAccount(id); ok {
		writeJSON(w, http.StatusOK, s.overlay(cached))
		return
	}

	accounts, statuses := s.cfg.Aggregator.FetchAllAgents(r.Context())
	s.cfg.SmartCache.SetAccounts(accounts)
	for _, st := range statuses {
		s.cfg.SmartCache.SetAgentStatus(st.AgentName, st.Status)
	}
	for _, acc := range accounts {
		if acc.AccountID == id {
			writeJSON(w, http.StatusOK, s.overlay(acc))
			return
		}
	}
	writeError(w, apperr.New(apperr.NotFound, "account not found on any agent"))
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	_, statuses := s.cfg.Aggregator.FetchAllAgents(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": statuses})
}

type phaseUpdateRequest struct {
	Phase string `json:"phase"`
}

func (s *Server) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req phaseUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Phase == "" {
		writeError(w, apperr.New(apperr.InputValidation, "phase must not be empty"))
		return
	}
	if err := s.cfg.PhaseStore.Update(id, req.Phase); err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "persist phase", err))
		return
	}
	s.cfg.SmartCache.UpdateAccountField(id, func(acc *domain.AccountSnapshot) { acc.Phase = req.Phase })
	writeJSON(w, http.StatusOK, map[string]string{"phase": req.Phase})
}

type vsUpdateRequest struct {
	VSGroup string `json:"vs_group"`
}

func (s *Server) handleUpdateVS(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req vsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ok, message, err := s.cfg.VSStore.Update(id, req.VSGroup)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "persist vs group", err))
		return
	}
	if !ok {
		// The two-account cap is a request-shape rejection against current
		// state, not a lost race on a resource - spec pins it to 400.
		writeError(w, apperr.New(apperr.InputValidation, message))
		return
	}
	s.cfg.SmartCache.UpdateAccountField(id, func(acc *domain.AccountSnapshot) { acc.VSGroup = req.VSGroup })
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	forceRefresh := r.URL.Query().Get("force_refresh") == "true"

	if !forceRefresh {
		summary := s.cfg.TradeHistory.Get(id)
		if summary.Cached {
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}
	s.syncTradeHistory(w, r, id)
}

func (s *Server) handleTradeHistorySync(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.syncTradeHistory(w, r, id)
}

// syncTradeHistory passes an empty cursor when there is no prior sync, which
// the agent client turns into the documented 30-day initial fetch window.
func (s *Server) syncTradeHistory(w http.ResponseWriter, r *http.Request, id uint64) {
	since := s.cfg.TradeHistory.LastSyncTime(id)
	fromDate := ""
	if !since.IsZero() {
		fromDate = since.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	trades, err := s.cfg.Aggregator.FetchTradeHistory(r.Context(), id, fromDate)
	if err != nil {
		writeError(w, err)
		return
	}
	summary := s.cfg.TradeHistory.Merge(id, trades)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	accounts, statuses := s.cfg.Aggregator.FetchAllAgents(r.Context())
	s.cfg.SmartCache.SetAccounts(accounts)
	for _, st := range statuses {
		s.cfg.SmartCache.SetAgentStatus(st.AgentName, st.Status)
	}
	s.cfg.Bus.Emit(events.AccountsRefreshed, "manual_refresh", map[string]interface{}{"accounts": len(accounts)})
	writeJSON(w, http.StatusOK, map[string]int{"accounts_refreshed": len(accounts), "agents": len(statuses)})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.SmartCache.Stats())
}

// handleSchedulerStatus reports each background job's last-run outcome, so
// an operator can tell the Versus scan is actually ticking. Reports an
// empty list rather than erroring when no scheduler is wired.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.cfg.Scheduler.Statuses()})
}

func (s *Server) handleSheetsSync(w http.ResponseWriter, r *http.Request) {
	accounts, ok := s.cfg.SmartCache.GetAllAccounts()
	if !ok {
		fetched, statuses := s.cfg.Aggregator.FetchAllAgents(r.Context())
		accounts = fetched
		s.cfg.SmartCache.SetAccounts(fetched)
		for _, st := range statuses {
			s.cfg.SmartCache.SetAgentStatus(st.AgentName, st.Status)
		}
	}
	overlaid := make([]domain.AccountSnapshot, 0, len(accounts))
	for _, acc := range accounts {
		overlaid = append(overlaid, s.overlay(acc))
	}
	if err := s.cfg.Spreadsheet.Sync(r.Context(), overlaid); err != nil {
		writeError(w, apperr.Wrap(apperr.UpstreamFailure, "spreadsheet export failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accounts_exported": len(overlaid)})
}
