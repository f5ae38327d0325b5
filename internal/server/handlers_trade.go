package server

import (
	"net/http"

	"github.com/sinfolonokojo/mt5-backend/internal/agentclient"
	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

// resolveClient looks up the agent owning accountID and returns a client
// bound to it, repopulating the account map via a full fetch on a miss.
func (s *Server) resolveClient(r *http.Request, accountID uint64) (*agentclient.Client, error) {
	name, ok := s.cfg.AccountMap.Get(accountID)
	if !ok {
		s.cfg.Aggregator.FetchAllAgents(r.Context())
		name, ok = s.cfg.AccountMap.Get(accountID)
		if !ok {
			return nil, apperr.New(apperr.NotFound, "account not found on any agent")
		}
	}
	agent, ok := s.cfg.Registry.Resolve(name)
	if !ok {
		return nil, apperr.New(apperr.Internal, "owning agent no longer registered")
	}
	return s.cfg.NewAgentClient(agent.BaseURL), nil
}

type tradeOpenRequest struct {
	Symbol  string          `json:"symbol"`
	Side    domain.TradeSide `json:"side"`
	Lots    float64         `json:"lots"`
	TP      *float64        `json:"tp,omitempty"`
	SL      *float64        `json:"sl,omitempty"`
	Comment string          `json:"comment,omitempty"`
}

func (s *Server) handleTradeOpen(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req tradeOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.Side.IsValid() || req.Lots <= 0 || req.Symbol == "" {
		writeError(w, apperr.New(apperr.InputValidation, "symbol, side and lots are required"))
		return
	}

	client, err := s.resolveClient(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := client.OpenPosition(r.Context(), agentclient.OpenPositionRequest{
		Symbol: req.Symbol, Side: req.Side, Lots: req.Lots,
		TP: req.TP, SL: req.SL, Comment: req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.cfg.SmartCache.InvalidateAccount(id)
	s.cfg.Bus.Emit(events.TradeOpened, "trade_proxy", map[string]interface{}{
		"account_id": id, "symbol": req.Symbol, "side": req.Side, "lots": req.Lots, "ticket": result.Ticket,
	})
	writeJSON(w, http.StatusOK, result)
}

type tradeCloseRequest struct {
	Ticket uint64 `json:"ticket"`
}

func (s *Server) handleTradeClose(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req tradeCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ticket == 0 {
		writeError(w, apperr.New(apperr.InputValidation, "ticket is required"))
		return
	}

	client, err := s.resolveClient(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := client.ClosePosition(r.Context(), agentclient.ClosePositionRequest{Ticket: req.Ticket})
	if err != nil {
		writeError(w, err)
		return
	}

	s.cfg.SmartCache.InvalidateAccount(id)
	s.cfg.Bus.Emit(events.TradeClosed, "trade_proxy", map[string]interface{}{
		"account_id": id, "ticket": req.Ticket, "profit": result.Profit,
	})
	writeJSON(w, http.StatusOK, result)
}

type tradeModifyRequest struct {
	Ticket uint64   `json:"ticket"`
	TP     *float64 `json:"tp,omitempty"`
	SL     *float64 `json:"sl,omitempty"`
}

func (s *Server) handleTradeModify(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req tradeModifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ticket == 0 {
		writeError(w, apperr.New(apperr.InputValidation, "ticket is required"))
		return
	}

	client, err := s.resolveClient(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := client.ModifyPosition(r.Context(), agentclient.ModifyPositionRequest{
		Ticket: req.Ticket, TP: req.TP, SL: req.SL,
	}); err != nil {
		writeError(w, err)
		return
	}

	s.cfg.SmartCache.InvalidateAccount(id)
	s.cfg.Bus.Emit(events.TradeModified, "trade_proxy", map[string]interface{}{"account_id": id, "ticket": req.Ticket})
	writeJSON(w, http.StatusOK, map[string]string{"status": "modified"})
}

// handlePositions downgrades connectivity errors (timeout, upstream
// failure) and an account that resolves to no agent to an empty list with a
// 200, since a disconnected terminal legitimately has "no known positions"
// from the caller's point of view rather than being a hard failure. Other
// errors from the agent are returned as errors.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	client, err := s.resolveClient(r, id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"positions": []domain.Position{}})
		return
	}
	positions, err := client.Positions(r.Context())
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.Timeout || kind == apperr.UpstreamFailure {
			writeJSON(w, http.StatusOK, map[string]interface{}{"positions": []domain.Position{}})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}
