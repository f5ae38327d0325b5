package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
)

func (s *Server) handleVersusFeatureStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.cfg.VersusEnabled})
}

func (s *Server) handleListVersus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"versus": s.cfg.VersusStore.All()})
}

type createVersusRequest struct {
	AccountA uint64           `json:"account_a"`
	AccountB uint64           `json:"account_b"`
	Symbol   string           `json:"symbol"`
	Lots     float64          `json:"lots"`
	Side     domain.TradeSide `json:"side"`
	TPUSDA   float64          `json:"tp_usd_a"`
	SLUSDA   float64          `json:"sl_usd_a"`
	TPUSDB   float64          `json:"tp_usd_b"`
	SLUSDB   float64          `json:"sl_usd_b"`

	ScheduledCongelar *time.Time `json:"scheduled_congelar,omitempty"`
	HolderA           string     `json:"holder_a,omitempty"`
	PropFirmA         string     `json:"prop_firm_a,omitempty"`
	HolderB           string     `json:"holder_b,omitempty"`
	PropFirmB         string     `json:"prop_firm_b,omitempty"`
}

func (s *Server) handleCreateVersus(w http.ResponseWriter, r *http.Request) {
	var req createVersusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AccountA == 0 || req.AccountB == 0 || req.AccountA == req.AccountB {
		writeError(w, apperr.New(apperr.InputValidation, "account_a and account_b must be distinct, non-zero accounts"))
		return
	}
	if !req.Side.IsValid() {
		writeError(w, apperr.New(apperr.InputValidation, "side must be BUY or SELL"))
		return
	}
	if req.Lots <= 0 || req.Symbol == "" {
		writeError(w, apperr.New(apperr.InputValidation, "symbol and a positive lots value are required"))
		return
	}

	rec := s.cfg.VersusStore.Create(store.CreateParams{
		AccountA: req.AccountA, AccountB: req.AccountB, Symbol: req.Symbol,
		Lots: req.Lots, Side: req.Side,
		TPUSDA: req.TPUSDA, SLUSDA: req.SLUSDA, TPUSDB: req.TPUSDB, SLUSDB: req.SLUSDB,
		ScheduledCongelar: req.ScheduledCongelar,
		HolderA:           req.HolderA, PropFirmA: req.PropFirmA,
		HolderB:           req.HolderB, PropFirmB: req.PropFirmB,
	})

	s.cfg.Bus.Emit(events.VersusCreated, "versus_engine", map[string]interface{}{
		"versus_id": rec.ID, "account_a": rec.AccountA, "account_b": rec.AccountB, "symbol": rec.Symbol,
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDeleteVersus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.cfg.VersusStore.Delete(id)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "persist versus deletion", err))
		return
	}
	if !deleted {
		writeError(w, apperr.New(apperr.NotFound, "versus record not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCongelar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.cfg.Engine.Congelar(r.Context(), id)
	if err != nil {
		s.cfg.Bus.Emit(events.VersusErrored, "versus_engine", map[string]interface{}{"versus_id": id, "step": "congelar", "error": err.Error()})
		writeError(w, err)
		return
	}
	s.cfg.Bus.Emit(events.VersusCongelado, "versus_engine", map[string]interface{}{
		"versus_id": rec.ID, "tickets_a": rec.TicketsA,
	})
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTransferir(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.cfg.Engine.Transferir(r.Context(), id)
	if err != nil {
		s.cfg.Bus.Emit(events.VersusErrored, "versus_engine", map[string]interface{}{"versus_id": id, "step": "transferir", "error": err.Error()})
		writeError(w, err)
		return
	}
	s.cfg.Bus.Emit(events.VersusTransferido, "versus_engine", map[string]interface{}{
		"versus_id": rec.ID, "tickets_a": rec.TicketsA, "tickets_b": rec.TicketsB,
	})
	writeJSON(w, http.StatusOK, rec)
}
