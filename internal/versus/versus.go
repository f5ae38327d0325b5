// Package versus implements the Versus hedge state machine: Congelar opens
// a BUY+SELL straddle on Account A, Transferir closes the counter-leg and
// mirrors the remaining position onto Account B as two half-lot legs.
package versus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/accountmap"
	"github.com/sinfolonokojo/mt5-backend/internal/agentclient"
	"github.com/sinfolonokojo/mt5-backend/internal/agentregistry"
	"github.com/sinfolonokojo/mt5-backend/internal/aggregator"
	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/cache"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/pips"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
)

const agentCallTimeout = 30 * time.Second

// ClientFactory builds an agentclient.Client for a given base URL.
type ClientFactory func(baseURL string) *agentclient.Client

// Engine executes the Congelar and Transferir steps against the agent
// fleet, sharing its code between the HTTP API and the scheduler.
type Engine struct {
	registry  *agentregistry.Registry
	newClient ClientFactory
	accounts  *accountmap.Map
	aggr      *aggregator.Aggregator
	versus    *store.VersusStore
	smart     *cache.Cache
	log       zerolog.Logger
}

// New builds an Engine.
func New(registry *agentregistry.Registry, newClient ClientFactory, accounts *accountmap.Map, aggr *aggregator.Aggregator, versusStore *store.VersusStore, smart *cache.Cache, log zerolog.Logger) *Engine {
	return &Engine{
		registry:  registry,
		newClient: newClient,
		accounts:  accounts,
		aggr:      aggr,
		versus:    versusStore,
		smart:     smart,
		log:       log.With().Str("component", "versus_engine").Logger(),
	}
}

func (e *Engine) resolveOwner(ctx context.Context, accountID uint64) (domain.Agent, error) {
	name, ok := e.accounts.Get(accountID)
	if !ok {
		e.aggr.FetchAllAgents(ctx)
		name, ok = e.accounts.Get(accountID)
		if !ok {
			return domain.Agent{}, apperr.New(apperr.NotFound, fmt.Sprintf("account %d not found on any agent", accountID))
		}
	}
	agent, ok := e.registry.Resolve(name)
	if !ok {
		return domain.Agent{}, apperr.Wrap(apperr.Internal, "owning agent no longer registered", fmt.Errorf("agent %q", name))
	}
	return agent, nil
}

func fail(versusStore *store.VersusStore, id, message string) error {
	msg := message
	_, _ = versusStore.UpdateStatus(id, domain.VersusError, nil, nil, &msg)
	return apperr.New(apperr.PreconditionFailed, message)
}

// Congelar executes step 1: open BUY and SELL on Account A, with rollback
// of the BUY leg if the SELL leg fails to open.
func (e *Engine) Congelar(ctx context.Context, id string) (*domain.VersusRecord, error) {
	rec, err := e.versus.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.VersusPending {
		return nil, apperr.New(apperr.PreconditionFailed, fmt.Sprintf("versus %s is %s, must be pending to congelar", id, rec.Status))
	}

	agentA, err := e.resolveOwner(ctx, rec.AccountA)
	if err != nil {
		return nil, err
	}
	client := e.newClient(agentA.BaseURL)

	quoteCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	quote, err := client.Quote(quoteCtx, rec.Symbol)
	cancel()
	if err != nil {
		return nil, fail(e.versus, id, fmt.Sprintf("quote fetch failed: %v", err))
	}
	pipValue := pips.ResolvePipValue(rec.Symbol, quote.PipValue)
	if pipValue <= 0 || quote.TradeTickValue == 0 || quote.Point == 0 {
		return nil, fail(e.versus, id, "quote missing pip_value/trade_tick_value/point")
	}

	usdPerPip := pips.USDPerPip(quote.TradeTickValue, pipValue, quote.Point, rec.Lots)
	if usdPerPip == 0 {
		return nil, fail(e.versus, id, "unable to derive usd_per_pip from quote")
	}
	tpPips := pips.USDToPips(rec.TPUSDA, usdPerPip)
	slPips := pips.USDToPips(rec.SLUSDA, usdPerPip)

	openCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	buyResult, err := client.OpenPosition(openCtx, agentclient.OpenPositionRequest{
		Symbol:  rec.Symbol,
		Side:    domain.SideBuy,
		Lots:    rec.Lots,
		TP:      ptr(tpPips),
		SL:      ptr(slPips),
		Comment: fmt.Sprintf("Versus-%s-BUY", id),
	})
	cancel()
	if err != nil {
		return nil, fail(e.versus, id, fmt.Sprintf("open BUY failed: %v", err))
	}

	openCtx, cancel = context.WithTimeout(ctx, agentCallTimeout)
	sellResult, err := client.OpenPosition(openCtx, agentclient.OpenPositionRequest{
		Symbol:  rec.Symbol,
		Side:    domain.SideSell,
		Lots:    rec.Lots,
		TP:      ptr(tpPips),
		SL:      ptr(slPips),
		Comment: fmt.Sprintf("Versus-%s-SELL", id),
	})
	cancel()
	if err != nil {
		closeCtx, cancelClose := context.WithTimeout(ctx, agentCallTimeout)
		_, rollbackErr := client.ClosePosition(closeCtx, agentclient.ClosePositionRequest{Ticket: buyResult.Ticket})
		cancelClose()
		if rollbackErr != nil {
			e.log.Error().Err(rollbackErr).Str("versus_id", id).Uint64("ticket", buyResult.Ticket).
				Msg("rollback of BUY leg failed after SELL open error")
		}
		return nil, fail(e.versus, id, fmt.Sprintf("open SELL failed: %v", err))
	}

	updated, err := e.versus.UpdateStatus(id, domain.VersusCongelado, []uint64{buyResult.Ticket, sellResult.Ticket}, nil, nil)
	if err != nil {
		return nil, err
	}
	e.smart.InvalidateAccount(rec.AccountA)
	e.log.Info().Str("versus_id", id).Uint64("buy_ticket", buyResult.Ticket).
		Uint64("sell_ticket", sellResult.Ticket).Msg("congelar complete")
	return updated, nil
}

// Transferir executes step 2: close A's counter-leg, re-peg A's remaining
// leg, and open two half-lot legs on Account B.
func (e *Engine) Transferir(ctx context.Context, id string) (*domain.VersusRecord, error) {
	rec, err := e.versus.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.VersusCongelado {
		return nil, apperr.New(apperr.PreconditionFailed, fmt.Sprintf("versus %s is %s, must be congelado to transferir", id, rec.Status))
	}
	if len(rec.TicketsA) != 2 {
		return nil, apperr.New(apperr.PreconditionFailed, fmt.Sprintf("expected 2 tickets on account A, found %d", len(rec.TicketsA)))
	}

	agentA, err := e.resolveOwner(ctx, rec.AccountA)
	if err != nil {
		return nil, err
	}
	agentB, err := e.resolveOwner(ctx, rec.AccountB)
	if err != nil {
		return nil, err
	}
	clientA := e.newClient(agentA.BaseURL)
	clientB := e.newClient(agentB.BaseURL)

	posCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	positions, posErr := clientA.Positions(posCtx)
	cancel()
	if posErr != nil {
		e.log.Warn().Err(posErr).Str("versus_id", id).Msg("positions fetch failed, proceeding without commission data")
		positions = nil
	}

	quoteCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	quote, err := clientA.Quote(quoteCtx, rec.Symbol)
	cancel()
	if err != nil {
		return nil, fail(e.versus, id, fmt.Sprintf("quote fetch failed: %v", err))
	}

	var currentPrice float64
	if rec.Side == domain.SideBuy {
		currentPrice = quote.Bid
	} else {
		currentPrice = quote.Ask
	}
	if currentPrice <= 0 {
		return nil, fail(e.versus, id, "quote reported non-positive reference price")
	}

	pipValue := pips.ResolvePipValue(rec.Symbol, quote.PipValue)
	if pipValue <= 0 || quote.TradeTickValue == 0 || quote.Point == 0 {
		return nil, fail(e.versus, id, "quote missing pip_value/trade_tick_value/point")
	}
	usdPerPip := pips.USDPerPip(quote.TradeTickValue, pipValue, quote.Point, rec.Lots)
	if usdPerPip == 0 {
		return nil, fail(e.versus, id, "unable to derive usd_per_pip from quote")
	}

	commissionPerLot := 0.0
	for _, p := range positions {
		if p.Commission != 0 {
			commissionPerLot = p.Commission
			break
		}
	}
	forwardCommissionUSD := commissionPerLot * rec.Lots * 2
	commissionPips := pips.RoundPips(pips.USDToPips(forwardCommissionUSD, usdPerPip))

	tpPipsB := pips.RoundPips(pips.USDToPips(rec.TPUSDB, usdPerPip))
	slPipsB := pips.RoundPips(pips.USDToPips(rec.SLUSDB, usdPerPip))
	spread := pips.RoundPips(quote.SpreadPips)

	class := pips.ClassifySymbol(rec.Symbol)

	var ticketToClose uint64
	var remainingTicket uint64
	var tpPriceA, slPriceA float64
	var bSide domain.TradeSide
	var tpPipsBSend, slPipsBSend float64

	if rec.Side == domain.SideBuy {
		ticketToClose, remainingTicket = rec.TicketsA[1], rec.TicketsA[0]
		newTPPipsA := slPipsB - spread - commissionPips
		newSLPipsA := tpPipsB - spread - commissionPips
		tpPriceA = currentPrice + newTPPipsA*pipValue
		slPriceA = currentPrice - newSLPipsA*pipValue
		bSide = domain.SideSell
		tpPipsBSend = tpPipsB - spread - commissionPips
		slPipsBSend = slPipsB - spread - commissionPips
	} else {
		ticketToClose, remainingTicket = rec.TicketsA[0], rec.TicketsA[1]
		newTPPipsA := slPipsB + spread - commissionPips
		newSLPipsA := tpPipsB + spread - commissionPips
		tpPriceA = currentPrice - newTPPipsA*pipValue
		slPriceA = currentPrice + newSLPipsA*pipValue
		bSide = domain.SideBuy
		tpPipsBSend = tpPipsB + spread - commissionPips
		slPipsBSend = slPipsB + spread - commissionPips
	}
	tpPriceA = pips.RoundPrice(tpPriceA, class)
	slPriceA = pips.RoundPrice(slPriceA, class)

	closeCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	_, err = clientA.ClosePosition(closeCtx, agentclient.ClosePositionRequest{Ticket: ticketToClose})
	cancel()
	if err != nil {
		return nil, fail(e.versus, id, fmt.Sprintf("close counter-leg failed: %v", err))
	}

	modifyCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
	modErr := clientA.ModifyPosition(modifyCtx, agentclient.ModifyPositionRequest{
		Ticket: remainingTicket,
		TP:     ptr(tpPriceA),
		SL:     ptr(slPriceA),
	})
	cancel()
	if modErr != nil {
		e.log.Warn().Err(modErr).Str("versus_id", id).Uint64("ticket", remainingTicket).
			Msg("modify of remaining A leg failed, leaving position without fresh stops")
	}

	halfLots := pips.RoundLots(rec.Lots / 2)
	ticketsB := make([]uint64, 0, 2)
	for i := 1; i <= 2; i++ {
		openCtx, cancel := context.WithTimeout(ctx, agentCallTimeout)
		result, err := clientB.OpenPosition(openCtx, agentclient.OpenPositionRequest{
			Symbol:  rec.Symbol,
			Side:    bSide,
			Lots:    halfLots,
			TP:      ptr(tpPipsBSend),
			SL:      ptr(slPipsBSend),
			Comment: fmt.Sprintf("Versus-%s-B%d", id, i),
		})
		cancel()
		if err != nil {
			return nil, fail(e.versus, id, fmt.Sprintf("open leg %d on account B failed: %v", i, err))
		}
		ticketsB = append(ticketsB, result.Ticket)
	}

	updated, err := e.versus.UpdateStatus(id, domain.VersusTransferido, []uint64{remainingTicket}, ticketsB, nil)
	if err != nil {
		return nil, err
	}
	e.smart.InvalidateAccount(rec.AccountA)
	e.smart.InvalidateAccount(rec.AccountB)
	e.log.Info().Str("versus_id", id).Uint64("remaining_a", remainingTicket).
		Interface("tickets_b", ticketsB).Msg("transferir complete")
	return updated, nil
}

func ptr(v float64) *float64 { return &v }
