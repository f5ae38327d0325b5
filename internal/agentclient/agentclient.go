// Package agentclient is the outbound HTTP client this backend uses to talk
// to one remote trading-account agent. Every call takes a context so the
// caller (the aggregator's fan-out, or a single-account trade proxy) controls
// the deadline.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

// Client talks to a single agent's HTTP API over the shared pooled
// transport.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New builds a Client bound to one agent's base URL, sharing httpClient
// (normally httppool.Get()) across every agent so the pool limits apply
// fleet-wide rather than per-agent.
func New(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		log:     log.With().Str("component", "agentclient").Str("agent_url", baseURL).Logger(),
	}
}

type envelope struct {
	Detail string          `json:"detail"`
	Data   json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "encode agent request", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "build agent request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.Timeout, "agent request timed out", err)
		}
		return apperr.Wrap(apperr.UpstreamFailure, "agent unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "read agent response", err)
	}

	if resp.StatusCode >= 400 {
		detail := fmt.Sprintf("agent returned status %d", resp.StatusCode)
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Detail != "" {
			detail = env.Detail
		}
		return apperr.New(apperr.UpstreamFailure, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "decode agent response", err)
	}
	return nil
}

// AccountsResponse is the body of GET /accounts on an agent.
type AccountsResponse struct {
	Accounts []domain.AccountSnapshot `json:"accounts"`
}

// Accounts fetches the current account snapshots known to this agent.
func (c *Client) Accounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	var out AccountsResponse
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Refresh asks the agent to force a fresh terminal read, used by the
// aggregator's auto-recovery path once an agent crosses the failure
// threshold.
func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/refresh", nil, nil)
}

// TradeHistoryResponse is the body of GET /trade-history on an agent.
type TradeHistoryResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// initialTradeHistoryDays is the lookback window requested when there is no
// prior sync cursor, per spec §4.6.
const initialTradeHistoryDays = 30

// TradeHistory fetches closed trades for the agent's terminal. fromDate is
// an opaque cursor (RFC3339 timestamp, the `from_date` query param); an
// empty string means there is no prior sync, and the agent is asked for the
// last initialTradeHistoryDays days instead via the `days` query param.
func (c *Client) TradeHistory(ctx context.Context, fromDate string) ([]domain.TradeRecord, error) {
	var path string
	if fromDate != "" {
		path = "/trade-history?from_date=" + fromDate
	} else {
		path = fmt.Sprintf("/trade-history?days=%d", initialTradeHistoryDays)
	}
	var out TradeHistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Trades, nil
}

// PositionsResponse is the body of GET /positions on an agent.
type PositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// Positions fetches currently open positions on the agent's terminal.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var out PositionsResponse
	if err := c.do(ctx, http.MethodGet, "/positions", nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// OpenPositionRequest is the body sent to POST /positions/open.
type OpenPositionRequest struct {
	Symbol  string           `json:"symbol"`
	Side    domain.TradeSide `json:"side"`
	Lots    float64          `json:"lots"`
	TP      *float64         `json:"tp,omitempty"`
	SL      *float64         `json:"sl,omitempty"`
	Comment string           `json:"comment,omitempty"`
}

// OpenPositionResult is the response body of POST /positions/open.
type OpenPositionResult struct {
	Ticket     uint64  `json:"ticket"`
	PriceOpen  float64 `json:"price_open"`
}

// OpenPosition opens a new market position on the agent's terminal.
func (c *Client) OpenPosition(ctx context.Context, req OpenPositionRequest) (OpenPositionResult, error) {
	var out OpenPositionResult
	if err := c.do(ctx, http.MethodPost, "/positions/open", req, &out); err != nil {
		return OpenPositionResult{}, err
	}
	return out, nil
}

// ClosePositionRequest is the body sent to POST /positions/close.
type ClosePositionRequest struct {
	Ticket uint64 `json:"ticket"`
}

// ClosePositionResult is the response body of POST /positions/close.
type ClosePositionResult struct {
	Ticket     uint64  `json:"ticket"`
	PriceClose float64 `json:"price_close"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
}

// ClosePosition closes an open position by ticket.
func (c *Client) ClosePosition(ctx context.Context, req ClosePositionRequest) (ClosePositionResult, error) {
	var out ClosePositionResult
	if err := c.do(ctx, http.MethodPost, "/positions/close", req, &out); err != nil {
		return ClosePositionResult{}, err
	}
	return out, nil
}

// ModifyPositionRequest is the body sent to PUT /positions/modify.
type ModifyPositionRequest struct {
	Ticket uint64   `json:"ticket"`
	TP     *float64 `json:"tp,omitempty"`
	SL     *float64 `json:"sl,omitempty"`
}

// ModifyPosition updates the TP/SL of an open position.
func (c *Client) ModifyPosition(ctx context.Context, req ModifyPositionRequest) error {
	return c.do(ctx, http.MethodPut, "/positions/modify", req, nil)
}

// Quote fetches current pricing and instrument metadata for symbol on the
// agent's terminal, used for the USD-to-pip conversion math.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	path := "/quote/" + symbol
	var out domain.Quote
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.Quote{}, err
	}
	return out, nil
}
