// Package domain holds the value types shared across the backend: agents,
// account snapshots, and Versus hedge records. Nothing here talks to a
// network or a disk.
package domain

import "time"

// Agent is a remote process fronting one trading terminal session.
// Immutable for the process lifetime once loaded from configuration.
type Agent struct {
	Name    string
	BaseURL string
}

// AgentStatus reports the last-observed reachability of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentTimeout AgentStatus = "timeout"
	AgentError   AgentStatus = "error"
)

// ConnectionStatus is the account-level connectivity reported by the agent,
// distinct from AgentStatus (an agent can be online but report an account
// that lost its terminal session).
type ConnectionStatus string

const (
	AccountConnected    ConnectionStatus = "connected"
	AccountDisconnected ConnectionStatus = "disconnected"
)

// AccountSnapshot is the value-typed, point-in-time view of one account as
// delivered to API clients. Immutable once cached.
type AccountSnapshot struct {
	AccountID       uint64           `json:"account_id"`
	DisplayName     string           `json:"display_name"`
	Balance         float64          `json:"balance"`
	Status          ConnectionStatus `json:"status"`
	DaysOperating   uint32           `json:"days_operating"`
	HasOpenPosition bool             `json:"has_open_position"`
	OwnerAgent      string           `json:"owner_agent"`
	LastUpdated     time.Time        `json:"last_updated"`
	Holder          string           `json:"holder"`
	PropFirm        string           `json:"prop_firm"`
	InitialBalance  float64          `json:"initial_balance"`
	Phase           string           `json:"phase"`
	VSGroup         string           `json:"vs_group,omitempty"`
}

// AgentStatusEntry is one row of the per-agent status vector returned by
// /api/agents/status.
type AgentStatusEntry struct {
	AgentName     string      `json:"agent_name"`
	AgentURL      string      `json:"agent_url"`
	Status        AgentStatus `json:"status"`
	AccountsCount int         `json:"accounts_count"`
	LastChecked   time.Time   `json:"last_checked"`
}

// AggregatedResponse is the shape returned by GET /api/accounts.
type AggregatedResponse struct {
	Accounts             []AccountSnapshot `json:"accounts"`
	TotalAccounts        int               `json:"total_accounts"`
	ConnectedAccounts    int               `json:"connected_accounts"`
	DisconnectedAccounts int               `json:"disconnected_accounts"`
	TotalBalance         float64           `json:"total_balance"`
	LastRefresh          time.Time         `json:"last_refresh"`
}

// TradeSide is the direction of an opened position.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// IsValid reports whether s is one of the two recognised sides.
func (s TradeSide) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side.
func (s TradeSide) Opposite() TradeSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// VersusStatus is the Versus hedge workflow's state.
type VersusStatus string

const (
	VersusPending     VersusStatus = "pending"
	VersusCongelado   VersusStatus = "congelado"
	VersusTransferido VersusStatus = "transferido"
	VersusCompleted   VersusStatus = "completed"
	VersusError       VersusStatus = "error"
)

// VersusRecord is the persisted state of one Versus hedge workflow.
// See spec §3 for the field-level invariants enforced by the engine.
type VersusRecord struct {
	ID       string       `json:"id"`
	AccountA uint64       `json:"account_a"`
	AccountB uint64       `json:"account_b"`
	Symbol   string       `json:"symbol"`
	Lots     float64      `json:"lots"`
	Side     TradeSide    `json:"side"`
	TPUSDA   float64      `json:"tp_usd_a"`
	SLUSDA   float64      `json:"sl_usd_a"`
	TPUSDB   float64      `json:"tp_usd_b"`
	SLUSDB   float64      `json:"sl_usd_b"`
	Status   VersusStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ScheduledCongelar   *time.Time `json:"scheduled_congelar,omitempty"`
	ScheduledTransferir *time.Time `json:"scheduled_transferir,omitempty"`

	TicketsA []uint64 `json:"tickets_a"`
	TicketsB []uint64 `json:"tickets_b"`

	ErrorMessage *string `json:"error_message,omitempty"`

	HolderA   string `json:"holder_a,omitempty"`
	PropFirmA string `json:"prop_firm_a,omitempty"`
	HolderB   string `json:"holder_b,omitempty"`
	PropFirmB string `json:"prop_firm_b,omitempty"`
}

// Quote is the pricing information an agent reports for a symbol, used to
// convert USD thresholds to pips/prices.
type Quote struct {
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Point          float64 `json:"point"`
	PipValue       float64 `json:"pip_value"`
	TradeTickValue float64 `json:"trade_tick_value"`
	SpreadPips     float64 `json:"spread_pips"`
}

// Position is one open position as reported by an agent's /positions
// endpoint.
type Position struct {
	Ticket       uint64    `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Type         TradeSide `json:"type"`
	Lots         float64   `json:"lots"`
	PriceOpen    float64   `json:"price_open"`
	PriceCurrent float64   `json:"price_current"`
	Commission   float64   `json:"commission"`
	Profit       float64   `json:"profit"`
	Comment      string    `json:"comment,omitempty"`
}

// TradeRecord is one historical trade as reported by an agent's
// /trade-history endpoint, keyed by PositionID for incremental merge.
type TradeRecord struct {
	PositionID uint64    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Side       TradeSide `json:"side"`
	Lots       float64   `json:"lots"`
	OpenPrice  float64   `json:"open_price"`
	ClosePrice float64   `json:"close_price"`
	Profit     float64   `json:"profit"`
	Commission float64   `json:"commission"`
	ExitTime   time.Time `json:"exit_time"`
}
