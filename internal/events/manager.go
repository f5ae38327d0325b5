// Package events is the process-wide event bus: the HTTP handlers (account
// reads and refreshes, the trade proxy, the Versus commands) emit
// already-shaped Event values, which fan out to zero or more Sinks. The
// aggregator, the Versus engine and the scheduler emit nothing themselves. A failing sink is
// logged and dropped — it never blocks the caller.
package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Type identifies the kind of event emitted.
type Type string

const (
	AccountsRefreshed  Type = "ACCOUNTS_REFRESHED"
	AgentStatusChanged Type = "AGENT_STATUS_CHANGED"
	TradeOpened        Type = "TRADE_OPENED"
	TradeClosed        Type = "TRADE_CLOSED"
	TradeModified      Type = "TRADE_MODIFIED"
	VersusCreated      Type = "VERSUS_CREATED"
	VersusCongelado    Type = "VERSUS_CONGELADO"
	VersusTransferido  Type = "VERSUS_TRANSFERIDO"
	VersusErrored      Type = "VERSUS_ERRORED"
	ErrorOccurred      Type = "ERROR_OCCURRED"
)

// Event is a single fact fanned out to every registered sink.
type Event struct {
	Type      Type                   `json:"type"`
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Sink receives every event emitted on the bus. Implementations must not
// block for long and must tolerate being called concurrently.
type Sink interface {
	Name() string
	Handle(Event) error
}

// Bus fans events out to its registered sinks and always logs locally.
type Bus struct {
	log   zerolog.Logger
	sinks []Sink
}

// NewBus creates an event bus with the given sinks. A nil or empty sinks
// slice is valid — the bus still logs every event.
func NewBus(log zerolog.Logger, sinks ...Sink) *Bus {
	return &Bus{
		log:   log.With().Str("component", "event_bus").Logger(),
		sinks: sinks,
	}
}

// Emit builds an Event and dispatches it to every sink, logging and
// swallowing any sink failure.
func (b *Bus) Emit(t Type, module string, data map[string]interface{}) {
	evt := Event{Type: t, Module: module, Timestamp: time.Now().UTC(), Data: data}

	b.log.Info().Str("event_type", string(t)).Str("module", module).Msg("event emitted")

	for _, sink := range b.sinks {
		sink := sink
		if err := sink.Handle(evt); err != nil {
			b.log.Warn().Err(err).Str("sink", sink.Name()).Str("event_type", string(t)).
				Msg("sink failed to handle event")
		}
	}
}

// EmitError is a convenience wrapper for ErrorOccurred events.
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{"error": err.Error()}
	for k, v := range context {
		data[k] = v
	}
	b.Emit(ErrorOccurred, module, data)
}
