package sinks

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

const chatWriteTimeout = 10 * time.Second

var notifiedTypes = map[events.Type]bool{
	events.VersusCreated:     true,
	events.VersusCongelado:   true,
	events.VersusTransferido: true,
	events.VersusErrored:     true,
	events.AgentStatusChanged: true,
}

// Chat broadcasts selected event types to every client currently connected
// over its websocket endpoint, replacing the original's Telegram push with
// the pack's websocket-broadcast idiom.
type Chat struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

// NewChat builds an empty Chat broadcaster.
func NewChat(log zerolog.Logger) *Chat {
	return &Chat{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.With().Str("component", "chat_sink").Logger(),
	}
}

// Name identifies this sink in logs.
func (c *Chat) Name() string { return "chat_notification" }

// Handle broadcasts notification-worthy events to every connected client.
func (c *Chat) Handle(evt events.Event) error {
	if !notifiedTypes[evt.Type] {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	c.broadcast(payload)
	return nil
}

func (c *Chat) broadcast(payload []byte) {
	c.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(c.clients))
	for conn := range c.clients {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), chatWriteTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping unreachable chat client")
			c.remove(conn)
		}
	}
}

func (c *Chat) remove(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.clients, conn)
	c.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "removed")
}

// ServeHTTP upgrades the request to a websocket connection and registers it
// to receive future broadcasts until the client disconnects.
func (c *Chat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("chat websocket upgrade failed")
		return
	}

	c.mu.Lock()
	c.clients[conn] = struct{}{}
	c.mu.Unlock()

	ctx := r.Context()
	defer c.remove(conn)

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
