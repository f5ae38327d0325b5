package sinks

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

func TestChat_BroadcastsNotifiedEventTypesToConnectedClients(t *testing.T) {
	chat := NewChat(zerolog.Nop())
	assert.Equal(t, "chat_notification", chat.Name())

	srv := httptest.NewServer(chat)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	// give the server a moment to register the connection before broadcasting
	time.Sleep(20 * time.Millisecond)

	err = chat.Handle(events.Event{Type: events.VersusCreated, Module: "versus", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	_, payload, err := conn.Read(ctx)
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, events.VersusCreated, got.Type)
}

func TestChat_IgnoresEventTypesNotInNotifyList(t *testing.T) {
	chat := NewChat(zerolog.Nop())
	err := chat.Handle(events.Event{Type: events.AccountsRefreshed, Module: "accounts", Timestamp: time.Now().UTC()})
	require.NoError(t, err, "non-notified event types are silently dropped, not an error")
}
