package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"go-crashout/internal/lib/logger/sl"
)

// Channel names the engine publishes on.
const (
	CrashChannel   = "crash-channel"
	BalanceChannel = "balance-channel"
)

type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

// Broadcaster fans a message out to subscribers. Implementations are
// fire-and-forget from the engine's point of view; a failed emit is logged
// and dropped, never surfaced to gameplay.
type Broadcaster interface {
	TriggerEvent(m Message) error
}

// HubEvent publishes through a websocket connection to the hub process.
// Jobs execute on multiple workers, so writes to the single connection are
// serialized here.
type HubEvent struct {
	log  *slog.Logger
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHubEvent(log *slog.Logger, conn *websocket.Conn) *HubEvent {
	return &HubEvent{
		log:  log,
		conn: conn,
	}
}

func (p *HubEvent) TriggerEvent(m Message) error {
	const op = "handlers.event.TriggerEvent"

	msg, err := json.Marshal(m)
	if err != nil {
		p.log.Error("failed to marshal message", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err = p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		p.log.Error("failed to trigger event", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
