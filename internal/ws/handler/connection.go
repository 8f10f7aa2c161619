package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"go-crashout/internal/lib/logger/sl"
)

type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

type Subscription struct {
	Conn    *websocket.Conn
	Channel string
}

// Hub relays messages between the engine process and browser clients.
// A connection that publishes on a channel is implicitly subscribed to it;
// the api process uses that to push engine events, clients to listen.
type Hub struct {
	Channels    map[string]map[*websocket.Conn]bool
	Broadcast   chan Message
	Subscribe   chan Subscription
	Unsubscribe chan *websocket.Conn
	mutex       sync.RWMutex
	log         *slog.Logger
}

func NewHub(
	log *slog.Logger,
) *Hub {
	return &Hub{
		Channels:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:   make(chan Message),
		Subscribe:   make(chan Subscription),
		Unsubscribe: make(chan *websocket.Conn),
		log:         log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (hub *Hub) run() {
	for {
		select {
		case sub := <-hub.Subscribe:
			if hub.Channels[sub.Channel] == nil {
				hub.Channels[sub.Channel] = make(map[*websocket.Conn]bool)
			}
			hub.Channels[sub.Channel][sub.Conn] = true
		case conn := <-hub.Unsubscribe:
			for _, receivers := range hub.Channels {
				delete(receivers, conn)
			}
		case message := <-hub.Broadcast:
			receivers, ok := hub.Channels[message.Channel]
			if !ok {
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				hub.log.Error("failed to marshal message", sl.Err(err))

				continue
			}

			for conn := range receivers {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.log.Error("failed to write message", sl.Err(err))
				}
			}
		}
	}
}

func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}

	defer func() {
		hub.Unsubscribe <- ws

		if err = ws.Close(); err != nil {
			hub.log.Error("failed to close connection", sl.Err(err))
		}
	}()

	for {
		_, p, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var message Message

		if err = json.Unmarshal(p, &message); err != nil {
			hub.log.Error("failed to unmarshal message", sl.Err(err))

			continue
		}

		hub.Subscribe <- Subscription{Conn: ws, Channel: message.Channel}

		if message.Event != "" {
			hub.Broadcast <- message
		}
	}
}

func (hub *Hub) RunServer() {
	go hub.run()
}
