// Package ws broadcasts caption events to websocket viewers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/event"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 64
)

// Message is the frame sent to viewers. Exactly one payload field is set,
// according to Type.
type Message struct {
	Type    string         `json:"type"`
	Caption *event.Caption `json:"caption,omitempty"`
	Level   *float64       `json:"level,omitempty"`
	Text    string         `json:"text,omitempty"`
	TS      any            `json:"ts,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is an event.Sink that fans every event out to connected viewers.
// A viewer that cannot keep up loses messages rather than slowing the
// pipeline down.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	status  string
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 16,
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) Level(p float64) { h.broadcast(Message{Type: "level", Level: &p}) }

func (h *Hub) Caption(c event.Caption) { h.broadcast(Message{Type: "caption", Caption: &c}) }

func (h *Hub) Status(s string) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
	h.broadcast(Message{Type: "status", Text: s})
}

func (h *Hub) Error(s string) { h.broadcast(Message{Type: "error", Text: s}) }

// Clients reports how many viewers are connected.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Warn().Err(err).Str("type", m.Type).Msg("ws: marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			log.Debug().Str("type", m.Type).Msg("ws: viewer too slow, dropping message")
		}
	}
}

// Handle upgrades a viewer connection. Viewers only listen; the one thing
// they may send is {"type":"ping"}.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	status := h.status
	h.mu.Unlock()
	log.Info().Str("remote", r.RemoteAddr).Int("viewers", h.Clients()).Msg("ws: viewer connected")

	go h.writeLoop(c)
	if status != "" {
		h.sendTo(c, Message{Type: "status", Text: status})
	}
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	log.Info().Str("remote", r.RemoteAddr).Msg("ws: viewer disconnected")
}

func (h *Hub) readLoop(c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("ws: read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg struct {
			Type string `json:"type"`
			TS   any    `json:"ts"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendTo(c, Message{Type: "error", Text: "invalid json"})
			continue
		}
		switch msg.Type {
		case "ping":
			h.sendTo(c, Message{Type: "pong", TS: msg.TS})
		default:
			h.sendTo(c, Message{Type: "error", Text: "unknown message type"})
		}
	}
}

func (h *Hub) sendTo(c *client, m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("ws: write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}
