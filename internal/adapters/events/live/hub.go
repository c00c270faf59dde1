// Package live streams poll events to WebSocket subscribers of that poll.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const sendBuffer = 16

type message struct {
	pollID uuid.UUID
	data   []byte
}

// client is one WebSocket connection following one poll.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	pollID uuid.UUID
}

type Hub struct {
	clients    map[uuid.UUID]map[*client]bool
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}

	originPatterns []string
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub returns a hub that accepts WebSocket upgrades from the given origin
// patterns. Run must be started before clients connect.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*client]bool),
		broadcast:      make(chan message),
		register:       make(chan *client),
		unregister:     make(chan *client),
		done:           make(chan struct{}),
		originPatterns: originPatterns,
	}
}

// Run owns the subscriber sets until ctx is cancelled. A client whose send
// buffer is full is dropped.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = nil
			return

		case c := <-h.register:
			set := h.clients[c.pollID]
			if set == nil {
				set = make(map[*client]bool)
				h.clients[c.pollID] = set
			}
			set[c] = true

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			for c := range h.clients[m.pollID] {
				select {
				case c.send <- m.data:
				default:
					slog.Warn("dropping slow live subscriber", "poll_id", m.pollID)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	set := h.clients[c.pollID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.pollID)
	}
}

// Publish forwards the event to the subscribers of its poll.
func (h *Hub) Publish(ctx context.Context, event domain.PollEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal poll event: %w", err)
	}

	select {
	case h.broadcast <- message{pollID: event.PollID, data: data}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWS upgrades the request and streams events of pollID until the client
// disconnects or the hub stops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, pollID uuid.UUID) {
	c := &client{hub: h, send: make(chan []byte, sendBuffer), pollID: pollID}

	// Registered before the upgrade completes so no event published after
	// the handshake is missed.
	select {
	case h.register <- c:
	case <-h.done:
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.Warn("websocket upgrade failed", "poll_id", pollID, "error", err)
		h.leave(c)
		return
	}
	c.conn = conn

	go c.writePump()
	c.readPump()
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// writePump sends messages from the hub to the connection.
func (c *client) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for m := range c.send {
		if err := c.conn.Write(context.Background(), websocket.MessageText, m); err != nil {
			slog.Debug("live subscriber write failed", "poll_id", c.pollID, "error", err)
			break
		}
	}
}

// readPump discards client frames and detects the disconnect.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				slog.Debug("live subscriber disconnected", "poll_id", c.pollID)
			} else {
				slog.Debug("live subscriber read failed", "poll_id", c.pollID, "error", err)
			}
			return
		}
	}
}
