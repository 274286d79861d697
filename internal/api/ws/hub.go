package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
	"github.com/your-org/eventface/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // organizer dashboards are served from other origins
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	eventID string // optional filter
}

type message struct {
	eventID string
	data    []byte
}

// Hub fans ingest results out to connected organizer dashboards.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "event_id", client.eventID)

		case client := <-h.unregister:
			h.drop(client)
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if client.eventID != "" && client.eventID != msg.eventID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			// Client buffer full: disconnect.
			for _, client := range slow {
				h.drop(client)
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		observability.WSConnections.Dec()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastResult sends an ingest result to clients watching its event.
// Drops the message when the hub is backed up.
func (h *Hub) BroadcastResult(result models.IngestResult) {
	data, err := json.Marshal(dto.NewWSEvent(result))
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}
	select {
	case h.broadcast <- message{eventID: result.EventID, data: data}:
	default:
		slog.Warn("ws broadcast queue full, dropping", "media_id", result.MediaID)
	}
}

// HandleWS handles WebSocket upgrade requests. ?event_id= limits the feed to
// one event.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		eventID: c.Query("event_id"),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump only exists to notice disconnects; clients send nothing.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
