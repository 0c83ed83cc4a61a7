package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	clientBuffer   = 16
	hubUpdateQueue = 64
)

type streamMessage struct {
	Type    string          `json:"type"`
	Update  *model.Update   `json:"update,omitempty"`
	Status  statusResponse  `json:"status"`
	History historyResponse `json:"history"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans monitor updates out to websocket clients. Observe is safe to call
// from the monitor while it holds its lock; payloads are built on Run.
type Hub struct {
	upgrader websocket.Upgrader
	updates  chan model.Update
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	state   func() (statusResponse, historyResponse)
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		updates: make(chan model.Update, hubUpdateQueue),
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *Hub) Observe(update model.Update) {
	select {
	case h.updates <- update:
	default:
		h.logger.Debug("stream update dropped")
	}
}

func (h *Hub) bind(state func() (statusResponse, historyResponse)) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

// Run broadcasts queued updates until ctx is cancelled, then closes clients.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-h.updates:
			payload, err := h.encode("update", &update)
			if err != nil {
				h.logger.Warn("stream encode failed", "err", err)
				continue
			}
			h.broadcast(payload)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) encode(kind string, update *model.Update) ([]byte, error) {
	msg := streamMessage{Type: kind, Update: update}
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	if state != nil {
		msg.Status, msg.History = state()
	}
	return json.Marshal(msg)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client; drop it rather than stall the others.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the request and streams a snapshot followed by updates.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	client := &streamClient{conn: conn, send: make(chan []byte, clientBuffer)}

	initial, err := h.encode("snapshot", nil)
	if err != nil {
		_ = conn.Close()
		return
	}
	client.send <- initial
	h.register(client)

	go client.writeLoop()
	client.readLoop()
	h.unregister(client)
}

func (c *streamClient) readLoop() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
