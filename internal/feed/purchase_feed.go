package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"crowdsale/internal/tokenomics"
)

const (
	// Client settings
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

// Message is the frame pushed to feed clients
type Message struct {
	Type  string                    `json:"type"`
	Event tokenomics.PurchaseEvent `json:"event"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	stopCh chan struct{}
	once   sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.stopCh) })
}

// Hub broadcasts committed purchases to websocket subscribers.
// It implements tokenomics.EventPublisher.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	closed   bool
}

// NewHub creates a hub. checkOrigin nil accepts every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishPurchase queues the event for every subscriber. A subscriber whose
// buffer is full is disconnected rather than slowing the sale down.
func (h *Hub) PublishPurchase(ctx context.Context, event tokenomics.PurchaseEvent) error {
	payload, err := json.Marshal(Message{Type: "purchase", Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal purchase %d: %w", event.PurchaseID, err)
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.WithField("remote", c.conn.RemoteAddr().String()).Warn("feed client too slow, disconnecting")
		h.remove(c)
	}
	return nil
}

// Serve upgrades the request and streams purchases until the client goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), stopCh: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return fmt.Errorf("feed is closed")
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.WithField("remote", conn.RemoteAddr().String()).Info("feed client connected")

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

// readLoop 只用于检测断开和处理 pong
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("feed client read failed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.stopCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.WithError(err).Warn("feed write failed")
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		log.WithField("remote", c.conn.RemoteAddr().String()).Info("feed client disconnected")
	}
	h.mu.Unlock()
	c.stop()
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.stop()
	}
}

var _ tokenomics.EventPublisher = (*Hub)(nil)
