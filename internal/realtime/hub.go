package realtime

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/modelgrid/connecthub/pkg/logger"
	"github.com/modelgrid/connecthub/pkg/metrics"

	"github.com/modelgrid/connecthub/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Hub fans connection lifecycle events out to websocket subscribers. Each
// client only sees events for its own customer.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     logger.WithComponent("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection to a websocket and registers the client
// under its customer. Blocks until the client disconnects.
func (h *Hub) Serve(customerID string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:        h,
		socket:     socket,
		customerID: customerID,
		send:       make(chan services.ConnectionEvent, sendBufferSize),
	}
	h.register(c)

	go c.writeLoop()
	c.readLoop()
}

// PublishConnectionEvent implements services.EventPublisher. Slow clients are
// disconnected rather than allowed to block the publisher.
func (h *Hub) PublishConnectionEvent(customerID string, event services.ConnectionEvent) {
	if customerID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[customerID] {
		select {
		case c.send <- event:
		default:
			h.log.Warn("dropping backpressured realtime client",
				zap.String("customer_id", customerID))
			go c.close()
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.customerID] == nil {
		h.clients[c.customerID] = make(map[*client]struct{})
	}
	h.clients[c.customerID][c] = struct{}{}
	metrics.RealtimeClients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[c.customerID]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}

	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.customerID)
	}
	metrics.RealtimeClients.Dec()
}

type client struct {
	hub        *Hub
	socket     *websocket.Conn
	customerID string
	send       chan services.ConnectionEvent
	once       sync.Once
}

// readLoop drains the socket to process pongs and detect disconnects. The
// stream is one way; inbound payloads are discarded.
func (c *client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			host = parsed.Host
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
