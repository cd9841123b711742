package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// Hub fans JSON messages out to every connected WebSocket client. A client whose
// write fails is dropped.
type Hub struct {
	name     string
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	greeting func() interface{}
	origins  []string
}

func NewHub(name string) *Hub {
	return &Hub{
		name:    name,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// WithGreeting sends fn's payload to each client right after it connects.
func (h *Hub) WithGreeting(fn func() interface{}) *Hub {
	h.greeting = fn
	return h
}

// WithOrigins allows cross-origin clients matching the given host patterns.
func (h *Hub) WithOrigins(patterns []string) *Hub {
	h.origins = patterns
	return h
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)

	return true
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}

	return out
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	for _, o := range h.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
		}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Warnf("%s: accept: %v", h.name, err)
		return
	}

	h.add(conn)
	log.Debugf("%s: client connected (%d)", h.name, h.Len())

	ctx := conn.CloseRead(r.Context())

	if h.greeting != nil {
		if err := h.write(ctx, conn, h.greeting()); err != nil {
			h.drop(conn, err)
			return
		}
	}

	<-ctx.Done()
	if h.remove(conn) {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	log.Debugf("%s: client disconnected (%d)", h.name, h.Len())
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, data)
}

func (h *Hub) drop(conn *websocket.Conn, err error) {
	if h.remove(conn) {
		log.Debugf("%s: dropping client: %v", h.name, err)
		conn.Close(websocket.StatusGoingAway, "write failed")
	}
}

// Broadcast sends v to every client.
func (h *Hub) Broadcast(ctx context.Context, v interface{}) {
	for _, conn := range h.snapshot() {
		if err := h.write(ctx, conn, v); err != nil {
			h.drop(conn, err)
		}
	}
}

// BroadcastEvery sends fn's payload every interval until ctx is done. Nothing is built
// while the hub has no clients.
func (h *Hub) BroadcastEvery(ctx context.Context, interval time.Duration, fn func() interface{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.Len() == 0 {
				continue
			}
			h.Broadcast(ctx, fn())
		}
	}
}
