// Package live streams accepted match summaries to websocket subscribers.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/pkg/logger"
	"github.com/okian/replaymeta/pkg/metrics"
)

const (
	defaultBuffer       = 64
	defaultWriteTimeout = 5 * time.Second
	pingInterval        = 30 * time.Second
)

// Message is the frame written to subscribers.
type Message struct {
	Type  string             `json:"type"`
	Match model.MatchSummary `json:"match"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber send buffer. A subscriber whose buffer
// is full is disconnected.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithWriteTimeout bounds a single websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

type subscriber struct {
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.send) }) }

// Hub fans match summaries out to every connected websocket.
type Hub struct {
	mu           sync.RWMutex
	subs         map[*subscriber]struct{}
	closed       bool
	buffer       int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	log          logger.Logger
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:         make(map[*subscriber]struct{}),
		buffer:       defaultBuffer,
		writeTimeout: defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger.Get().Named("live"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish queues s for every subscriber without blocking. Slow subscribers
// are dropped.
func (h *Hub) Publish(ctx context.Context, s model.MatchSummary) { //nolint:gocritic // hugeParam: value semantics
	frame, err := json.Marshal(Message{Type: "match", Match: s})
	if err != nil {
		h.log.Error(ctx, "encode live frame", logger.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.send <- frame:
			metrics.RecordLiveMessage()
		default:
			h.log.Warn(ctx, "dropping slow live subscriber", logger.String("match_id", s.MatchID))
			h.removeLocked(sub)
		}
	}
}

// ServeHTTP upgrades the connection and streams frames until the client
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	sub := &subscriber{send: make(chan []byte, h.buffer)}
	if !h.add(sub) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	go h.readPump(conn, sub)
	h.writePump(conn, sub)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		h.removeLocked(sub)
	}
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub] = struct{}{}
	metrics.UpdateLiveSubscribers(len(h.subs))
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	sub.close()
	metrics.UpdateLiveSubscribers(len(h.subs))
}

// readPump discards client frames; it exists to observe close and to answer
// control frames.
func (h *Hub) readPump(conn *websocket.Conn, sub *subscriber) {
	defer h.remove(sub)
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(sub)
		_ = conn.Close()
	}()
	for {
		select {
		case frame, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
