package audit

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// subscriber pairs a connection with the mutex that serializes writes to
// it. gorilla/websocket permits at most one concurrent writer per
// connection, and Broadcast runs from arbitrary request goroutines.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster fans freshly appended entries out to WebSocket subscribers.
// It backs the operations dashboard live tail; delivery is best-effort and
// a slow or dead subscriber is dropped rather than back-pressuring appends.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*websocket.Conn]*subscriber
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[*websocket.Conn]*subscriber),
	}
}

// Subscribe registers a WebSocket connection for the live tail.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[conn] = &subscriber{conn: conn}
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, conn)
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Broadcast sends an entry to all subscribers. Safe to call from concurrent
// goroutines; writes to each connection are serialized.
func (b *Broadcaster) Broadcast(entry *Entry) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	// Serialize once for all subscribers
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("failed to marshal audit entry for broadcast", "error", err)
		return
	}

	for _, s := range subs {
		if err := s.send(data); err != nil {
			slog.Warn("failed to send audit entry to websocket client", "error", err)
			b.Unsubscribe(s.conn)
			_ = s.conn.Close()
		}
	}
}
