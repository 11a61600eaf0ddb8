package webmonitor

import (
	"sync"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
)

// FrameBroadcaster manages fanout of overlay JPEG frames to multiple clients.
// The measurement loop pushes each rendered frame with Publish; slow clients
// skip frames instead of stalling the producer.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	latest  []byte
	closed  bool
}

// NewFrameBroadcaster creates an empty broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		clients: make(map[int]chan []byte),
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
// The most recent frame, if any, is queued immediately so a new viewer does
// not stare at a blank stream until the next capture cycle.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	fb.clients[id] = ch

	if fb.latest != nil {
		ch <- fb.latest
	}

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// Publish fans one frame out to every subscriber.
func (fb *FrameBroadcaster) Publish(data []byte) {
	if data == nil {
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return
	}
	fb.latest = data

	for id, ch := range fb.clients {
		select {
		case ch <- data:
			// Sent successfully
		default:
			// Client too slow, skip this frame for this client
			_ = id
		}
	}
}

// ClientCount reports the number of connected stream clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Close disconnects all clients and rejects further publishes.
func (fb *FrameBroadcaster) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return
	}
	fb.closed = true
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
}
