package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
	"github.com/fossodjateng-gif/afrofood-app/pkg/logger"
)

// KeepAliveInterval is how often the stream handler writes a no-op comment
// frame to defeat idle-connection timeouts.
const KeepAliveInterval = 20 * time.Second

// A slow viewer gets this many frames of slack before it is dropped.
const subscriberBuffer = 16

// Subscriber is one live viewer connection's outbound frame queue.
type Subscriber struct {
	ch chan []byte
}

// Frames returns the channel of ready-to-write SSE frames. It is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Frames() <-chan []byte {
	return s.ch
}

// Hub fans lifecycle events out to every connected viewer. Delivery is
// best-effort: frames are re-fetch hints, a disconnected viewer reconciles by
// re-fetching state. The hub is an injected object, not process-global, so
// tests run isolated instances.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	logger      logger.Logger
}

// NewHub creates a new Hub
func NewHub(logger logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a viewer and immediately queues the connected
// acknowledgment frame.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	sub.ch <- connectedFrame()

	return sub
}

// Unsubscribe removes a viewer. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}

	delete(h.subscribers, sub)
	close(sub.ch)
}

// Publish serializes the event and writes it to every subscriber. A viewer
// that cannot keep up is dropped; publish itself never fails.
func (h *Hub) Publish(event models.OrderEvent) {
	payload, err := json.Marshal(event)

	if err != nil {
		h.logger.Error("Failed to serialize order event", "error", err, "type", event.Type)
		return
	}

	frame := dataFrame(payload)

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.ch <- frame:
		default:
			// dead or stalled connection, self-heal
			delete(h.subscribers, sub)
			close(sub.ch)
			h.logger.Warn("Dropped stalled event subscriber", "type", event.Type)
		}
	}
}

// SubscriberCount returns the number of connected viewers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// KeepAliveFrame builds the periodic no-op comment frame.
func KeepAliveFrame() []byte {
	return []byte(fmt.Sprintf(": keepalive %d\n\n", models.GetCurrentTime().UnixMilli()))
}

func connectedFrame() []byte {
	return []byte(fmt.Sprintf("event: connected\ndata: {\"ok\":true,\"at\":%d}\n\n",
		models.GetCurrentTime().UnixMilli()))
}

func dataFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame
}
