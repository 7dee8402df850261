package hub

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Aikhjarto/ping-process/internal/model"
)

const subscriberBuffer = 1024

// Hub fans classifier events out to all subscribers (websocket clients,
// the aggregator). It never blocks the reducer: slow consumers drop.
type Hub struct {
	input       <-chan model.Event
	mu          sync.RWMutex
	subscribers []chan model.Event
	dropped     atomic.Int64
}

// New creates a Hub reading from the given event channel, typically fed by
// a sink.ChannelSink attached to the classifier.
func New(input <-chan model.Event) *Hub {
	return &Hub{input: input}
}

// Subscribe returns a buffered channel that will receive every event.
// Multiple consumers can subscribe; each gets its own copy.
func (h *Hub) Subscribe() <-chan model.Event {
	ch := make(chan model.Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Dropped returns the total number of events dropped due to slow consumers.
// Safe to call while a broadcast is in flight.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start begins broadcasting. Blocks until the context is cancelled or the
// input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

// broadcast sends an event to all subscribers, dropping per subscriber when
// a channel is full.
func (h *Hub) broadcast(ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			n := h.dropped.Add(1)
			log.Printf("hub: dropped event for slow consumer (total dropped: %d)", n)
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
