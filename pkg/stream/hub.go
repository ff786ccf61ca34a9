// Package stream fans submission lifecycle events out to websocket
// subscribers. Publishing never blocks; slow subscribers drop events.
package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/august4056/parallel/pkg/models"
)

const (
	TypeAssignmentCreated = "assignment.created"
	TypeSubmissionCreated = "submission.created"
)

func NewEvent(eventType string, data interface{}) models.Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return models.Event{Type: eventType, At: time.Now().UTC().Format(time.RFC3339Nano), Data: raw}
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan models.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[chan models.Event]struct{}{}}
}

func (h *Hub) Subscribe(buffer int) chan models.Event {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan models.Event, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan models.Event) {
	h.mu.Lock()
	_, exists := h.subs[ch]
	if exists {
		delete(h.subs, ch)
	}
	h.mu.Unlock()
	if exists {
		close(ch)
	}
}

func (h *Hub) Publish(evt models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
