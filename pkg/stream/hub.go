// Package stream fans task-mutation events out to websocket subscribers.
// Subscriptions are keyed by owner, so a client only ever sees events for
// its own tasks.
package stream

import (
	"encoding/json"
	"sync"
	"time"
)

type Event struct {
	Type string          `json:"type"`
	At   string          `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(eventType string, data interface{}) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{Type: eventType, At: time.Now().UTC().Format(time.RFC3339Nano), Data: raw}
}

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers a channel for one owner's events. Slow subscribers
// drop events rather than block publishers.
func (h *Hub) Subscribe(owner string, buffer int) chan Event {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	owned, ok := h.subs[owner]
	if !ok {
		owned = map[chan Event]struct{}{}
		h.subs[owner] = owned
	}
	owned[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(owner string, ch chan Event) {
	h.mu.Lock()
	owned := h.subs[owner]
	_, exists := owned[ch]
	if exists {
		delete(owned, ch)
		if len(owned) == 0 {
			delete(h.subs, owner)
		}
	}
	h.mu.Unlock()
	if exists {
		close(ch)
	}
}

func (h *Hub) Publish(owner string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[owner] {
		select {
		case ch <- evt:
		default:
		}
	}
}
