// Package events fans session events out to live subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	TaskCompleted    = "task_completed"
	SessionCompleted = "session_completed"
	HintUsed         = "hint_used"
)

// Event is the payload published to session subscribers.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	TaskID    string    `json:"taskId,omitempty"`
	TaskIndex int       `json:"taskIndex,omitempty"`
	Score     int       `json:"score,omitempty"`
	HintsUsed int       `json:"hintsUsed,omitempty"`
	At        time.Time `json:"at"`
}

// Broker is an in-process pub/sub keyed by session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the session's subscribers.
func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given session.
func (b *Broker) Publish(sessionID string, ev Event) {
	data, _ := json.Marshal(ev)
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports how many channels listen on the session.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
