package services

import (
	"sync"
	"time"
)

const (
	CaseEventTransition = "transition"
	CaseEventEscalation = "escalation"
	CaseEventApproval   = "approval"
)

// CaseEvent is pushed to dashboard clients when a case moves or escalates.
type CaseEvent struct {
	Type            string    `json:"type"`
	CaseID          uint      `json:"case_id"`
	CaseNumber      string    `json:"case_number"`
	FromState       string    `json:"from_state,omitempty"`
	ToState         string    `json:"to_state,omitempty"`
	EscalationLevel int       `json:"escalation_level,omitempty"`
	ActorID         uint      `json:"actor_id,omitempty"`
	At              time.Time `json:"at"`
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan CaseEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan CaseEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan CaseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan CaseEvent, 100)
	h.clients[clientID] = ch
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients drop
// events rather than block the publisher.
func (h *SSEHub) Publish(event CaseEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
