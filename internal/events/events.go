package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventRequestCreated  = "request_created"
	EventRequestApproved = "request_approved"
	EventRequestRejected = "request_rejected"
	EventComplaintOpened = "complaint_opened"
	EventComplaintClosed = "complaint_closed"
	EventAdFinished      = "ad_finished"
)

// RequestEventPayload describes the minimal request snapshot for event consumers.
type RequestEventPayload struct {
	RequestID    int64   `json:"request_id"`
	UserID       int64   `json:"user_id"`
	CustomerCode string  `json:"customer_code,omitempty"`
	Kind         string  `json:"kind"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	ResolvedBy   int64   `json:"resolved_by,omitempty"`
	Note         string  `json:"note,omitempty"`
}

// ComplaintEventPayload mirrors RequestEventPayload for complaints.
type ComplaintEventPayload struct {
	ComplaintID int64  `json:"complaint_id"`
	UserID      int64  `json:"user_id"`
	Status      string `json:"status"`
	ResolvedBy  int64  `json:"resolved_by,omitempty"`
}

// AdEventPayload carries the final dispatch tally.
type AdEventPayload struct {
	AdID      int64  `json:"ad_id"`
	CreatedBy int64  `json:"created_by"`
	Status    string `json:"status"`
	Sent      int64  `json:"sent"`
	Failed    int64  `json:"failed"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
