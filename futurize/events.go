package futurize

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of controller event.
type EventType uint8

const (
	// EventCreated indicates a controller was built by Task.
	EventCreated EventType = iota
	// EventStarted indicates TryDo dispatched the worker.
	EventStarted
	// EventProgress indicates a poll observed a fresh intermediate value.
	EventProgress
	// EventCompleted indicates a poll delivered a success value.
	EventCompleted
	// EventFailed indicates a poll delivered an error value.
	EventFailed
	// EventCanceled indicates a poll delivered a cancellation.
	EventCanceled
	// EventCancelRequested indicates Cancel raised the flag.
	EventCancelRequested
	// EventDetached indicates Close let go of a controller that was not done.
	EventDetached
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCanceled:
		return "canceled"
	case EventCancelRequested:
		return "cancel_requested"
	case EventDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification. Events are published on the goroutine
// that called the controller method, never on the worker.
type Event struct {
	Type      EventType
	TaskID    int
	Token     uuid.UUID
	Timestamp time.Time
	Data      any
}

// OutcomeData accompanies terminal events.
type OutcomeData struct {
	// Elapsed runs from TryDo to the poll that observed the terminal value.
	Elapsed time.Duration
	Err     error
}

// EventHandler is a function that handles controller events.
type EventHandler func(Event)

// EventBus provides a simple publish-subscribe mechanism for controller events.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	allSubs  []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all events.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, handler)
}

// Publish sends an event to all registered handlers.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	allSubs := eb.allSubs
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	for _, h := range allSubs {
		h(event)
	}
}

// Clear removes all handlers.
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers = make(map[EventType][]EventHandler)
	eb.allSubs = nil
}
