// Package recognition implements the core of the greeter: the fallback
// chain over AI providers, the polling loop engine, and the event stream
// the browser subscribes to.
package recognition

import (
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	EventStarted           = "started"
	EventStopped           = "stopped"
	EventTick              = "tick"
	EventAttempt           = "attempt"
	EventGreeting          = "greeting"
	EventGreetingDismissed = "greeting.dismissed"
	EventError             = "error"
)

// Event is a single recognition lifecycle event.
type Event struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id,omitempty"`
	UserName   string    `json:"user_name,omitempty"`
	Greeting   string    `json:"greeting,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Message    string    `json:"message,omitempty"`
}

const eventChannelBuffer = 16

// Broadcaster fans events out to subscribed listeners. Listeners with a
// full buffer miss events rather than block the engine.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener registers a new listener channel.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send delivers an event to all listeners.
func (b *Broadcaster) Send(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip
		}
	}
}
