package event

import (
	"sync/atomic"
	"time"

	"github.com/testride/testride/internal/event/topic"
)

// Message is what subscribers receive on publish.
type Message struct {
	// Topic is the concrete topic the message was published on.
	Topic topic.Topic

	// Data is the publisher-supplied payload.
	Data any

	// Time is when the message was published.
	Time time.Time
}

// Handler processes a published message. A returned error is reported
// to the bus error handler and does not stop delivery to other
// subscriptions.
type Handler func(msg Message) error

// Subscription is the handle returned by Bus.Subscribe. It carries the
// (listener, topic) identity: unsubscribing a specific listener means
// passing its handle back to the bus.
type Subscription struct {
	id      string
	seq     uint64
	pattern topic.Topic
	key     any
	handler Handler

	cancelled atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic pattern.
func (s *Subscription) Topic() topic.Topic {
	return s.pattern
}

// Key returns the owner key the subscription was tagged with.
// It is nil for untagged subscriptions.
func (s *Subscription) Key() any {
	return s.key
}

// IsActive reports whether the subscription can still receive messages.
func (s *Subscription) IsActive() bool {
	return !s.cancelled.Load()
}

func (s *Subscription) cancel() {
	s.cancelled.Store(true)
}
