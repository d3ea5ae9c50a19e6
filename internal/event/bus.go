// Package event provides the synchronous publish/subscribe bus used to
// wire plugins to the host application.
//
// Delivery is best-effort broadcast: every active subscription matching
// the published topic is invoked in subscription order, a failing or
// panicking handler is reported to the bus error handler and delivery
// continues with the remaining subscriptions. Subscriptions carry an
// optional owner key so everything a plugin registered can be removed
// in one call at disable time.
package event

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/testride/testride/internal/event/topic"
)

// ErrorHandler is invoked when a subscription handler fails or panics.
// It must not call back into the bus.
type ErrorHandler func(sub *Subscription, msg Message, err error)

// Stats holds bus delivery counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerErrors uint64
	Subscriptions int
}

// Bus routes published messages to topic subscriptions.
// It is safe for concurrent use, though the host drives it from a
// single event loop.
type Bus struct {
	registry *registry
	nextSeq  atomic.Uint64

	errorHandler ErrorHandler

	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithErrorHandler sets the handler-failure callback.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Bus) {
		b.errorHandler = h
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for the given topic pattern, tagged
// with the owner key for later bulk removal. A nil key leaves the
// subscription untagged. The returned handle identifies this exact
// (listener, topic) registration.
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler, key any) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}

	sub := &Subscription{
		id:      uuid.New().String(),
		seq:     b.nextSeq.Add(1),
		pattern: pattern,
		key:     key,
		handler: handler,
	}
	b.registry.add(sub)
	return sub, nil
}

// Publish delivers the message to every active subscription matching
// the topic, in subscription order. Handler failures are isolated; the
// returned error only reports publish-side problems (invalid topic).
func (b *Bus) Publish(t topic.Topic, data any) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, t)
	}
	if t.IsPattern() {
		return fmt.Errorf("%w: %q", ErrPatternTopic, t)
	}

	msg := Message{Topic: t, Data: data, Time: time.Now()}
	b.published.Add(1)

	for _, sub := range b.registry.match(t) {
		// A subscription cancelled by an earlier handler in this
		// delivery must not receive the message.
		if !sub.IsActive() {
			continue
		}
		if err := b.dispatch(sub, msg); err != nil {
			b.handlerErrors.Add(1)
			if b.errorHandler != nil {
				b.errorHandler(sub, msg, err)
			}
			continue
		}
		b.delivered.Add(1)
	}
	return nil
}

// dispatch invokes a single handler, converting panics to errors.
func (b *Bus) dispatch(sub *Subscription, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(msg)
}

// Unsubscribe removes the exact subscription identified by the handle.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	if !b.registry.remove(sub.id) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// UnsubscribeAll removes every subscription tagged with the key,
// regardless of topic. It returns the number removed. This is the bulk
// teardown path a plugin uses at disable time.
func (b *Bus) UnsubscribeAll(key any) int {
	return b.registry.removeKey(key)
}

// Count returns the number of registered subscriptions.
func (b *Bus) Count() int {
	return b.registry.count()
}

// CountKey returns the number of subscriptions tagged with the key.
func (b *Bus) CountKey(key any) int {
	return b.registry.countKey(key)
}

// Stats returns current delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		Subscriptions: b.registry.count(),
	}
}
