package event

import (
	"errors"
	"testing"

	"github.com/testride/testride/internal/event/topic"
)

func TestSubscribeValidation(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe("plugin.enabled", nil, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler: got %v, want ErrNilHandler", err)
	}
	if _, err := bus.Subscribe("", func(Message) error { return nil }, nil); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
}

func TestPublishValidation(t *testing.T) {
	bus := NewBus()

	if err := bus.Publish("", nil); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := bus.Publish("plugin.*", nil); !errors.Is(err, ErrPatternTopic) {
		t.Errorf("pattern topic: got %v, want ErrPatternTopic", err)
	}
}

func TestPublishDelivers(t *testing.T) {
	bus := NewBus()

	var got []any
	_, err := bus.Subscribe("run.started", func(msg Message) error {
		got = append(got, msg.Data)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Publish("run.started", "smoke"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(got) != 1 || got[0] != "smoke" {
		t.Errorf("expected one delivery of %q, got %v", "smoke", got)
	}

	// Unrelated topics are not delivered.
	if err := bus.Publish("run.finished", "smoke"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected no delivery on unrelated topic, got %v", got)
	}
}

func TestPublishOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if _, err := bus.Subscribe("t", func(Message) error {
			order = append(order, i)
			return nil
		}, nil); err != nil {
			t.Fatalf("Subscribe() failed: %v", err)
		}
	}

	if err := bus.Publish("t", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("delivery out of subscription order: %v", order)
		}
	}
}

func TestHandlerErrorIsolation(t *testing.T) {
	var reported []error
	bus := NewBus(WithErrorHandler(func(_ *Subscription, _ Message, err error) {
		reported = append(reported, err)
	}))

	boom := errors.New("boom")
	secondCalled := false

	if _, err := bus.Subscribe("T", func(Message) error { return boom }, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := bus.Subscribe("T", func(Message) error {
		secondCalled = true
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Publish("T", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if !secondCalled {
		t.Error("second listener must still receive the message after the first fails")
	}
	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Errorf("expected the error to be reported once, got %v", reported)
	}
}

func TestHandlerPanicIsolation(t *testing.T) {
	var reported []error
	bus := NewBus(WithErrorHandler(func(_ *Subscription, _ Message, err error) {
		reported = append(reported, err)
	}))

	secondCalled := false
	if _, err := bus.Subscribe("T", func(Message) error { panic("bad listener") }, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := bus.Subscribe("T", func(Message) error {
		secondCalled = true
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Publish("T", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if !secondCalled {
		t.Error("second listener must still receive the message after a panic")
	}
	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %d", len(reported))
	}
}

func TestUnsubscribeExact(t *testing.T) {
	bus := NewBus()

	calls := 0
	sub, err := bus.Subscribe("T", func(Message) error { calls++; return nil }, nil)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	other, err := bus.Subscribe("T", func(Message) error { return nil }, nil)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}
	if err := bus.Publish("T", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if calls != 0 {
		t.Error("unsubscribed listener still received a message")
	}
	if !other.IsActive() {
		t.Error("unrelated subscription was cancelled")
	}

	if err := bus.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("double unsubscribe: got %v, want ErrSubscriptionNotFound", err)
	}
	if err := bus.Unsubscribe(nil); !errors.Is(err, ErrInvalidSubscription) {
		t.Errorf("nil unsubscribe: got %v, want ErrInvalidSubscription", err)
	}
}

func TestUnsubscribeAllByKey(t *testing.T) {
	bus := NewBus()

	type owner struct{ name string }
	keyA := &owner{"a"}
	keyB := &owner{"b"}

	callsA := 0
	callsB := 0
	for _, tp := range []topic.Topic{"t.one", "t.two", "u.three"} {
		if _, err := bus.Subscribe(tp, func(Message) error { callsA++; return nil }, keyA); err != nil {
			t.Fatalf("Subscribe() failed: %v", err)
		}
	}
	if _, err := bus.Subscribe("t.one", func(Message) error { callsB++; return nil }, keyB); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if got := bus.CountKey(keyA); got != 3 {
		t.Fatalf("CountKey(keyA) = %d, want 3", got)
	}
	if removed := bus.UnsubscribeAll(keyA); removed != 3 {
		t.Fatalf("UnsubscribeAll(keyA) removed %d, want 3", removed)
	}

	// No listener registered under keyA may receive further messages on
	// any topic.
	for _, tp := range []topic.Topic{"t.one", "t.two", "u.three"} {
		if err := bus.Publish(tp, nil); err != nil {
			t.Fatalf("Publish(%q) failed: %v", tp, err)
		}
	}
	if callsA != 0 {
		t.Errorf("listener under removed key received %d messages", callsA)
	}
	if callsB != 1 {
		t.Errorf("listener under other key received %d messages, want 1", callsB)
	}

	if removed := bus.UnsubscribeAll(keyA); removed != 0 {
		t.Errorf("second UnsubscribeAll removed %d, want 0", removed)
	}
	if removed := bus.UnsubscribeAll(nil); removed != 0 {
		t.Errorf("UnsubscribeAll(nil) removed %d, want 0", removed)
	}
}

func TestUnsubscribeAllRemovesEveryKeyedSubscription(t *testing.T) {
	bus := NewBus()

	type owner struct{ name string }
	key := &owner{"plugin"}

	// Several subscriptions under one key, some sharing a topic, so
	// removal has to compact multiple index slices.
	topics := []topic.Topic{"a.one", "a.one", "a.two", "b.three", "b.four"}
	received := make([]int, len(topics))
	for i, tp := range topics {
		i := i
		if _, err := bus.Subscribe(tp, func(Message) error {
			received[i]++
			return nil
		}, key); err != nil {
			t.Fatalf("Subscribe() failed: %v", err)
		}
	}

	if removed := bus.UnsubscribeAll(key); removed != len(topics) {
		t.Fatalf("UnsubscribeAll() removed %d, want %d", removed, len(topics))
	}
	if got := bus.CountKey(key); got != 0 {
		t.Errorf("CountKey() = %d after UnsubscribeAll, want 0", got)
	}
	if got := bus.Count(); got != 0 {
		t.Errorf("Count() = %d after UnsubscribeAll, want 0", got)
	}

	for _, tp := range []topic.Topic{"a.one", "a.two", "b.three", "b.four"} {
		if err := bus.Publish(tp, nil); err != nil {
			t.Fatalf("Publish(%q) failed: %v", tp, err)
		}
	}
	for i, calls := range received {
		if calls != 0 {
			t.Errorf("listener %d (%s) received %d messages after UnsubscribeAll", i, topics[i], calls)
		}
	}
}

func TestCancelledMidDelivery(t *testing.T) {
	bus := NewBus()

	var second *Subscription
	secondCalls := 0

	if _, err := bus.Subscribe("T", func(Message) error {
		return bus.Unsubscribe(second)
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	var err error
	second, err = bus.Subscribe("T", func(Message) error { secondCalls++; return nil }, nil)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Publish("T", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if secondCalls != 0 {
		t.Error("subscription cancelled during delivery still received the message")
	}
}

func TestPatternSubscription(t *testing.T) {
	bus := NewBus()

	var topics []topic.Topic
	if _, err := bus.Subscribe("plugin.**", func(msg Message) error {
		topics = append(topics, msg.Topic)
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	for _, tp := range []topic.Topic{"plugin.enabled", "plugin.run-anything.error", "run.started"} {
		if err := bus.Publish(tp, nil); err != nil {
			t.Fatalf("Publish(%q) failed: %v", tp, err)
		}
	}

	if len(topics) != 2 {
		t.Fatalf("pattern subscription received %v, want two plugin topics", topics)
	}
}

func TestStats(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe("T", func(Message) error { return nil }, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := bus.Subscribe("T", func(Message) error { return errors.New("fail") }, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := bus.Publish("T", nil); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	stats := bus.Stats()
	if stats.Published != 1 {
		t.Errorf("Published = %d, want 1", stats.Published)
	}
	if stats.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", stats.Delivered)
	}
	if stats.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", stats.HandlerErrors)
	}
	if stats.Subscriptions != 2 {
		t.Errorf("Subscriptions = %d, want 2", stats.Subscriptions)
	}
}
