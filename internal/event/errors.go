package event

import "errors"

// Bus errors.
var (
	// ErrNilHandler indicates a subscription was attempted with a nil handler.
	ErrNilHandler = errors.New("nil handler")

	// ErrInvalidTopic indicates an empty or malformed topic.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrPatternTopic indicates a publish was attempted on a wildcard pattern.
	ErrPatternTopic = errors.New("cannot publish to a pattern topic")

	// ErrInvalidSubscription indicates a nil subscription handle.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound indicates the subscription is not registered.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
