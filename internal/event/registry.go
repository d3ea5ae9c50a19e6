package event

import (
	"sort"
	"sync"

	"github.com/testride/testride/internal/event/topic"
)

// registry stores subscriptions indexed three ways: by topic pattern
// for matching, by ID for exact removal, and by owner key so a plugin
// can be torn down without walking every topic.
type registry struct {
	mu      sync.RWMutex
	byTopic map[topic.Topic][]*Subscription
	byID    map[string]*Subscription
	byKey   map[any][]*Subscription
}

func newRegistry() *registry {
	return &registry{
		byTopic: make(map[topic.Topic][]*Subscription),
		byID:    make(map[string]*Subscription),
		byKey:   make(map[any][]*Subscription),
	}
}

func (r *registry) add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byTopic[sub.pattern] = append(r.byTopic[sub.pattern], sub)
	r.byID[sub.id] = sub
	if sub.key != nil {
		r.byKey[sub.key] = append(r.byKey[sub.key], sub)
	}
}

func (r *registry) remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[subID]
	if !exists {
		return false
	}
	r.removeLocked(sub)
	return true
}

// removeKey removes every subscription tagged with the key and returns
// the number removed.
func (r *registry) removeKey(key any) int {
	if key == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// removeLocked compacts r.byKey[key] in place; iterate a snapshot
	// so the shifting backing array cannot skip entries.
	subs := append([]*Subscription(nil), r.byKey[key]...)
	for _, sub := range subs {
		r.removeLocked(sub)
	}
	return len(subs)
}

// removeLocked must be called with mu held.
func (r *registry) removeLocked(sub *Subscription) {
	sub.cancel()
	delete(r.byID, sub.id)

	subs := r.byTopic[sub.pattern]
	for i, s := range subs {
		if s.id == sub.id {
			r.byTopic[sub.pattern] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.byTopic[sub.pattern]) == 0 {
		delete(r.byTopic, sub.pattern)
	}

	if sub.key != nil {
		keyed := r.byKey[sub.key]
		for i, s := range keyed {
			if s.id == sub.id {
				r.byKey[sub.key] = append(keyed[:i], keyed[i+1:]...)
				break
			}
		}
		if len(r.byKey[sub.key]) == 0 {
			delete(r.byKey, sub.key)
		}
	}
}

// match returns active subscriptions whose pattern matches the concrete
// topic, in subscription order.
func (r *registry) match(concrete topic.Topic) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Subscription
	for pattern, subs := range r.byTopic {
		if !pattern.Match(concrete) {
			continue
		}
		for _, sub := range subs {
			if sub.IsActive() {
				result = append(result, sub)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *registry) countKey(key any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey[key])
}
