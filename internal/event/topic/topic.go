// Package topic defines hierarchical event topics and pattern matching.
//
// Topics use dot notation ("plugin.enabled", "run.finished"). A
// subscription pattern may use "*" to match one segment or "**" to
// match any remaining segments, so "plugin.*" matches "plugin.enabled"
// and "run.**" matches every topic under "run".
package topic

import "strings"

// Topic represents a hierarchical event type using dot notation.
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more trailing segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Child returns a child topic by appending a segment.
func (t Topic) Child(segment string) Topic {
	if t == "" {
		return Topic(segment)
	}
	return Topic(string(t) + Separator + segment)
}

// IsPattern reports whether the topic contains wildcard segments.
func (t Topic) IsPattern() bool {
	for _, seg := range t.Segments() {
		if seg == WildcardSingle || seg == WildcardMulti {
			return true
		}
	}
	return false
}

// IsValid reports whether the topic is non-empty with no empty segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Match reports whether the pattern t matches the concrete topic.
// A non-pattern topic matches only itself.
func (t Topic) Match(concrete Topic) bool {
	pat := t.Segments()
	got := concrete.Segments()

	for i, seg := range pat {
		if seg == WildcardMulti {
			// ** only makes sense as the final segment.
			return i == len(pat)-1
		}
		if i >= len(got) {
			return false
		}
		if seg != WildcardSingle && seg != got[i] {
			return false
		}
	}
	return len(pat) == len(got)
}
