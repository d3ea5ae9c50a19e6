package config

import (
	"fmt"
	"sort"
	"sync"
)

// Section is a named key-value namespace inside the Store. Values carry
// explicit/default semantics: defaults are fallbacks registered by the
// section owner and are never persisted, explicit values come from the
// settings file or from Set calls.
//
// Value types are string, int64, float64, bool, []any and nested
// map[string]any, matching what the TOML layer round-trips.
type Section struct {
	name string

	mu       sync.RWMutex
	values   map[string]any
	defaults map[string]any
}

func newSection(name string) *Section {
	return &Section{
		name:     name,
		values:   make(map[string]any),
		defaults: make(map[string]any),
	}
}

// Name returns the section name.
func (s *Section) Name() string {
	return s.name
}

// SetDefaults registers fallback values. Existing explicit values are
// never overwritten; registering a default for a key that already has
// one replaces the default only.
func (s *Section) SetDefaults(defaults map[string]any) {
	if len(defaults) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range defaults {
		s.defaults[k] = v
	}
}

// Set writes an explicit value for the key. If override is false and an
// explicit value already exists, the call is a no-op; the return value
// reports whether the value was written. Defaults never block a write.
func (s *Section) Set(key string, value any, override bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !override {
		if _, exists := s.values[key]; exists {
			return false
		}
	}
	s.values[key] = value
	return true
}

// Get returns the explicit value for the key if present, else its
// default, else ErrSettingNotFound.
func (s *Section) Get(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key]; ok {
		return v, nil
	}
	if v, ok := s.defaults[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrSettingNotFound, s.name, key)
}

// Has reports whether the key has an explicit or default value.
func (s *Section) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.values[key]; ok {
		return true
	}
	_, ok := s.defaults[key]
	return ok
}

// Delete removes the explicit value for the key. The default, if any,
// becomes visible again.
func (s *Section) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// String returns the setting as a string.
func (s *Section) String(key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s is %T, want string", ErrWrongType, s.name, key, v)
	}
	return str, nil
}

// Bool returns the setting as a bool.
func (s *Section) Bool(key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s.%s is %T, want bool", ErrWrongType, s.name, key, v)
	}
	return b, nil
}

// Int returns the setting as an int. TOML decodes integers as int64;
// plain ints from SetDefaults are accepted too.
func (s *Section) Int(key string) (int, error) {
	v, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s.%s is %T, want int", ErrWrongType, s.name, key, v)
	}
}

// List returns the setting as a []any.
func (s *Section) List(key string) ([]any, error) {
	v, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is %T, want list", ErrWrongType, s.name, key, v)
	}
	return list, nil
}

// Keys returns all keys with an explicit or default value, sorted.
func (s *Section) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.values)+len(s.defaults))
	for k := range s.values {
		seen[k] = struct{}{}
	}
	for k := range s.defaults {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// snapshot returns a copy of the explicit values for persistence.
func (s *Section) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.values) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// replace swaps in explicit values loaded from disk.
func (s *Section) replace(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}
