package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/testride/testride/internal/config"
	"github.com/testride/testride/internal/event/topic"
)

// Lifecycle topics published on the application bus.
const (
	TopicEnabled  topic.Topic = "plugin.enabled"
	TopicDisabled topic.Topic = "plugin.disabled"
	TopicError    topic.Topic = "plugin.error"
)

// LifecycleEvent is the payload for lifecycle topics.
type LifecycleEvent struct {
	Plugin string
	Err    error
}

// enabledKey stores the user-visible enablement state in the plugin's
// settings section. The underscore keeps it clear of plugin-declared
// setting names.
const enabledKey = "_enabled"

// Manager owns plugin registration and the Disabled <-> Enabled
// lifecycle. Registration lands every plugin in StateDisabled; there
// is no direct path from construction to StateEnabled.
type Manager struct {
	mu      sync.RWMutex
	ctx     *Context
	plugins map[string]Plugin
	order   []string
}

// NewManager creates a plugin manager bound to the shared services.
func NewManager(ctx *Context) *Manager {
	return &Manager{
		ctx:     ctx,
		plugins: make(map[string]Plugin),
	}
}

// Context returns the shared services plugins are constructed
// against.
func (m *Manager) Context() *Context {
	return m.ctx
}

// Register adds a constructed plugin in the disabled state.
func (m *Manager) Register(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	b := p.base()
	if b == nil {
		return ErrNotConstructed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[b.name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, b.name)
	}
	m.plugins[b.name] = p
	m.order = append(m.order, b.name)
	b.setState(StateDisabled)

	m.ctx.logger().Debug("plugin registered: %s", b.name)
	return nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	return p, ok
}

// List returns all plugins in registration order.
func (m *Manager) List() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Plugin, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.plugins[name])
	}
	return result
}

// Names returns all plugin names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// CountEnabled returns the number of enabled plugins.
func (m *Manager) CountEnabled() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.plugins {
		if p.base().State() == StateEnabled {
			count++
		}
	}
	return count
}

// Enable runs the plugin's Enable hook and records the state. Enabling
// an already enabled plugin is a no-op; a failed hook leaves the
// plugin in StateError and can be retried.
func (m *Manager) Enable(name string) error {
	p, err := m.lookup(name)
	if err != nil {
		return err
	}
	b := p.base()

	if b.State() == StateEnabled {
		return nil
	}

	if err := p.Enable(); err != nil {
		b.setState(StateError)
		m.publish(TopicError, LifecycleEvent{Plugin: name, Err: err})
		return fmt.Errorf("enabling plugin %q: %w", name, err)
	}

	b.setState(StateEnabled)
	m.persistEnabled(b, true)
	m.publish(TopicEnabled, LifecycleEvent{Plugin: name})
	return nil
}

// Disable reverses Enable. The plugin's own Disable hook runs first;
// afterwards the manager unconditionally unregisters the plugin's
// actions and removes its bus subscriptions, so a plugin that forgets
// its own teardown cannot leak UI entries or listeners. Disabling a
// plugin that is not enabled is a no-op.
func (m *Manager) Disable(name string) error {
	p, err := m.lookup(name)
	if err != nil {
		return err
	}
	b := p.base()

	if b.State() != StateEnabled && b.State() != StateError {
		return nil
	}

	hookErr := p.Disable()

	// Teardown happens regardless of the hook outcome.
	b.UnregisterActions()
	b.UnsubscribeAll()

	b.setState(StateDisabled)
	m.persistEnabled(b, false)
	m.publish(TopicDisabled, LifecycleEvent{Plugin: name, Err: hookErr})

	if hookErr != nil {
		return fmt.Errorf("disabling plugin %q: %w", name, hookErr)
	}
	return nil
}

// EnableAll enables every plugin whose saved enablement (or, on first
// load, initial-enable preference) says it should run. Individual
// failures are collected; the rest still enable.
func (m *Manager) EnableAll() error {
	var errs []error
	for _, name := range m.Names() {
		p, _ := m.Get(name)
		if !m.shouldEnable(p.base()) {
			continue
		}
		if err := m.Enable(name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to enable %d plugins: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// DisableAll disables all enabled plugins in reverse registration
// order, without persisting the disablement: a shutdown must not make
// every plugin start disabled next session.
func (m *Manager) DisableAll() error {
	names := m.Names()

	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		p, _ := m.Get(names[i])
		b := p.base()
		if b.State() != StateEnabled && b.State() != StateError {
			continue
		}

		hookErr := p.Disable()
		b.UnregisterActions()
		b.UnsubscribeAll()
		b.setState(StateDisabled)
		m.publish(TopicDisabled, LifecycleEvent{Plugin: names[i], Err: hookErr})

		if hookErr != nil {
			errs = append(errs, fmt.Errorf("disabling plugin %q: %w", names[i], hookErr))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to disable %d plugins: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (m *Manager) lookup(name string) (Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// shouldEnable resolves the saved enablement state, falling back to
// the plugin's initial-enable preference on first load.
func (m *Manager) shouldEnable(b *Base) bool {
	if b.section == nil {
		return b.initiallyEnabled
	}
	enabled, err := b.section.Bool(enabledKey)
	if err != nil {
		return b.initiallyEnabled
	}
	return enabled
}

func (m *Manager) persistEnabled(b *Base, enabled bool) {
	if b.section == nil {
		return
	}
	b.section.Set(enabledKey, enabled, true)
	if m.ctx.Settings == nil {
		return
	}
	if err := m.ctx.Settings.Save(); err != nil && !errors.Is(err, config.ErrNoPath) {
		m.ctx.logger().Warn("persisting plugin state for %s: %v", b.name, err)
	}
}

func (m *Manager) publish(t topic.Topic, ev LifecycleEvent) {
	if m.ctx.Bus == nil {
		return
	}
	if err := m.ctx.Bus.Publish(t, ev); err != nil {
		m.ctx.logger().Warn("publishing %s: %v", t, err)
	}
}
