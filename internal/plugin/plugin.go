// Package plugin provides the extension framework: the Base every
// plugin embeds, the lifecycle manager, and the contract between
// plugins and the host application.
//
// A plugin is a Go value embedding *Base. Construction binds identity,
// a settings section seeded with the plugin's defaults, and the shared
// application services; it must not touch the UI - the host window may
// not exist yet. UI integration happens in Enable and is reversed in
// Disable; the manager additionally tears down any actions and bus
// subscriptions the plugin left behind.
package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/config"
	"github.com/testride/testride/internal/event"
	"github.com/testride/testride/internal/event/topic"
	"github.com/testride/testride/internal/logging"
)

// SectionPrefix namespaces plugin settings sections in the store.
const SectionPrefix = "plugins."

// Plugin is the interface every plugin satisfies by embedding *Base.
type Plugin interface {
	// Enable is called by the host when the plugin is enabled. UI
	// integration belongs here. The default is a no-op.
	Enable() error

	// Disable is called by the host when the plugin is disabled and
	// should undo whatever Enable set up. Registered actions and bus
	// subscriptions are removed by the manager afterwards regardless.
	Disable() error

	// base is unexported so only types embedding *Base implement
	// Plugin.
	base() *Base
}

// Describer is implemented by plugins that provide their documentation
// as a method instead of through Options.Doc.
type Describer interface {
	Description() string
}

// Options configures a Base at construction. The zero value gives a
// plugin named after its Go type, no documentation, no defaults, and
// initial enablement on first load.
type Options struct {
	// Name identifies the plugin. Derived from the concrete type name,
	// dropping a trailing "Plugin", when empty.
	Name string

	// Doc is the plugin documentation. Falls back to the concrete
	// type's Description method when empty.
	Doc string

	// Metadata is free-form information shown by the plugin manager.
	Metadata map[string]string

	// DefaultSettings seeds the plugin's settings section.
	DefaultSettings map[string]any

	// InitiallyDisabled makes the plugin start disabled the first time
	// it is loaded. Users can change the state later; the saved state
	// wins on subsequent loads.
	InitiallyDisabled bool
}

// Base carries plugin identity and the helpers plugins use to interact
// with the host. Embed a *Base and build it with NewBase.
type Base struct {
	name     string
	doc      string
	metadata map[string]string

	initiallyEnabled bool

	ctx     *Context
	section *config.Section

	mu      sync.Mutex
	state   State
	actions []*action.Handle
}

// NewBase builds the Base for a plugin. self must be the plugin value
// embedding the returned Base; it supplies the type name and optional
// Description fallback.
func NewBase(ctx *Context, self Plugin, opts Options) *Base {
	name := opts.Name
	if name == "" {
		name = deriveName(self)
	}
	doc := opts.Doc
	if doc == "" {
		if d, ok := self.(Describer); ok {
			doc = d.Description()
		}
	}
	metadata := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	b := &Base{
		name:             name,
		doc:              doc,
		metadata:         metadata,
		initiallyEnabled: !opts.InitiallyDisabled,
		ctx:              ctx,
		state:            StateUninitialized,
	}
	if ctx != nil && ctx.Settings != nil {
		b.section = ctx.Settings.AddSection(SectionPrefix + name)
		b.section.SetDefaults(opts.DefaultSettings)
	}
	return b
}

// deriveName turns the concrete plugin type name into a plugin name,
// dropping a trailing "Plugin" the way the original API did.
func deriveName(self Plugin) string {
	t := reflect.TypeOf(self)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "plugin"
	}
	name := t.Name()
	if trimmed := strings.TrimSuffix(name, "Plugin"); trimmed != "" {
		return trimmed
	}
	return name
}

func (b *Base) base() *Base { return b }

// Enable is the default no-op enable hook.
func (b *Base) Enable() error { return nil }

// Disable is the default no-op disable hook.
func (b *Base) Disable() error { return nil }

// Name returns the plugin name.
func (b *Base) Name() string { return b.name }

// Doc returns the plugin documentation.
func (b *Base) Doc() string { return b.doc }

// Metadata returns a copy of the plugin metadata.
func (b *Base) Metadata() map[string]string {
	out := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		out[k] = v
	}
	return out
}

// InitiallyEnabled reports whether the plugin should be enabled the
// first time it is loaded.
func (b *Base) InitiallyEnabled() bool { return b.initiallyEnabled }

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// Settings returns the plugin's settings section.
func (b *Base) Settings() *config.Section { return b.section }

// Setting returns the value of a saved setting: the explicit value if
// one exists, else the declared default, else config.ErrSettingNotFound.
func (b *Base) Setting(name string) (any, error) {
	if b.section == nil {
		return nil, fmt.Errorf("%w: %s", config.ErrSettingNotFound, name)
	}
	return b.section.Get(name)
}

// SaveSetting writes a setting through to the settings store and
// persists the store. With override false an existing explicit value
// is kept and only the store is left untouched.
func (b *Base) SaveSetting(name string, value any, override bool) error {
	if b.section == nil {
		return config.ErrNoPath
	}
	if !b.section.Set(name, value, override) {
		return nil
	}
	if err := b.ctx.Settings.Save(); err != nil && !errors.Is(err, config.ErrNoPath) {
		return fmt.Errorf("saving setting %s.%s: %w", b.section.Name(), name, err)
	}
	return nil
}

// Subscribe starts listening to messages on the topic pattern. The
// subscription is tagged with this plugin so UnsubscribeAll (and the
// manager at disable time) can remove it.
func (b *Base) Subscribe(pattern topic.Topic, handler event.Handler) (*event.Subscription, error) {
	return b.ctx.Bus.Subscribe(pattern, handler, b)
}

// Unsubscribe stops a single subscription created with Subscribe.
func (b *Base) Unsubscribe(sub *event.Subscription) error {
	return b.ctx.Bus.Unsubscribe(sub)
}

// UnsubscribeAll stops every subscription this plugin created. It
// returns the number removed.
func (b *Base) UnsubscribeAll() int {
	return b.ctx.Bus.UnsubscribeAll(b)
}

// Publish publishes a message on the bus.
func (b *Base) Publish(t topic.Topic, data any) error {
	return b.ctx.Bus.Publish(t, data)
}

// RegisterAction registers a menu entry (and optional shortcut) and
// tracks it so UnregisterActions removes exactly what this plugin
// added.
func (b *Base) RegisterAction(info action.Info) error {
	h, err := b.ctx.Actions.Register(info)
	if err != nil {
		return fmt.Errorf("plugin %q: %w", b.name, err)
	}
	b.mu.Lock()
	b.actions = append(b.actions, h)
	b.mu.Unlock()
	return nil
}

// RegisterActions registers multiple actions. On failure the actions
// registered so far stay tracked, so a subsequent UnregisterActions
// still cleans up.
func (b *Base) RegisterActions(infos []action.Info) error {
	for _, info := range infos {
		if err := b.RegisterAction(info); err != nil {
			return err
		}
	}
	return nil
}

// UnregisterActions removes every action this plugin registered,
// leaving other plugins' actions untouched.
func (b *Base) UnregisterActions() {
	b.mu.Lock()
	actions := b.actions
	b.actions = nil
	b.mu.Unlock()

	for _, h := range actions {
		h.Unregister()
	}
}

// ActionCount returns the number of actions currently tracked.
func (b *Base) ActionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.actions)
}

// Logger returns the plugin's logger.
func (b *Base) Logger() *logging.Logger {
	return b.ctx.logger().WithField("plugin", b.name)
}

// Host returns the application handle.
func (b *Base) Host() Host { return b.ctx.Host }

// Frame returns the main window, or nil when headless.
func (b *Base) Frame() Frame {
	if b.ctx.Host == nil {
		return nil
	}
	return b.ctx.Host.Frame()
}

// Model returns the host's data model.
func (b *Base) Model() any {
	if b.ctx.Host == nil {
		return nil
	}
	return b.ctx.Host.Model()
}

// NewSuiteCanBeOpened checks for modified files and asks the user what
// to do. False means the user cancelled.
func (b *Base) NewSuiteCanBeOpened() bool {
	if b.ctx.Host == nil {
		return true
	}
	return b.ctx.Host.OkToOpenNew()
}

// OpenSuite opens the test suite at path in the host frame.
func (b *Base) OpenSuite(path string) error {
	frame := b.Frame()
	if frame == nil {
		return ErrNoFrame
	}
	return frame.OpenSuite(path)
}

// AddTab adds a tab to the host notebook and shows it.
func (b *Base) AddTab(tab any, title string, allowClosing bool) error {
	frame := b.Frame()
	if frame == nil {
		return ErrNoFrame
	}
	frame.Notebook().AddTab(tab, title, allowClosing)
	return nil
}

// ShowTab makes a tab added with AddTab visible.
func (b *Base) ShowTab(tab any) error {
	frame := b.Frame()
	if frame == nil {
		return ErrNoFrame
	}
	frame.Notebook().ShowTab(tab)
	return nil
}

// DeleteTab removes a tab added with AddTab.
func (b *Base) DeleteTab(tab any) error {
	frame := b.Frame()
	if frame == nil {
		return ErrNoFrame
	}
	frame.Notebook().DeleteTab(tab)
	return nil
}

// TabIsVisible reports whether a tab added with AddTab is visible.
func (b *Base) TabIsVisible(tab any) bool {
	frame := b.Frame()
	if frame == nil {
		return false
	}
	return frame.Notebook().TabIsVisible(tab)
}

// SelectedDatafile returns the data file currently selected in the
// tree, or nil when headless.
func (b *Base) SelectedDatafile() any {
	frame := b.Frame()
	if frame == nil {
		return nil
	}
	return frame.Tree().SelectedDatafile()
}

// SelectedItem returns the item currently selected in the tree.
func (b *Base) SelectedItem() any {
	frame := b.Frame()
	if frame == nil {
		return nil
	}
	return frame.Tree().SelectedItem()
}

// SaveSelectedDatafile saves the data file that is currently selected
// in the tree.
func (b *Base) SaveSelectedDatafile() error {
	frame := b.Frame()
	if frame == nil {
		return ErrNoFrame
	}
	return frame.Save(frame.Tree().SelectedDatafile())
}
