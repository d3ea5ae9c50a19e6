package plugin

import (
	"errors"
	"testing"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/event"
)

// hookPlugin records lifecycle hook calls and can be told to fail.
type hookPlugin struct {
	*Base
	enables   int
	disables  int
	enableErr error
}

func (p *hookPlugin) Enable() error {
	p.enables++
	if p.enableErr != nil {
		return p.enableErr
	}
	// A typical plugin wires itself up on enable.
	if err := p.RegisterAction(action.Info{Menu: "Tools", Name: p.Name(), Handler: func() {}}); err != nil {
		return err
	}
	_, err := p.Subscribe("data.changed", func(event.Message) error { return nil })
	return err
}

func (p *hookPlugin) Disable() error {
	p.disables++
	return nil
}

func newHookPlugin(ctx *Context, opts Options) *hookPlugin {
	p := &hookPlugin{}
	p.Base = NewBase(ctx, p, opts)
	return p
}

func TestRegisterValidation(t *testing.T) {
	m := NewManager(testContext())

	if err := m.Register(nil); !errors.Is(err, ErrNilPlugin) {
		t.Errorf("Register(nil): got %v, want ErrNilPlugin", err)
	}

	p := newHookPlugin(testContext(), Options{Name: "first"})
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if p.State() != StateDisabled {
		t.Errorf("state after Register = %v, want StateDisabled", p.State())
	}

	dup := newHookPlugin(testContext(), Options{Name: "first"})
	if err := m.Register(dup); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Register: got %v, want ErrAlreadyRegistered", err)
	}

	bare := &hookPlugin{}
	if err := m.Register(bare); !errors.Is(err, ErrNotConstructed) {
		t.Errorf("unconstructed Register: got %v, want ErrNotConstructed", err)
	}
}

func TestEnableDisableLifecycle(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)
	p := newHookPlugin(ctx, Options{Name: "worker"})
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if err := m.Enable("worker"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if p.State() != StateEnabled {
		t.Errorf("state = %v, want StateEnabled", p.State())
	}
	if p.enables != 1 {
		t.Errorf("Enable hook ran %d times, want 1", p.enables)
	}

	// Enabling again is a no-op, not a second hook call.
	if err := m.Enable("worker"); err != nil {
		t.Fatalf("second Enable() failed: %v", err)
	}
	if p.enables != 1 {
		t.Errorf("Enable hook ran %d times after re-enable, want 1", p.enables)
	}

	if err := m.Disable("worker"); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}
	if p.State() != StateDisabled {
		t.Errorf("state = %v, want StateDisabled", p.State())
	}
	if p.disables != 1 {
		t.Errorf("Disable hook ran %d times, want 1", p.disables)
	}

	// Disabling a disabled plugin is a no-op.
	if err := m.Disable("worker"); err != nil {
		t.Fatalf("second Disable() failed: %v", err)
	}
	if p.disables != 1 {
		t.Errorf("Disable hook ran %d times after re-disable, want 1", p.disables)
	}

	if err := m.Enable("ghost"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Enable unknown: got %v, want ErrPluginNotFound", err)
	}
}

func TestDisableTearsDownActionsAndSubscriptions(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)
	p := newHookPlugin(ctx, Options{Name: "worker"})
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if err := m.Enable("worker"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if ctx.Actions.Count() != 1 {
		t.Fatalf("action Count() = %d, want 1", ctx.Actions.Count())
	}
	if ctx.Bus.CountKey(p.base()) != 1 {
		t.Fatalf("bus CountKey() = %d, want 1", ctx.Bus.CountKey(p.base()))
	}

	if err := m.Disable("worker"); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}
	if ctx.Actions.Count() != 0 {
		t.Errorf("actions left behind after Disable: %d", ctx.Actions.Count())
	}
	if ctx.Bus.CountKey(p.base()) != 0 {
		t.Errorf("subscriptions left behind after Disable: %d", ctx.Bus.CountKey(p.base()))
	}
}

func TestEnableFailureIsRetryable(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)
	p := newHookPlugin(ctx, Options{Name: "flaky"})
	p.enableErr = errors.New("boom")
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	var got []LifecycleEvent
	if _, err := ctx.Bus.Subscribe(TopicError, func(msg event.Message) error {
		got = append(got, msg.Data.(LifecycleEvent))
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := m.Enable("flaky"); err == nil {
		t.Fatal("Enable() succeeded, want error")
	}
	if p.State() != StateError {
		t.Errorf("state = %v, want StateError", p.State())
	}
	if len(got) != 1 || got[0].Plugin != "flaky" || got[0].Err == nil {
		t.Errorf("error event = %+v, want one event for flaky with Err set", got)
	}

	// The failure is not terminal: fix the cause and enable again.
	p.enableErr = nil
	if err := m.Enable("flaky"); err != nil {
		t.Fatalf("retry Enable() failed: %v", err)
	}
	if p.State() != StateEnabled {
		t.Errorf("state after retry = %v, want StateEnabled", p.State())
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)
	p := newHookPlugin(ctx, Options{Name: "worker"})
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	var topics []string
	if _, err := ctx.Bus.Subscribe("plugin.**", func(msg event.Message) error {
		topics = append(topics, string(msg.Topic)+":"+msg.Data.(LifecycleEvent).Plugin)
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := m.Enable("worker"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if err := m.Disable("worker"); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}

	want := []string{"plugin.enabled:worker", "plugin.disabled:worker"}
	if len(topics) != len(want) {
		t.Fatalf("got %d lifecycle events %v, want %v", len(topics), topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}

func TestEnableAllHonorsSavedEnablement(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)

	on := newHookPlugin(ctx, Options{Name: "on"})
	off := newHookPlugin(ctx, Options{Name: "off", InitiallyDisabled: true})
	saved := newHookPlugin(ctx, Options{Name: "saved", InitiallyDisabled: true})
	for _, p := range []Plugin{on, off, saved} {
		if err := m.Register(p); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}
	// A previous session enabled "saved" despite its initial preference.
	saved.Settings().Set(enabledKey, true, true)

	if err := m.EnableAll(); err != nil {
		t.Fatalf("EnableAll() failed: %v", err)
	}
	if on.State() != StateEnabled {
		t.Error("initially-enabled plugin was not enabled")
	}
	if off.State() != StateDisabled {
		t.Error("initially-disabled plugin was enabled")
	}
	if saved.State() != StateEnabled {
		t.Error("saved enablement was not honored")
	}
	if m.CountEnabled() != 2 {
		t.Errorf("CountEnabled() = %d, want 2", m.CountEnabled())
	}
}

func TestDisableAllDoesNotPersistDisablement(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)
	p := newHookPlugin(ctx, Options{Name: "worker"})
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if err := m.Enable("worker"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if err := m.DisableAll(); err != nil {
		t.Fatalf("DisableAll() failed: %v", err)
	}
	if p.State() != StateDisabled {
		t.Errorf("state = %v, want StateDisabled", p.State())
	}

	// Shutdown must leave the saved enablement untouched so the next
	// session starts the plugin again.
	v, err := p.Settings().Get(enabledKey)
	if err != nil {
		t.Fatalf("enablement setting missing: %v", err)
	}
	if v != true {
		t.Errorf("saved enablement = %v, want true", v)
	}
	if err := m.EnableAll(); err != nil {
		t.Fatalf("EnableAll() failed: %v", err)
	}
	if p.State() != StateEnabled {
		t.Error("plugin did not come back after restart-style EnableAll")
	}
}

func TestDisableAllReverseOrder(t *testing.T) {
	ctx := testContext()
	m := NewManager(ctx)

	var disabled []string
	mk := func(name string) {
		p := &hookPlugin{}
		p.Base = NewBase(ctx, p, Options{Name: name})
		if err := m.Register(p); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}
	mk("a")
	mk("b")
	mk("c")
	if _, err := ctx.Bus.Subscribe(TopicDisabled, func(msg event.Message) error {
		disabled = append(disabled, msg.Data.(LifecycleEvent).Plugin)
		return nil
	}, nil); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := m.EnableAll(); err != nil {
		t.Fatalf("EnableAll() failed: %v", err)
	}
	if err := m.DisableAll(); err != nil {
		t.Fatalf("DisableAll() failed: %v", err)
	}

	want := []string{"c", "b", "a"}
	for i := range want {
		if i >= len(disabled) || disabled[i] != want[i] {
			t.Fatalf("disable order = %v, want %v", disabled, want)
		}
	}
}
