package luascript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/config"
	"github.com/testride/testride/internal/event"
	"github.com/testride/testride/internal/plugin"
)

func testContext() *plugin.Context {
	return &plugin.Context{
		Settings: config.NewStore(),
		Bus:      event.NewBus(),
		Actions:  action.NewRegistry(),
	}
}

func TestLoadStringMetadata(t *testing.T) {
	p, err := LoadString(testContext(), "fallback", `
		plugin_name = "greeter"
		plugin_doc = "Says hello."
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	if p.Name() != "greeter" {
		t.Errorf("Name() = %q, want %q", p.Name(), "greeter")
	}
	if p.Doc() != "Says hello." {
		t.Errorf("Doc() = %q, want %q", p.Doc(), "Says hello.")
	}
	if p.Metadata()["kind"] != "lua" {
		t.Errorf("Metadata kind = %q, want lua", p.Metadata()["kind"])
	}
}

func TestLoadStringFallbackName(t *testing.T) {
	p, err := LoadString(testContext(), "fallback", `x = 1`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()
	if p.Name() != "fallback" {
		t.Errorf("Name() = %q, want %q", p.Name(), "fallback")
	}
}

func TestLoadStringSyntaxError(t *testing.T) {
	if _, err := LoadString(testContext(), "bad", `this is not lua`); err == nil {
		t.Fatal("LoadString() succeeded on invalid source")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.lua")
	if err := os.WriteFile(path, []byte(`plugin_doc = "From a file."`), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	p, err := LoadFile(testContext(), path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	defer p.Close()

	if p.Name() != "hello" {
		t.Errorf("Name() = %q, want file-derived %q", p.Name(), "hello")
	}
	if p.Path() != path {
		t.Errorf("Path() = %q, want %q", p.Path(), path)
	}
}

func TestLifecycleHooks(t *testing.T) {
	ctx := testContext()
	m := plugin.NewManager(ctx)

	p, err := LoadString(ctx, "hooked", `
		plugin_name = "hooked"
		calls = ""
		function enable() calls = calls .. "e" end
		function disable() calls = calls .. "d" end
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.Enable("hooked"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if err := m.Disable("hooked"); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}

	if got := p.state.GlobalString("calls"); got != "ed" {
		t.Errorf("hook calls = %q, want %q", got, "ed")
	}
}

func TestEnableErrorSurfaces(t *testing.T) {
	ctx := testContext()
	m := plugin.NewManager(ctx)

	p, err := LoadString(ctx, "broken", `
		plugin_name = "broken"
		function enable() error("no can do") end
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	err = m.Enable("broken")
	if err == nil {
		t.Fatal("Enable() succeeded, want script error")
	}
	if !strings.Contains(err.Error(), "no can do") {
		t.Errorf("error %q does not carry the script message", err)
	}
	if p.State() != plugin.StateError {
		t.Errorf("state = %v, want StateError", p.State())
	}
}

func TestScriptUsesHostModule(t *testing.T) {
	ctx := testContext()
	m := plugin.NewManager(ctx)

	p, err := LoadString(ctx, "wired", `
		plugin_name = "wired"
		seen = ""
		function enable()
			ide.save_setting("greeting", "hi")
			ide.subscribe("suite.opened", function(t, data)
				seen = t .. "=" .. data
			end)
			ide.register_action("Tools", "Greet", function()
				seen = seen .. "!"
			end, "Says hi", "Ctrl-G")
		end
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.Enable("wired"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}

	// The saved setting lands in the plugin's own section.
	v, err := p.Setting("greeting")
	if err != nil || v != "hi" {
		t.Errorf("Setting(greeting) = %v, %v; want hi", v, err)
	}

	// The subscription receives bus messages.
	if err := ctx.Bus.Publish("suite.opened", "demo"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if got := p.state.GlobalString("seen"); got != "suite.opened=demo" {
		t.Errorf("subscriber saw %q, want %q", got, "suite.opened=demo")
	}

	// The registered action invokes the script handler.
	entries := ctx.Actions.Menu("Tools")
	if len(entries) != 1 {
		t.Fatalf("Menu(Tools) has %d entries, want 1", len(entries))
	}
	entries[0].Info.Handler()
	if got := p.state.GlobalString("seen"); got != "suite.opened=demo!" {
		t.Errorf("action handler result %q, want trailing !", got)
	}

	// Disable tears the wiring down.
	if err := m.Disable("wired"); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}
	if ctx.Actions.Count() != 0 {
		t.Errorf("actions remain after Disable: %d", ctx.Actions.Count())
	}
	if err := ctx.Bus.Publish("suite.opened", "again"); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if got := p.state.GlobalString("seen"); got != "suite.opened=demo!" {
		t.Errorf("subscriber still live after Disable: %q", got)
	}
}

func TestScriptPublishesToOwnSubscription(t *testing.T) {
	ctx := testContext()
	m := plugin.NewManager(ctx)

	// Bus delivery is synchronous, so the publish inside enable()
	// re-enters the script while it is already executing.
	p, err := LoadString(ctx, "echo", `
		plugin_name = "echo"
		hits = ""
		function enable()
			ide.subscribe("echo.ping", function(t, data)
				hits = hits .. "x"
			end)
			ide.publish("echo.ping", "self")
		end
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Enable("echo"); err != nil {
			t.Errorf("Enable() failed: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enable() deadlocked on self-publish")
	}

	if got := p.state.GlobalString("hits"); got != "x" {
		t.Errorf("subscriber hits = %q, want one delivery", got)
	}

	// Delivery from another goroutine takes the lock normally.
	external := make(chan error, 1)
	go func() {
		external <- ctx.Bus.Publish("echo.ping", "other")
	}()
	select {
	case err := <-external:
		if err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cross-goroutine delivery deadlocked")
	}
	if got := p.state.GlobalString("hits"); got != "xx" {
		t.Errorf("subscriber hits = %q after external publish, want two deliveries", got)
	}
}

func TestGetSettingDefault(t *testing.T) {
	ctx := testContext()
	p, err := LoadString(ctx, "reader", `
		plugin_name = "reader"
		got = nil
		function enable() got = ide.get_setting("missing") end
	`)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	defer p.Close()

	m := plugin.NewManager(ctx)
	if err := m.Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.Enable("reader"); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if got := p.state.GlobalString("got"); got != "" {
		t.Errorf("missing setting read back %q, want nil", got)
	}
}

func TestClosedStateRejectsCalls(t *testing.T) {
	st := NewState()
	st.Close()
	if err := st.DoString(`x = 1`); err != ErrStateClosed {
		t.Errorf("DoString on closed state: got %v, want ErrStateClosed", err)
	}
	if !st.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
}
