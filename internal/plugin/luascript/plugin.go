package luascript

import (
	"fmt"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/event"
	"github.com/testride/testride/internal/event/topic"
	"github.com/testride/testride/internal/plugin"
)

// Globals a script may define to describe itself, and the lifecycle
// hooks the host calls.
const (
	nameGlobal  = "plugin_name"
	docGlobal   = "plugin_doc"
	enableFunc  = "enable"
	disableFunc = "disable"
)

// ScriptPlugin adapts a Lua script to the plugin lifecycle. The script
// runs once at load time to define its globals; the enable and disable
// functions, when present, run on the matching lifecycle transitions.
// Scripts reach the host through the "ide" module: log, publish,
// subscribe, get_setting, save_setting and register_action.
type ScriptPlugin struct {
	*plugin.Base
	state *State
	path  string
}

// LoadFile loads a script plugin from a Lua file. The plugin name
// defaults to the file name without extension when the script does not
// set plugin_name.
func LoadFile(ctx *plugin.Context, path string) (*ScriptPlugin, error) {
	base := filepath.Base(path)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))
	return load(ctx, fallback, path, func(st *State) error {
		return st.DoFile(path)
	})
}

// LoadString loads a script plugin from Lua source.
func LoadString(ctx *plugin.Context, name, code string) (*ScriptPlugin, error) {
	return load(ctx, name, "", func(st *State) error {
		return st.DoString(code)
	})
}

func load(ctx *plugin.Context, fallback, path string, run func(*State) error) (*ScriptPlugin, error) {
	st := NewState()
	p := &ScriptPlugin{state: st, path: path}
	st.RegisterModule("ide", p.hostModule())

	if err := run(st); err != nil {
		st.Close()
		return nil, fmt.Errorf("loading lua plugin: %w", err)
	}

	name := st.GlobalString(nameGlobal)
	if name == "" {
		name = fallback
	}
	meta := map[string]string{"kind": "lua"}
	if path != "" {
		meta["source"] = path
	}
	p.Base = plugin.NewBase(ctx, p, plugin.Options{
		Name:     name,
		Doc:      st.GlobalString(docGlobal),
		Metadata: meta,
	})
	return p, nil
}

// Enable runs the script's enable function, if it defines one.
func (p *ScriptPlugin) Enable() error {
	if !p.state.HasGlobalFunc(enableFunc) {
		return nil
	}
	if err := p.state.CallGlobal(enableFunc); err != nil {
		return fmt.Errorf("lua plugin %q enable: %w", p.Name(), err)
	}
	return nil
}

// Disable runs the script's disable function, if it defines one. The
// manager tears down the plugin's actions and subscriptions afterwards
// regardless.
func (p *ScriptPlugin) Disable() error {
	if !p.state.HasGlobalFunc(disableFunc) {
		return nil
	}
	if err := p.state.CallGlobal(disableFunc); err != nil {
		return fmt.Errorf("lua plugin %q disable: %w", p.Name(), err)
	}
	return nil
}

// Path returns the script file the plugin was loaded from, or "" for
// inline source.
func (p *ScriptPlugin) Path() string { return p.path }

// Close releases the Lua state. The plugin must be disabled first.
func (p *ScriptPlugin) Close() { p.state.Close() }

// hostModule builds the "ide" module. The closures tolerate being
// called before the plugin is fully constructed by raising a Lua
// error, which surfaces as a load failure.
func (p *ScriptPlugin) hostModule() map[string]lua.LGFunction {
	ready := func(l *lua.LState) bool {
		if p.Base == nil {
			l.RaiseError("ide is not available at script load time; use enable()")
			return false
		}
		return true
	}

	return map[string]lua.LGFunction{
		"log": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			p.Logger().Info("%s", l.CheckString(1))
			return 0
		},
		"publish": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			t := topic.Topic(l.CheckString(1))
			if err := p.Publish(t, fromLua(l.Get(2))); err != nil {
				l.RaiseError("publish: %v", err)
			}
			return 0
		},
		"subscribe": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			pattern := topic.Topic(l.CheckString(1))
			fn := l.CheckFunction(2)
			_, err := p.Subscribe(pattern, func(msg event.Message) error {
				return p.state.CallFunction(fn, func(l *lua.LState) []lua.LValue {
					return []lua.LValue{lua.LString(msg.Topic), toLua(l, msg.Data)}
				})
			})
			if err != nil {
				l.RaiseError("subscribe: %v", err)
			}
			return 0
		},
		"get_setting": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			v, err := p.Setting(l.CheckString(1))
			if err != nil {
				l.Push(lua.LNil)
				return 1
			}
			l.Push(toLua(l, v))
			return 1
		},
		"save_setting": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			key := l.CheckString(1)
			if err := p.SaveSetting(key, fromLua(l.Get(2)), true); err != nil {
				l.RaiseError("save_setting: %v", err)
			}
			return 0
		},
		"register_action": func(l *lua.LState) int {
			if !ready(l) {
				return 0
			}
			info := action.Info{
				Menu:    l.CheckString(1),
				Name:    l.CheckString(2),
				Handler: p.luaHandler(l.CheckFunction(3)),
			}
			if l.GetTop() >= 4 {
				info.Doc = l.CheckString(4)
			}
			if l.GetTop() >= 5 {
				info.Shortcut = l.CheckString(5)
			}
			if err := p.RegisterAction(info); err != nil {
				l.RaiseError("register_action: %v", err)
			}
			return 0
		},
	}
}

func (p *ScriptPlugin) luaHandler(fn *lua.LFunction) func() {
	return func() {
		if err := p.state.CallFunction(fn, nil); err != nil {
			p.Logger().Warn("lua action handler: %v", err)
		}
	}
}
