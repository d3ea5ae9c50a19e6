// Package luascript runs plugins written in Lua. A script declares its
// name, documentation and lifecycle hooks; the host exposes settings,
// the event bus and action registration through an "ide" module.
package luascript

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotAFunction is returned when a named global is not callable.
	ErrNotAFunction = errors.New("not a lua function")
)

// State wraps gopher-lua for script plugins.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes all
// access from Go. The owning goroutine is recorded while the lock is
// held so host callbacks fired from inside a running script (a script
// publishing to its own subscription) re-enter without deadlocking,
// while calls from other goroutines still block on the lock. Only
// base, table, string and math libraries are opened: scripts get no
// io, os, debug or package access.
type State struct {
	mu     sync.Mutex
	owner  atomic.Uint64
	l      *lua.LState
	closed bool
}

// goroutineID parses the current goroutine's id from its stack
// header. Goroutine ids start at 1, so 0 means unowned.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseUint(header[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func (s *State) lock() {
	s.mu.Lock()
	s.owner.Store(goroutineID())
}

func (s *State) unlock() {
	s.owner.Store(0)
	s.mu.Unlock()
}

// held reports whether the calling goroutine already holds the state.
func (s *State) held() bool {
	return s.owner.Load() == goroutineID()
}

// NewState creates a sandboxed Lua state.
func NewState() *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
	return &State{l: l}
}

// DoFile executes a Lua file synchronously.
func (s *State) DoFile(path string) error {
	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovered(func() error { return s.l.DoFile(path) })
}

// DoString executes Lua source synchronously.
func (s *State) DoString(code string) error {
	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovered(func() error { return s.l.DoString(code) })
}

// GlobalString returns the named global as a string, or "" when it is
// absent or not a string.
func (s *State) GlobalString(name string) string {
	s.lock()
	defer s.unlock()
	if s.closed {
		return ""
	}
	if v, ok := s.l.GetGlobal(name).(lua.LString); ok {
		return string(v)
	}
	return ""
}

// HasGlobalFunc reports whether the named global is a function.
func (s *State) HasGlobalFunc(name string) bool {
	s.lock()
	defer s.unlock()
	if s.closed {
		return false
	}
	return s.l.GetGlobal(name).Type() == lua.LTFunction
}

// CallGlobal calls a global Lua function with the given arguments and
// discards its results.
func (s *State) CallGlobal(name string, args ...lua.LValue) error {
	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrStateClosed
	}

	fn := s.l.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("%w: %q", ErrNotAFunction, name)
	}
	return s.callLocked(fn, args...)
}

// CallFunction calls a Lua function value, typically one a script
// handed to the host as a callback. Arguments are built by the build
// closure under the state lock, so it may allocate tables. When the
// calling goroutine is already inside the state (a script published
// to its own subscription) the nested pcall runs directly; calls from
// other goroutines wait for the lock.
func (s *State) CallFunction(fn *lua.LFunction, build func(l *lua.LState) []lua.LValue) error {
	call := func() error {
		var args []lua.LValue
		if build != nil {
			args = build(s.l)
		}
		return s.callLocked(fn, args...)
	}
	if s.held() {
		return call()
	}
	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrStateClosed
	}
	return call()
}

func (s *State) callLocked(fn lua.LValue, args ...lua.LValue) error {
	return s.recovered(func() error {
		s.l.Push(fn)
		for _, arg := range args {
			s.l.Push(arg)
		}
		if err := s.l.PCall(len(args), 0, nil); err != nil {
			return err
		}
		return nil
	})
}

func (s *State) recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// RegisterModule installs a table of Go functions as a Lua global.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.lock()
	defer s.unlock()
	if s.closed {
		return
	}
	mod := s.l.SetFuncs(s.l.NewTable(), funcs)
	s.l.SetGlobal(name, mod)
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.lock()
	defer s.unlock()
	return s.closed
}

// Close releases the Lua state. Further calls return ErrStateClosed.
func (s *State) Close() {
	s.lock()
	defer s.unlock()
	if s.closed {
		return
	}
	s.l.Close()
	s.closed = true
}

// toLua converts a Go value to its Lua representation. Unsupported
// types become nil.
func toLua(l *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := l.NewTable()
		for _, item := range val {
			t.Append(toLua(l, item))
		}
		return t
	case map[string]any:
		t := l.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(l, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// fromLua converts a Lua value to a Go value. Integers come back as
// int64, other numbers as float64. Functions and userdata become nil.
func fromLua(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		return tableToGo(v)
	default:
		return nil
	}
}

// tableToGo converts a table to a slice when it is a pure array, else
// to a string-keyed map.
func tableToGo(t *lua.LTable) any {
	maxN := t.MaxN()
	if maxN > 0 {
		out := make([]any, 0, maxN)
		for i := 1; i <= maxN; i++ {
			out = append(out, fromLua(t.RawGetInt(i)))
		}
		return out
	}
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			out[string(ks)] = fromLua(v)
		}
	})
	return out
}
