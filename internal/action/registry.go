package action

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry errors.
var (
	ErrMissingMenu      = errors.New("action has no menu")
	ErrMissingName      = errors.New("action has no name")
	ErrMissingHandler   = errors.New("action has no handler")
	ErrShortcutConflict = errors.New("shortcut already bound")
)

// Entry is a registered action as the host UI sees it.
type Entry struct {
	Info     Info
	Shortcut Shortcut // zero value when Info.Shortcut is empty
}

// Handle identifies one registered action. Unregister removes exactly
// that entry and is idempotent.
type Handle struct {
	id       string
	registry *Registry
	entry    Entry
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Entry returns the registered entry.
func (h *Handle) Entry() Entry {
	return h.entry
}

// Unregister removes this entry from the registry, including any
// shortcut binding. Calling it twice is harmless.
func (h *Handle) Unregister() {
	h.registry.unregister(h)
}

// Registry is the process-wide action registry. One instance exists
// per running application, shared by all plugins.
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]*Handle
	menus     map[string][]*Handle // registration order per menu
	shortcuts map[string]*Handle   // canonical shortcut -> owner
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[string]*Handle),
		menus:     make(map[string][]*Handle),
		shortcuts: make(map[string]*Handle),
	}
}

// Register validates the descriptor, creates the menu entry and binds
// the shortcut if one is given. The returned handle is the only way to
// remove the entry.
func (r *Registry) Register(info Info) (*Handle, error) {
	if info.Menu == "" {
		return nil, ErrMissingMenu
	}
	if !info.Separator {
		if info.Name == "" {
			return nil, ErrMissingName
		}
		if info.Handler == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, info.Name)
		}
	}

	entry := Entry{Info: info}
	if info.Shortcut != "" {
		sc, err := ParseShortcut(info.Shortcut)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", info.Name, err)
		}
		entry.Shortcut = sc
	}

	h := &Handle{
		id:       uuid.New().String(),
		registry: r,
		entry:    entry,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Shortcut != "" {
		canonical := entry.Shortcut.String()
		if owner, taken := r.shortcuts[canonical]; taken {
			return nil, fmt.Errorf("%w: %s (held by %q)", ErrShortcutConflict, canonical, owner.entry.Info.Name)
		}
		r.shortcuts[canonical] = h
	}

	r.byID[h.id] = h
	r.menus[info.Menu] = append(r.menus[info.Menu], h)
	return h, nil
}

func (r *Registry) unregister(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[h.id]; !exists {
		return
	}
	delete(r.byID, h.id)

	menu := h.entry.Info.Menu
	entries := r.menus[menu]
	for i, e := range entries {
		if e.id == h.id {
			r.menus[menu] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(r.menus[menu]) == 0 {
		delete(r.menus, menu)
	}

	if h.entry.Info.Shortcut != "" {
		canonical := h.entry.Shortcut.String()
		if r.shortcuts[canonical] == h {
			delete(r.shortcuts, canonical)
		}
	}
}

// Menu returns the entries of a menu in registration order.
func (r *Registry) Menu(name string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.menus[name]
	entries := make([]Entry, len(handles))
	for i, h := range handles {
		entries[i] = h.entry
	}
	return entries
}

// Menus returns the names of menus with at least one entry.
func (r *Registry) Menus() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.menus))
	for name := range r.menus {
		names = append(names, name)
	}
	return names
}

// Lookup returns the handler bound to a shortcut, if any.
func (r *Registry) Lookup(sc Shortcut) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.shortcuts[sc.String()]
	if !ok {
		return nil, false
	}
	return h.entry.Info.Handler, true
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
