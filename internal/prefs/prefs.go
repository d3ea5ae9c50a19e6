// Package prefs organizes user preferences into pages a settings
// dialog can render. Each page binds a settings section to a list of
// typed fields; the builtin pages cover saving, imports and colors.
package prefs

import (
	"errors"
	"sync"

	"github.com/testride/testride/internal/config"
)

// ErrPageExists is returned when adding a page whose name is taken.
var ErrPageExists = errors.New("preference page already registered")

// FieldKind says how a preference value should be edited.
type FieldKind int

const (
	KindText FieldKind = iota
	KindBool
	KindInt
	KindChoice
	KindColor
	KindList
)

// Field is one editable preference, bound to a key in the page's
// settings section.
type Field struct {
	Key   string
	Label string
	Kind  FieldKind

	// Choices applies to KindChoice fields.
	Choices []string
}

// Page is a named group of preferences backed by one settings section.
type Page struct {
	Name     string
	Location []string // tree placement, outermost first
	Section  *config.Section
	Fields   []Field
}

// Preferences is the registry of preference pages. Plugins add their
// own pages next to the builtin ones.
type Preferences struct {
	mu    sync.RWMutex
	store *config.Store
	pages []Page
}

// New creates the registry with the builtin pages installed.
func New(store *config.Store) *Preferences {
	p := &Preferences{store: store}
	for _, page := range builtinPages(store) {
		p.pages = append(p.pages, page)
	}
	return p
}

// Add registers a page. Page names are unique.
func (p *Preferences) Add(page Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.pages {
		if existing.Name == page.Name {
			return ErrPageExists
		}
	}
	p.pages = append(p.pages, page)
	return nil
}

// Remove unregisters the named page. Removing an unknown page is a
// no-op.
func (p *Preferences) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, page := range p.pages {
		if page.Name == name {
			p.pages = append(p.pages[:i], p.pages[i+1:]...)
			return
		}
	}
}

// Pages returns the registered pages in registration order.
func (p *Preferences) Pages() []Page {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Page, len(p.pages))
	copy(out, p.pages)
	return out
}

// Page returns the named page.
func (p *Preferences) Page(name string) (Page, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, page := range p.pages {
		if page.Name == name {
			return page, true
		}
	}
	return Page{}, false
}
