package usages

import (
	"fmt"
	"time"
)

// Kind classifies what a usage's parent item is, so a UI can pick an
// icon for the row.
type Kind int

const (
	KindUnknown Kind = iota
	KindTestCase
	KindKeyword
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindTestCase:
		return "test case"
	case KindKeyword:
		return "keyword"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Usage is one place a named item is referenced.
type Usage struct {
	// Location identifies where the reference lives, e.g. a test or
	// keyword name.
	Location string

	// Names are the exact forms the item was referred to as.
	Names []string

	// Source is the file the reference was found in.
	Source string

	// Kind classifies the parent item.
	Kind Kind

	// Item is the referencing item itself, handed to selection
	// listeners so a UI can navigate to it.
	Item any

	// Count is how many times the item is referenced here.
	Count int
}

// Columns are the display columns in order: Location, Usage, Source.
var Columns = []string{"Location", "Usage", "Source"}

// SelectionListener is notified when a usage row is selected. It
// receives the referencing item and the name that was searched for.
type SelectionListener func(item any, name string)

// ListModel presents search results for one name as rows.
type ListModel struct {
	name      string
	usages    []Usage
	listeners []SelectionListener
}

// NewListModel builds a model for the usages of name.
func NewListModel(name string, usages []Usage) *ListModel {
	return &ListModel{name: name, usages: usages}
}

// Name returns the searched-for name.
func (m *ListModel) Name() string { return m.name }

// Title renders the window title: the name and the total reference
// count.
func (m *ListModel) Title() string {
	return fmt.Sprintf("'%s' - %d usages", m.name, m.TotalUsages())
}

// Count returns the number of rows.
func (m *ListModel) Count() int { return len(m.usages) }

// TotalUsages sums the reference counts over all rows.
func (m *ListModel) TotalUsages() int {
	total := 0
	for _, u := range m.usages {
		total += u.Count
	}
	return total
}

// Usage returns the row at idx.
func (m *ListModel) Usage(idx int) (Usage, error) {
	if idx < 0 || idx >= len(m.usages) {
		return Usage{}, fmt.Errorf("usage row %d out of range", idx)
	}
	return m.usages[idx], nil
}

// ItemText returns the cell text for a row and column, empty for
// positions that do not exist.
func (m *ListModel) ItemText(row, col int) string {
	if row < 0 || row >= len(m.usages) {
		return ""
	}
	u := m.usages[row]
	switch col {
	case 0:
		return u.Location
	case 1:
		if len(u.Names) == 0 {
			return ""
		}
		return u.Names[0]
	case 2:
		return u.Source
	default:
		return ""
	}
}

// AddSelectionListener registers a callback for row selection.
func (m *ListModel) AddSelectionListener(l SelectionListener) {
	m.listeners = append(m.listeners, l)
}

// Select notifies listeners that the row at idx was chosen.
func (m *ListModel) Select(idx int) error {
	u, err := m.Usage(idx)
	if err != nil {
		return err
	}
	for _, l := range m.listeners {
		l(u.Item, m.name)
	}
	return nil
}

// SearchFunc performs the actual usage search for a name.
type SearchFunc func(name string) []Usage

// DefaultTTL is how long Finder caches search results.
const DefaultTTL = 500 * time.Millisecond

// Finder answers usage queries through a search function, caching
// results briefly so repeated queries while typing do not re-scan.
type Finder struct {
	search SearchFunc
	cache  *ExpiringCache[string, []Usage]
}

// NewFinder creates a Finder around search.
func NewFinder(search SearchFunc, ttl time.Duration) *Finder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Finder{
		search: search,
		cache:  NewExpiringCache[string, []Usage](ttl),
	}
}

// Find returns the usages of name, from cache when fresh.
func (f *Finder) Find(name string) []Usage {
	if hits, ok := f.cache.Get(name); ok {
		return hits
	}
	hits := f.search(name)
	f.cache.Put(name, hits)
	return hits
}

// FindModel wraps Find results in a ListModel.
func (f *Finder) FindModel(name string) *ListModel {
	return NewListModel(name, f.Find(name))
}

// Invalidate drops cached results for name, e.g. after an edit.
func (f *Finder) Invalidate(name string) {
	f.cache.Invalidate(name)
}
