// Package config provides the hierarchical settings store backing the
// application and its plugins.
//
// The store is a set of named sections, each a key-value namespace with
// default-value seeding and explicit override semantics. Explicit
// values persist to a TOML file; defaults are re-registered by their
// owners at startup and are never written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the settings file name inside the configuration directory.
const FileName = "settings.toml"

// Store is the process-wide settings store. One instance exists per
// running application; components receive it at construction.
type Store struct {
	mu       sync.RWMutex
	path     string
	sections map[string]*Section
}

// NewStore creates an empty store with no backing file.
func NewStore() *Store {
	return &Store{
		sections: make(map[string]*Section),
	}
}

// Load reads the settings file at path into a new store. A missing
// file yields an empty store bound to the path, so a first run needs
// no special casing.
func Load(path string) (*Store, error) {
	s := NewStore()
	s.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	raw := make(map[string]map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	for name, values := range raw {
		s.AddSection(name).replace(values)
	}
	return s, nil
}

// AddSection returns the section with the given name, creating it if
// absent. Calling it twice with the same name returns the same handle.
func (s *Store) AddSection(name string) *Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sec, ok := s.sections[name]; ok {
		return sec
	}
	sec := newSection(name)
	s.sections[name] = sec
	return sec
}

// Section returns the named section or ErrSectionNotFound.
func (s *Store) Section(name string) (*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.sections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	return sec, nil
}

// Sections returns all section names, sorted.
func (s *Store) Sections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sections))
	for name := range s.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilePath returns the store's backing file path, empty if none.
func (s *Store) FilePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Path joins the given parts onto the settings directory.
func (s *Store) Path(parts ...string) string {
	s.mu.RLock()
	dir := filepath.Dir(s.path)
	s.mu.RUnlock()
	return filepath.Join(append([]string{dir}, parts...)...)
}

// Save writes all explicit values to the backing file.
func (s *Store) Save() error {
	s.mu.RLock()
	path := s.path
	out := make(map[string]map[string]any)
	for name, sec := range s.sections {
		if snap := sec.snapshot(); snap != nil {
			out[name] = snap
		}
	}
	s.mu.RUnlock()

	if path == "" {
		return ErrNoPath
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file %s: %w", path, err)
	}
	return nil
}

// Reload re-reads the backing file, replacing explicit values. Section
// handles stay valid and keep their registered defaults; sections
// missing from the file lose their explicit values.
func (s *Store) Reload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return ErrNoPath
	}

	raw := make(map[string]map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading settings file %s: %w", path, err)
		}
	} else if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, sec := range s.sections {
		sec.replace(raw[name])
		delete(raw, name)
	}
	for name, values := range raw {
		sec := newSection(name)
		sec.replace(values)
		s.sections[name] = sec
	}
	return nil
}

// Initialize prepares the user settings file for the application,
// seeding it from a packaged defaults file on first run. It returns
// the user settings path. defaultsPath may be empty.
func Initialize(appName, defaultsPath string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return InitializeAt(filepath.Join(base, appName), defaultsPath)
}

// InitializeAt is Initialize with an explicit settings directory.
func InitializeAt(dir, defaultsPath string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating settings directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil || defaultsPath == "" {
		return path, nil
	}

	data, err := os.ReadFile(defaultsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", fmt.Errorf("reading default settings %s: %w", defaultsPath, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("seeding settings file %s: %w", path, err)
	}
	return path, nil
}
