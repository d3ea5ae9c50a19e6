// Package run lets users attach arbitrary external commands to the
// application: named run configurations that are listed in a menu and
// executed as child processes with streamed output.
package run

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned for config list positions that do not
// exist.
var ErrIndexOutOfRange = errors.New("run config index out of range")

// Config is one runnable command with a display name and a short
// description.
type Config struct {
	Name    string
	Command string
	Doc     string
}

// Help returns the menu help text: the doc followed by the command in
// parentheses.
func (c Config) Help() string {
	return fmt.Sprintf("%s (%s)", c.Doc, c.Command)
}

// Configs is an ordered, mutable list of run configurations. It is not
// safe for concurrent use; callers serialize access the same way they
// do for settings sections.
type Configs struct {
	items []Config
}

// NewConfigs builds a list from saved settings data: a slice of
// (name, command, doc) triples as produced by DataToSave. Entries that
// do not fit the shape are skipped.
func NewConfigs(saved []any) *Configs {
	c := &Configs{}
	for _, item := range saved {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			continue
		}
		name, okN := triple[0].(string)
		command, okC := triple[1].(string)
		doc, okD := triple[2].(string)
		if !okN || !okC || !okD {
			continue
		}
		c.Add(name, command, doc)
	}
	return c
}

// Add appends a configuration and returns it.
func (c *Configs) Add(name, command, doc string) Config {
	cfg := Config{Name: name, Command: command, Doc: doc}
	c.items = append(c.items, cfg)
	return cfg
}

// Len returns the number of configurations.
func (c *Configs) Len() int { return len(c.items) }

// At returns the configuration at index.
func (c *Configs) At(index int) (Config, error) {
	if index < 0 || index >= len(c.items) {
		return Config{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return c.items[index], nil
}

// All returns the configurations in order. The slice is a copy.
func (c *Configs) All() []Config {
	out := make([]Config, len(c.items))
	copy(out, c.items)
	return out
}

// Swap exchanges the configurations at the two indexes. Swapping a
// pair twice restores the original order.
func (c *Configs) Swap(i, j int) error {
	if i < 0 || i >= len(c.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if j < 0 || j >= len(c.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, j)
	}
	c.items[i], c.items[j] = c.items[j], c.items[i]
	return nil
}

// Pop removes the configuration at index.
func (c *Configs) Pop(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return nil
}

// DataToSave returns the list in the settings representation NewConfigs
// accepts: a slice of (name, command, doc) triples.
func (c *Configs) DataToSave() []any {
	out := make([]any, 0, len(c.items))
	for _, cfg := range c.items {
		out = append(out, []any{cfg.Name, cfg.Command, cfg.Doc})
	}
	return out
}
