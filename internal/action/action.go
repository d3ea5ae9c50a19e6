// Package action provides the process-wide action registry: the
// mapping from logical plugin actions (name, handler, shortcut, menu
// placement) to entries the host UI renders as menu items and toolbar
// buttons.
package action

// Handler is invoked when the host UI triggers the action.
type Handler func()

// Info describes an action to register. Separator entries mark a menu
// divider and carry no name or handler.
type Info struct {
	// Menu is the menu group the entry belongs to (e.g. "Run").
	Menu string

	// Name is the entry label, unique within the registering plugin.
	Name string

	// Doc is shown as the entry's help text.
	Doc string

	// Handler is called when the entry is selected.
	Handler Handler

	// Shortcut is an optional key binding such as "Ctrl-Shift-R".
	Shortcut string

	// Separator marks a menu divider instead of a selectable entry.
	Separator bool
}

// SeparatorInfo returns an Info describing a divider in the menu.
func SeparatorInfo(menu string) Info {
	return Info{Menu: menu, Separator: true}
}
