package plugin

import (
	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/config"
	"github.com/testride/testride/internal/event"
	"github.com/testride/testride/internal/logging"
)

// The host application and its widgets are opaque collaborators: the
// framework stores and forwards to them but never looks inside. Tab
// and data-file values are host-owned and typed any here.

// Host is the application handle handed to every plugin.
type Host interface {
	// Frame returns the main window, or nil when running headless.
	Frame() Frame

	// Model returns the host's data model.
	Model() any

	// OkToOpenNew asks the user about unsaved changes. A false return
	// means the user cancelled; that is a normal outcome, not an error.
	OkToOpenNew() bool
}

// Frame is the main window collaborator.
type Frame interface {
	Tree() Tree
	Notebook() Notebook

	// OpenSuite opens the test suite at path.
	OpenSuite(path string) error

	// Save saves the given data file.
	Save(datafile any) error
}

// Tree is the suite/resource tree collaborator.
type Tree interface {
	// SelectedDatafile returns the data file owning the current
	// selection.
	SelectedDatafile() any

	// SelectedItem returns the currently selected item: a suite,
	// resource file, test case or keyword.
	SelectedItem() any
}

// Notebook is the tabbed-notebook collaborator.
type Notebook interface {
	AddTab(tab any, title string, allowClosing bool)
	ShowTab(tab any)
	DeleteTab(tab any)
	TabIsVisible(tab any) bool
}

// Context carries the shared application services a plugin binds to at
// construction. All fields except Logger are required.
type Context struct {
	Host     Host
	Settings *config.Store
	Bus      *event.Bus
	Actions  *action.Registry
	Logger   *logging.Logger
}

func (c *Context) logger() *logging.Logger {
	if c == nil || c.Logger == nil {
		return logging.Discard
	}
	return c.Logger
}
