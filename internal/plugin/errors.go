package plugin

import "errors"

// Plugin manager errors.
var (
	// ErrNilPlugin indicates a nil plugin was passed to the manager.
	ErrNilPlugin = errors.New("nil plugin")

	// ErrNotConstructed indicates a plugin whose Base was never built
	// with NewBase.
	ErrNotConstructed = errors.New("plugin not constructed with NewBase")

	// ErrAlreadyRegistered indicates a plugin name collision.
	ErrAlreadyRegistered = errors.New("plugin already registered")

	// ErrPluginNotFound indicates an unknown plugin name.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoFrame indicates a UI helper was called with no host frame
	// attached, e.g. in a headless run.
	ErrNoFrame = errors.New("no host frame")
)
