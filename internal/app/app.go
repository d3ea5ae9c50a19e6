// Package app wires the core services together: settings, the event
// bus, the action registry, preferences and the plugin manager. It is
// the Host the plugins talk to; a UI layer sits on top by providing a
// Frame.
package app

import (
	"fmt"
	"sync/atomic"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/config"
	"github.com/testride/testride/internal/config/watcher"
	"github.com/testride/testride/internal/event"
	"github.com/testride/testride/internal/event/topic"
	"github.com/testride/testride/internal/logging"
	"github.com/testride/testride/internal/plugin"
	"github.com/testride/testride/internal/prefs"
	"github.com/testride/testride/internal/usages"
)

// TopicSettingsReloaded is published after the settings file changed
// on disk and the store re-read it.
const TopicSettingsReloaded topic.Topic = "settings.reloaded"

// App is the central coordinator. It owns the services every plugin
// receives through its Context and implements plugin.Host.
type App struct {
	logger  *logging.Logger
	store   *config.Store
	bus     *event.Bus
	actions *action.Registry
	prefs   *prefs.Preferences
	plugins *plugin.Manager
	watcher *watcher.Watcher
	usages  *usages.Finder

	frame       plugin.Frame
	model       any
	okToOpenNew func() bool

	running atomic.Bool
	opts    Options
}

// InitError reports which component failed to come up.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// New creates the application and brings its services up in
// dependency order.
func New(opts ...Option) (*App, error) {
	app := &App{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&app.opts)
	}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *App) bootstrap() error {
	// Logging first so everything after it can report.
	app.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(app.opts.logLevel),
		Output: app.opts.logOutput,
		Prefix: app.opts.appName,
	})

	// Settings store, seeded from packaged defaults on first run.
	var err error
	path := app.opts.settingsPath
	if path == "" && app.opts.settingsDir != "" {
		path, err = config.InitializeAt(app.opts.settingsDir, app.opts.defaultsPath)
		if err != nil {
			return &InitError{Component: "settings", Err: err}
		}
	} else if path == "" {
		path, err = config.Initialize(app.opts.appName, app.opts.defaultsPath)
		if err != nil {
			return &InitError{Component: "settings", Err: err}
		}
	}
	app.store, err = config.Load(path)
	if err != nil {
		return &InitError{Component: "settings", Err: err}
	}

	// Event bus; handler failures land in the log instead of
	// interrupting delivery.
	busLogger := app.logger.WithComponent("bus")
	app.bus = event.NewBus(event.WithErrorHandler(func(sub *event.Subscription, msg event.Message, err error) {
		busLogger.Warn("handler for %s failed: %v", msg.Topic, err)
	}))

	app.actions = action.NewRegistry()
	app.prefs = prefs.New(app.store)
	app.plugins = plugin.NewManager(&plugin.Context{
		Host:     app,
		Settings: app.store,
		Bus:      app.bus,
		Actions:  app.actions,
		Logger:   app.logger.WithComponent("plugin"),
	})

	if app.opts.usageSearch != nil {
		app.usages = usages.NewFinder(app.opts.usageSearch, usages.DefaultTTL)
	}

	if app.opts.watchSettings {
		app.watcher = watcher.New(app.store.FilePath())
		app.watcher.OnChange(app.reloadSettings)
	}

	app.frame = app.opts.frame
	app.model = app.opts.model
	app.okToOpenNew = app.opts.okToOpenNew
	return nil
}

// Start enables the managed plugins and begins watching the settings
// file. Plugin enable failures are logged, not fatal.
func (app *App) Start() error {
	if !app.running.CompareAndSwap(false, true) {
		return nil
	}

	if err := app.plugins.EnableAll(); err != nil {
		app.logger.Warn("%v", err)
	}
	if app.watcher != nil {
		if err := app.watcher.Start(); err != nil {
			app.running.Store(false)
			return &InitError{Component: "settings watcher", Err: err}
		}
	}
	app.logger.Info("started with %d plugins (%d enabled)",
		app.plugins.Count(), app.plugins.CountEnabled())
	return nil
}

// Shutdown disables plugins in reverse order, stops the watcher and
// saves the settings. Safe to call more than once.
func (app *App) Shutdown() error {
	if !app.running.CompareAndSwap(true, false) {
		return nil
	}

	if app.watcher != nil {
		if err := app.watcher.Stop(); err != nil {
			app.logger.Warn("stopping settings watcher: %v", err)
		}
	}
	if err := app.plugins.DisableAll(); err != nil {
		app.logger.Warn("%v", err)
	}
	if err := app.store.Save(); err != nil {
		return fmt.Errorf("saving settings on shutdown: %w", err)
	}
	app.logger.Info("shut down")
	return nil
}

// IsRunning reports whether Start has been called without a matching
// Shutdown.
func (app *App) IsRunning() bool {
	return app.running.Load()
}

func (app *App) reloadSettings() {
	if err := app.store.Reload(); err != nil {
		app.logger.Warn("reloading settings: %v", err)
		return
	}
	app.logger.Info("settings reloaded from %s", app.store.FilePath())
	if err := app.bus.Publish(TopicSettingsReloaded, app.store.FilePath()); err != nil {
		app.logger.Warn("publishing settings reload: %v", err)
	}
}

// Frame returns the main window, nil when headless.
func (app *App) Frame() plugin.Frame { return app.frame }

// SetFrame attaches the UI frame; the UI layer calls this once its
// window exists.
func (app *App) SetFrame(f plugin.Frame) { app.frame = f }

// Model returns the loaded data model.
func (app *App) Model() any { return app.model }

// SetModel replaces the data model.
func (app *App) SetModel(m any) { app.model = m }

// OkToOpenNew asks whether unsaved changes allow opening a new suite.
// Headless, or without a hook installed, the answer is yes.
func (app *App) OkToOpenNew() bool {
	if app.okToOpenNew == nil {
		return true
	}
	return app.okToOpenNew()
}

// Settings returns the settings store.
func (app *App) Settings() *config.Store { return app.store }

// Bus returns the event bus.
func (app *App) Bus() *event.Bus { return app.bus }

// Actions returns the action registry.
func (app *App) Actions() *action.Registry { return app.actions }

// Preferences returns the preference page registry.
func (app *App) Preferences() *prefs.Preferences { return app.prefs }

// Plugins returns the plugin manager.
func (app *App) Plugins() *plugin.Manager { return app.plugins }

// Usages returns the usage finder, nil when no search was installed.
func (app *App) Usages() *usages.Finder { return app.usages }

// Logger returns the root logger.
func (app *App) Logger() *logging.Logger { return app.logger }
