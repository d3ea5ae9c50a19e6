package app

import (
	"io"
	"os"

	"github.com/testride/testride/internal/plugin"
	"github.com/testride/testride/internal/usages"
)

// Options configures the application.
type Options struct {
	appName       string
	settingsPath  string
	settingsDir   string
	defaultsPath  string
	logLevel      string
	logOutput     io.Writer
	watchSettings bool

	frame       plugin.Frame
	model       any
	okToOpenNew func() bool
	usageSearch usages.SearchFunc
}

func defaultOptions() Options {
	return Options{
		appName:       "testride",
		logLevel:      "info",
		logOutput:     os.Stderr,
		watchSettings: true,
	}
}

// Option mutates the application options.
type Option func(*Options)

// WithAppName sets the application name used for the settings
// directory and log prefix.
func WithAppName(name string) Option {
	return func(o *Options) { o.appName = name }
}

// WithSettingsPath uses an explicit settings file instead of the
// per-user default location.
func WithSettingsPath(path string) Option {
	return func(o *Options) { o.settingsPath = path }
}

// WithSettingsDir places the settings file in dir instead of the
// per-user default location.
func WithSettingsDir(dir string) Option {
	return func(o *Options) { o.settingsDir = dir }
}

// WithDefaultSettings seeds a first-run settings file from path.
func WithDefaultSettings(path string) Option {
	return func(o *Options) { o.defaultsPath = path }
}

// WithLogLevel sets the logging verbosity: debug, info, warn, error.
func WithLogLevel(level string) Option {
	return func(o *Options) { o.logLevel = level }
}

// WithLogOutput redirects log output.
func WithLogOutput(w io.Writer) Option {
	return func(o *Options) { o.logOutput = w }
}

// WithSettingsWatcher turns the on-disk settings watcher on or off.
func WithSettingsWatcher(enabled bool) Option {
	return func(o *Options) { o.watchSettings = enabled }
}

// WithFrame attaches the UI frame at construction time.
func WithFrame(f plugin.Frame) Option {
	return func(o *Options) { o.frame = f }
}

// WithModel sets the initial data model.
func WithModel(m any) Option {
	return func(o *Options) { o.model = m }
}

// WithOpenNewCheck installs the hook consulted before opening a new
// suite over unsaved changes.
func WithOpenNewCheck(fn func() bool) Option {
	return func(o *Options) { o.okToOpenNew = fn }
}

// WithUsageSearch installs the search backing Usages. The model layer
// provides it once a suite is loaded.
func WithUsageSearch(fn usages.SearchFunc) Option {
	return func(o *Options) { o.usageSearch = fn }
}
