// Package main is the entry point for the testride core service. It
// brings the application up headless: plugins, settings and the event
// bus run; a UI layer attaches through the app package.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/testride/testride/internal/app"
	"github.com/testride/testride/internal/plugin/luascript"
	"github.com/testride/testride/internal/run"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(runApp())
}

func runApp() int {
	opts := parseFlags()

	application, err := app.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	if err := registerPlugins(application); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := application.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start: %v\n", err)
		return 1
	}

	// Handle signals for graceful shutdown.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	if err := application.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// registerPlugins installs the builtin plugins and any Lua scripts
// from the scripts directory next to the settings file.
func registerPlugins(application *app.App) error {
	manager := application.Plugins()

	if err := manager.Register(run.NewPlugin(manager.Context())); err != nil {
		return fmt.Errorf("registering run plugin: %w", err)
	}

	scripts, err := filepath.Glob(application.Settings().Path("scripts", "*.lua"))
	if err != nil {
		return fmt.Errorf("listing script plugins: %w", err)
	}
	for _, script := range scripts {
		p, err := luascript.LoadFile(manager.Context(), script)
		if err != nil {
			application.Logger().Warn("skipping script plugin %s: %v", script, err)
			continue
		}
		if err := manager.Register(p); err != nil {
			application.Logger().Warn("skipping script plugin %s: %v", script, err)
			p.Close()
		}
	}
	return nil
}

func parseFlags() []app.Option {
	var settingsPath string
	var defaultsPath string
	var logLevel string
	var noWatch bool
	var showVersion bool

	flag.StringVar(&settingsPath, "settings", "", "Path to the settings file")
	flag.StringVar(&settingsPath, "s", "", "Path to the settings file (shorthand)")
	flag.StringVar(&defaultsPath, "defaults", "", "Default settings seeded on first run")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&noWatch, "no-watch", false, "Disable the settings file watcher")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "testride - test IDE core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: testride [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("testride %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	opts := []app.Option{app.WithLogLevel(logLevel)}
	if settingsPath != "" {
		opts = append(opts, app.WithSettingsPath(settingsPath))
	}
	if defaultsPath != "" {
		opts = append(opts, app.WithDefaultSettings(defaultsPath))
	}
	if noWatch {
		opts = append(opts, app.WithSettingsWatcher(false))
	}
	return opts
}
