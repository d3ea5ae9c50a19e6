package run

import (
	"context"
	"fmt"

	"github.com/testride/testride/internal/action"
	"github.com/testride/testride/internal/event/topic"
	"github.com/testride/testride/internal/plugin"
)

// Bus topics the plugin publishes on. The UI layer subscribes to show
// output and to open the configuration manager.
const (
	// TopicManage asks the UI to open the run-configuration manager.
	TopicManage topic.Topic = "run.manage"

	// TopicStarted carries a StartedEvent when a config launches.
	TopicStarted topic.Topic = "run.started"

	// TopicOutput carries one line of child output as a string.
	TopicOutput topic.Topic = "run.output"

	// TopicFinished carries a FinishedEvent when a config's process
	// exits.
	TopicFinished topic.Topic = "run.finished"
)

// MenuName is the menu all run actions land in.
const MenuName = "Run"

const configsKey = "configs"

// StartedEvent is published on TopicStarted.
type StartedEvent struct {
	ProcessID string
	Config    Config
}

// FinishedEvent is published on TopicFinished.
type FinishedEvent struct {
	ProcessID string
	Config    Config
	ExitCode  int
	Err       error
}

// RunAnythingPlugin exposes user-defined run configurations as menu
// entries: a manage entry, a separator, then one numbered entry per
// config. The list persists in the plugin's settings and survives
// restarts.
type RunAnythingPlugin struct {
	*plugin.Base
	runner *Runner
}

// NewPlugin constructs the plugin against the given host context.
func NewPlugin(ctx *plugin.Context) *RunAnythingPlugin {
	p := &RunAnythingPlugin{}
	p.Base = plugin.NewBase(ctx, p, plugin.Options{
		Name: "RunAnything",
		Doc:  "Runs user-configured commands and reports their output.",
		DefaultSettings: map[string]any{
			configsKey: []any{},
		},
	})
	p.runner = NewRunner(
		WithLogger(p.Logger()),
		WithOutput(func(line string) {
			_ = p.Publish(TopicOutput, line)
		}),
	)
	return p
}

// Enable builds the Run menu from the saved configurations.
func (p *RunAnythingPlugin) Enable() error {
	return p.buildMenu(p.Configs())
}

// Configs returns the saved run configurations.
func (p *RunAnythingPlugin) Configs() *Configs {
	v, err := p.Setting(configsKey)
	if err != nil {
		return NewConfigs(nil)
	}
	saved, _ := v.([]any)
	return NewConfigs(saved)
}

// UpdateConfigs persists the list and rebuilds the menu; the manager
// UI calls this after the user edits the configurations.
func (p *RunAnythingPlugin) UpdateConfigs(cfgs *Configs) error {
	if err := p.SaveSetting(configsKey, cfgs.DataToSave(), true); err != nil {
		return fmt.Errorf("saving run configs: %w", err)
	}
	return p.buildMenu(cfgs)
}

// Run starts the configuration at index in the current list.
func (p *RunAnythingPlugin) Run(ctx context.Context, index int) (*Process, error) {
	cfg, err := p.Configs().At(index)
	if err != nil {
		return nil, err
	}
	return p.start(ctx, cfg)
}

func (p *RunAnythingPlugin) buildMenu(cfgs *Configs) error {
	p.UnregisterActions()

	if err := p.RegisterAction(action.Info{
		Menu: MenuName,
		Name: "Manage Run Configurations",
		Doc:  "Add, edit, reorder and remove run configurations",
		Handler: func() {
			_ = p.Publish(TopicManage, nil)
		},
	}); err != nil {
		return err
	}
	if err := p.RegisterAction(action.SeparatorInfo(MenuName)); err != nil {
		return err
	}

	for index, cfg := range cfgs.All() {
		cfg := cfg
		if err := p.RegisterAction(action.Info{
			Menu: MenuName,
			Name: fmt.Sprintf("%d: %s", index+1, cfg.Name),
			Doc:  cfg.Help(),
			Handler: func() {
				if _, err := p.start(context.Background(), cfg); err != nil {
					p.Logger().Warn("running %q: %v", cfg.Name, err)
				}
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *RunAnythingPlugin) start(ctx context.Context, cfg Config) (*Process, error) {
	proc, err := p.runner.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	_ = p.Publish(TopicStarted, StartedEvent{ProcessID: proc.ID, Config: cfg})

	go func() {
		<-proc.Done()
		_ = p.Publish(TopicFinished, FinishedEvent{
			ProcessID: proc.ID,
			Config:    cfg,
			ExitCode:  proc.ExitCode(),
			Err:       proc.ExitError(),
		})
	}()
	return proc, nil
}
