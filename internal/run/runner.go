package run

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/testride/testride/internal/logging"
)

var (
	// ErrEmptyCommand is returned when a config has no command.
	ErrEmptyCommand = errors.New("empty command")

	// ErrNotRunning is returned when signalling a process that is not
	// running.
	ErrNotRunning = errors.New("process is not running")
)

// ProcessState tracks where a child process is in its lifetime.
type ProcessState int32

const (
	ProcessRunning ProcessState = iota
	ProcessFinished
	ProcessFailed
)

func (s ProcessState) String() string {
	switch s {
	case ProcessRunning:
		return "running"
	case ProcessFinished:
		return "finished"
	case ProcessFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// OutputFunc receives one line of combined child output at a time.
type OutputFunc func(line string)

// Process is a started run configuration. Output is streamed line by
// line to the runner's OutputFunc; state and exit code become final
// when Done is closed.
type Process struct {
	ID      string
	Config  Config
	Started time.Time

	cmd      *exec.Cmd
	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32
	exitErr  error
	mu       sync.RWMutex
}

// State returns the current process state.
func (p *Process) State() ProcessState {
	return ProcessState(p.state.Load())
}

// Finished reports whether the process has stopped, successfully or not.
func (p *Process) Finished() bool {
	return p.State() != ProcessRunning
}

// Failed reports whether the process stopped with a non-zero exit code
// or could not be waited on.
func (p *Process) Failed() bool {
	return p.State() == ProcessFailed
}

// ExitCode returns the exit code, or -1 while the process runs.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done is closed when the process exits and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits or the context is cancelled.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.ExitError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill forcibly stops the process.
func (p *Process) Kill() error {
	if p.State() != ProcessRunning {
		return ErrNotRunning
	}
	if p.cmd.Process == nil {
		return ErrNotRunning
	}
	return p.cmd.Process.Kill()
}

// Runner starts run configurations as child processes.
type Runner struct {
	logger *logging.Logger
	output OutputFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger run events go to.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithOutput sets the callback that receives child output lines.
func WithOutput(fn OutputFunc) RunnerOption {
	return func(r *Runner) { r.output = fn }
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: logging.Discard}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the config's command. The command string is split on
// whitespace; the first field is the executable. Stdout and stderr are
// combined and streamed line by line to the output callback. The
// context cancels the child.
func (r *Runner) Start(ctx context.Context, cfg Config) (*Process, error) {
	argv := strings.Fields(cfg.Command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: config %q", ErrEmptyCommand, cfg.Name)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	p := &Process{
		ID:     uuid.New().String(),
		Config: cfg,
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	p.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", cfg.Name, err)
	}
	p.Started = time.Now()
	r.logger.Info("started %q (pid %d): %s", cfg.Name, cmd.Process.Pid, cfg.Command)

	go r.pump(p, stdout)
	return p, nil
}

// pump drains the child's output, then waits for it to exit and
// records the outcome.
func (r *Runner) pump(p *Process, out io.Reader) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		if r.output != nil {
			r.output(scanner.Text())
		}
	}

	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := ProcessFinished
	if err != nil {
		state = ProcessFailed
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)

	if err != nil {
		r.logger.Warn("%q failed: %v", p.Config.Name, err)
	} else {
		r.logger.Info("%q finished in %s", p.Config.Name, time.Since(p.Started))
	}
}
