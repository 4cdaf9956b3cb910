package demoflow

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultInterpreter runs the generated app.
const DefaultInterpreter = "python3"

// RunProcess is the handle to a spawned generated application. It is
// owned by the launcher for the duration of the run; the scanner reads
// its Output stream; a later run's reaper may terminate the process if
// it is still holding the port.
type RunProcess struct {
	PID       int           // OS process ID
	Port      int           // Port the app is expected to bind
	Output    io.ReadCloser // Merged stdout+stderr of the child
	StartedAt time.Time     // Spawn timestamp

	cmd *exec.Cmd
}

// Signal sends sig to the child process.
func (p *RunProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the child exits and releases its resources.
// Runs that intentionally leave the app alive never call it.
func (p *RunProcess) Wait() error {
	return p.cmd.Wait()
}

// Launcher starts generated applications as detached child processes
// with merged, unbuffered output.
type Launcher struct {
	interpreter string
	port        int
	extraEnv    []string
}

// LauncherOption configures Launcher.
type LauncherOption func(*Launcher)

// WithInterpreter sets the interpreter binary (default: python3).
func WithInterpreter(path string) LauncherOption {
	return func(l *Launcher) { l.interpreter = path }
}

// WithLaunchPort records the port the app is expected to bind.
func WithLaunchPort(port int) LauncherOption {
	return func(l *Launcher) { l.port = port }
}

// WithExtraEnv appends KEY=VALUE entries to the child environment.
func WithExtraEnv(env ...string) LauncherOption {
	return func(l *Launcher) { l.extraEnv = append(l.extraEnv, env...) }
}

// NewLauncher creates a launcher with the given options.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		interpreter: DefaultInterpreter,
		port:        DefaultPort,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch spawns the entry point and returns its handle immediately; it
// never waits for the child to become ready. The child runs in its own
// session so it survives the orchestrating process, with stdout and
// stderr merged into a single stream owned by the caller. Spawn
// failures are LaunchErrors.
func (l *Launcher) Launch(entryPoint string) (*RunProcess, error) {
	if _, err := os.Stat(entryPoint); err != nil {
		return nil, &LaunchError{Op: "stat", Path: entryPoint, Err: ErrEntryPointNotFound}
	}

	workDir := filepath.Dir(entryPoint)

	cmd := exec.Command(l.interpreter, "-u", entryPoint)
	cmd.Dir = workDir
	cmd.Env = childEnv(workDir, l.extraEnv)
	// Own session: the app keeps running after the orchestrator exits.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Op: "open output pipe", Path: entryPoint, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Op: "spawn", Path: entryPoint, Err: err}
	}

	// The parent's copy of the write end must close so the read end
	// sees EOF when the child exits.
	pw.Close()

	return &RunProcess{
		PID:       cmd.Process.Pid,
		Port:      l.port,
		Output:    pr,
		StartedAt: time.Now(),
		cmd:       cmd,
	}, nil
}

// childEnv builds the child environment: unbuffered interpreter output,
// the app's directory prepended to PYTHONPATH so sibling generated
// modules are importable, then any extras.
func childEnv(workDir string, extra []string) []string {
	pythonPath := workDir
	env := make([]string, 0, len(os.Environ())+3)
	for _, e := range os.Environ() {
		if v, ok := strings.CutPrefix(e, "PYTHONPATH="); ok {
			if v != "" {
				pythonPath = pythonPath + string(os.PathListSeparator) + v
			}
			continue
		}
		env = append(env, e)
	}

	env = append(env, "PYTHONUNBUFFERED=1", "PYTHONPATH="+pythonPath)
	env = append(env, extra...)
	return env
}
