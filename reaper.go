package demoflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DefaultReapWait bounds how long the reaper waits for the port to free
// up after signaling its occupants.
const DefaultReapWait = 5 * time.Second

// ReapResult reports what the reaper did. Reaper failures never abort a
// run; anything that went wrong is surfaced in Warning.
type ReapResult struct {
	Port    int   // Port that was inspected
	Reaped  []int // PIDs that were signaled
	Freed   bool  // True if the port was free when the reaper finished
	Warning error // Non-fatal residue (kill failure, port still bound)
}

// PortReaper finds and terminates processes listening on the target
// port so successive runs do not collide. It queries live OS port
// bindings on each invocation rather than remembering process handles
// across runs, so it tolerates crashes between runs.
type PortReaper struct {
	runner CommandRunner
	logger *slog.Logger
	wait   time.Duration
}

// ReaperOption configures PortReaper.
type ReaperOption func(*PortReaper)

// WithReaperRunner sets a custom command runner, used by tests to fake
// port queries and kills.
func WithReaperRunner(r CommandRunner) ReaperOption {
	return func(p *PortReaper) { p.runner = r }
}

// WithReapWait bounds the wait for the port to become free.
func WithReapWait(d time.Duration) ReaperOption {
	return func(p *PortReaper) { p.wait = d }
}

// WithReaperLogger sets the logger for reap warnings.
func WithReaperLogger(l *slog.Logger) ReaperOption {
	return func(p *PortReaper) { p.logger = l }
}

// NewPortReaper creates a reaper with the given options.
func NewPortReaper(opts ...ReaperOption) *PortReaper {
	p := &PortReaper{
		runner: NewExecRunner(),
		logger: slog.Default(),
		wait:   DefaultReapWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reap terminates any process listening on port and waits (bounded) for
// the port to become free. A free port is a no-op success. Processes not
// bound to the port are never touched. Failure to free the port within
// the wait is recorded as a warning; the launcher may then fail with a
// port-in-use error of its own.
func (p *PortReaper) Reap(ctx context.Context, port int) ReapResult {
	result := ReapResult{Port: port}

	pids := p.listeners(port)
	if len(pids) == 0 {
		result.Freed = true
		return result
	}

	for _, pid := range pids {
		if _, err := p.runner.Run("", "kill", "-TERM", strconv.Itoa(pid)); err != nil {
			result.Warning = fmt.Errorf("signal pid %d: %w", pid, err)
			p.logger.Warn("reaper could not signal process", "port", port, "pid", pid, "error", err)
			continue
		}
		result.Reaped = append(result.Reaped, pid)
		p.logger.Info("reaped process bound to port", "port", port, "pid", pid)
	}

	deadline := time.Now().Add(p.wait)
	for time.Now().Before(deadline) {
		if len(p.listeners(port)) == 0 {
			result.Freed = true
			return result
		}
		select {
		case <-ctx.Done():
			result.Warning = ctx.Err()
			return result
		case <-time.After(100 * time.Millisecond):
		}
	}

	result.Warning = fmt.Errorf("port %d still bound after %v", port, p.wait)
	p.logger.Warn("port still bound after reap wait", "port", port, "wait", p.wait)
	return result
}

// listeners returns the PIDs currently listening on port.
// lsof exits non-zero when nothing matches; that is the free-port case.
func (p *PortReaper) listeners(port int) []int {
	out, err := p.runner.Run("", "lsof", "-ti", "tcp:"+strconv.Itoa(port), "-sTCP:LISTEN")
	if err != nil || out == "" {
		return nil
	}

	var pids []int
	for _, line := range strings.Split(out, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}
