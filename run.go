package demoflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/randalmurphal/demoflow/notify"
)

// DefaultPort is the port the generated app binds (the gradio default).
const DefaultPort = 7860

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	// StatusSuccess means the archive was published and a public URL discovered.
	StatusSuccess RunStatus = "success"

	// StatusDiscoveryTimedOut means the archive was published and the app
	// launched, but no public URL appeared within the window. The app is
	// left running.
	StatusDiscoveryTimedOut RunStatus = "discovery timed out"

	// StatusFailed means a fatal step (packaging, publish, launch) failed.
	StatusFailed RunStatus = "failed"
)

// RunResult is the terminal record of one run. It is created once by
// the runner and never mutated after being handed back.
type RunResult struct {
	RunID     string             // Run-scoped identifier
	Module    string             // Module the run was keyed by
	Download  *PublishedDownload // Always present once publish succeeded
	Endpoint  string             // Discovered public URL (discovery == ScanMatched)
	LocalURL  string             // Loopback fallback captured from output, if any
	Discovery ScanState          // Terminal scanner state
	Status    RunStatus          // Overall outcome
	Process   *RunProcess        // Handle to the (possibly still running) app
	Duration  time.Duration      // Wall time of the whole run
}

// AppLauncher spawns generated applications. *Launcher is the real
// implementation; tests substitute counting doubles.
type AppLauncher interface {
	Launch(entryPoint string) (*RunProcess, error)
}

// RunConfig configures a Runner.
type RunConfig struct {
	// OutputDir is where the upstream producer drops generated files.
	OutputDir string

	// StagingDir receives packaged archives (default: OS temp dir).
	StagingDir string

	// Port the generated app binds (default: DefaultPort).
	Port int

	// DiscoveryTimeout bounds the wait for a public URL
	// (default: DefaultDiscoveryTimeout).
	DiscoveryTimeout time.Duration

	// ReapWait bounds the wait for the port to free up
	// (default: DefaultReapWait).
	ReapWait time.Duration

	// Interpreter runs the app (default: DefaultInterpreter).
	Interpreter string

	// Publisher uploads archives. Required.
	Publisher Publisher

	// Launcher spawns the app. Defaults to a real Launcher.
	Launcher AppLauncher

	// Reaper frees the target port before launch. Defaults to a real
	// PortReaper querying live OS port bindings; tests substitute one
	// backed by a fake CommandRunner.
	Reaper *PortReaper

	// Notifier receives run lifecycle events. Optional.
	Notifier notify.Notifier

	// Logger receives structured run logs (default: slog.Default()).
	Logger *slog.Logger

	// Echo mirrors the child's output lines during discovery. Optional.
	Echo io.Writer
}

// Runner orchestrates one run: reap the port, package the artifact
// set, publish it, launch the app, and discover its public URL.
//
// Orphan policy: a run that times out discovery leaves its app process
// running; the next run's reap step is the sole cleanup mechanism.
// There is no background garbage collection of old processes.
type Runner struct {
	outputDir string
	port      int
	timeout   time.Duration
	publisher Publisher
	packager  *Packager
	reaper    *PortReaper
	launcher  AppLauncher
	scanner   *Scanner
	notifier  notify.Notifier
	logger    *slog.Logger
}

// NewRunner creates a runner from the given config.
// Returns ErrNoPublisher if no publisher is configured.
func NewRunner(cfg RunConfig) (*Runner, error) {
	if cfg.Publisher == nil {
		return nil, ErrNoPublisher
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.DiscoveryTimeout
	if timeout == 0 {
		timeout = DefaultDiscoveryTimeout
	}
	reapWait := cfg.ReapWait
	if reapWait == 0 {
		reapWait = DefaultReapWait
	}

	launcher := cfg.Launcher
	if launcher == nil {
		interpreter := cfg.Interpreter
		if interpreter == "" {
			interpreter = DefaultInterpreter
		}
		launcher = NewLauncher(WithInterpreter(interpreter), WithLaunchPort(port))
	}

	reaper := cfg.Reaper
	if reaper == nil {
		reaper = NewPortReaper(WithReapWait(reapWait), WithReaperLogger(logger))
	}

	scanOpts := []ScannerOption{WithScanTimeout(timeout), WithScanLogger(logger)}
	if cfg.Echo != nil {
		scanOpts = append(scanOpts, WithEcho(cfg.Echo))
	}

	return &Runner{
		outputDir: cfg.OutputDir,
		port:      port,
		timeout:   timeout,
		publisher: cfg.Publisher,
		packager:  NewPackager(cfg.StagingDir),
		reaper:    reaper,
		launcher:  launcher,
		scanner:   NewScanner(scanOpts...),
		notifier:  cfg.Notifier,
		logger:    logger,
	}, nil
}

// Run executes one package-publish-launch-discover cycle for module.
//
// Packaging and publish failures abort the run before any process is
// spawned. A launch failure is fatal but the returned RunResult still
// carries the already published download. A discovery timeout is not an
// error: the result reports it with the endpoint absent, and the child
// keeps running for the next run's reaper to find.
func (r *Runner) Run(ctx context.Context, module string) (*RunResult, error) {
	start := time.Now()

	runID, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate run ID: %w", err)
	}

	log := r.logger.With("run_id", runID, "module", module)
	log.Info("run started", "port", r.port)
	r.emit(ctx, runID, module, notify.EventRunStarted, notify.SeverityInfo, "%s run started", moduleTitle(module))

	// Step 1: free the port. Failures degrade to warnings; the launcher
	// will surface a port-in-use error itself if the reap fell short.
	reap := r.reaper.Reap(ctx, r.port)
	if reap.Warning != nil {
		log.Warn("reap finished with residue", "warning", reap.Warning)
	}

	// Step 2: package.
	set, err := ResolveArtifactSet(r.outputDir, module)
	if err != nil {
		r.fail(ctx, runID, module, err)
		return nil, err
	}
	archive, err := r.packager.Package(set, runID)
	if err != nil {
		r.fail(ctx, runID, module, err)
		return nil, err
	}
	log.Info("artifact set packaged", "key", archive.Key, "size", archive.Size, "digest", archive.Digest)

	// Step 3: publish. Fatal on failure; the app is never launched.
	download, err := r.publisher.Upload(ctx, archive)
	if err != nil {
		r.fail(ctx, runID, module, err)
		return nil, err
	}
	log.Info("archive published", "url", download.URL, "expires_at", download.ExpiresAt)
	r.emit(ctx, runID, module, notify.EventArchivePublished, notify.SeverityInfo,
		"%s archive published as %s", moduleTitle(module), download.Key)

	result := &RunResult{
		RunID:    runID,
		Module:   module,
		Download: download,
	}

	// Step 4: launch. The archive survives a launch failure, so the
	// result still carries the download URL alongside the error.
	proc, err := r.launcher.Launch(set.EntryPoint())
	if err != nil {
		result.Status = StatusFailed
		result.Duration = time.Since(start)
		r.fail(ctx, runID, module, err)
		return result, err
	}
	result.Process = proc
	log.Info("app launched", "pid", proc.PID, "entry_point", set.EntryPoint())
	r.emit(ctx, runID, module, notify.EventAppLaunched, notify.SeverityInfo,
		"%s app launched (pid %d)", moduleTitle(module), proc.PID)

	// Step 5: discover. The deadline is enforced by the scanner; a
	// timeout deliberately does not kill the process.
	scan := r.scanner.Scan(ctx, proc.Output)
	proc.Output.Close()

	result.Discovery = scan.State
	result.LocalURL = scan.LocalURL
	result.Duration = time.Since(start)

	switch scan.State {
	case ScanMatched:
		result.Endpoint = scan.Endpoint
		result.Status = StatusSuccess
		r.recordPublicURL(scan.Endpoint, log)
		r.emit(ctx, runID, module, notify.EventURLDiscovered, notify.SeverityInfo,
			"%s live at %s", moduleTitle(module), scan.Endpoint)
	case ScanTimedOut:
		result.Status = StatusDiscoveryTimedOut
		r.emit(ctx, runID, module, notify.EventDiscoveryTimeout, notify.SeverityWarning,
			"%s did not expose a public URL within %v", moduleTitle(module), r.timeout)
	case ScanChildExited:
		result.Status = StatusDiscoveryTimedOut
		r.emit(ctx, runID, module, notify.EventDiscoveryTimeout, notify.SeverityWarning,
			"%s exited before exposing a public URL", moduleTitle(module))
	}

	log.Info("run finished", "status", result.Status, "duration", result.Duration)
	return result, nil
}

// recordPublicURL persists the discovered endpoint as a side file in
// the output directory so the next packaging step can include it.
func (r *Runner) recordPublicURL(endpoint string, log *slog.Logger) {
	path := filepath.Join(r.outputDir, PublicURLFile)
	if err := os.WriteFile(path, []byte(endpoint+"\n"), 0o644); err != nil {
		log.Warn("could not record public URL side file", "path", path, "error", err)
	}
}

// emit sends a lifecycle event if a notifier is configured. Notifier
// errors never affect the run.
func (r *Runner) emit(ctx context.Context, runID, module string, typ notify.EventType, severity, format string, args ...any) {
	if r.notifier == nil {
		return
	}
	event := notify.Event{
		Type:      typ,
		RunID:     runID,
		Module:    module,
		Message:   fmt.Sprintf(format, args...),
		Severity:  severity,
		Timestamp: time.Now(),
	}
	if err := r.notifier.Notify(ctx, event); err != nil {
		r.logger.Warn("notification failed", "type", typ, "error", err)
	}
}

// fail logs and notifies a fatal run error.
func (r *Runner) fail(ctx context.Context, runID, module string, err error) {
	r.logger.Error("run failed", "run_id", runID, "module", module, "error", err)
	r.emit(ctx, runID, module, notify.EventRunFailed, notify.SeverityError,
		"%s run failed: %v", moduleTitle(module), err)
}

var titleCaser = cases.Title(language.English)

// moduleTitle humanizes a module name for event messages.
func moduleTitle(module string) string {
	return titleCaser.String(module)
}
