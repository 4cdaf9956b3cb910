package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/demoflow"
	"github.com/randalmurphal/demoflow/notify"
)

// =============================================================================
// Node Types
// =============================================================================

// NodeFunc is a function that processes state and returns updated state.
// This signature is compatible with flowgraph's NodeFunc[State].
type NodeFunc func(ctx context.Context, state State) (State, error)

// =============================================================================
// Pipeline Nodes
// =============================================================================

// ReapNode frees the target port before the app launches.
// Reap residue is recorded on the state as a warning, never an error.
func ReapNode(ctx context.Context, state State) (State, error) {
	svc := MustFromContext(ctx)

	result := svc.Reaper.Reap(ctx, state.Port)
	state.ReapedPIDs = result.Reaped
	state.PortFreed = result.Freed
	if result.Warning != nil {
		state.ReapWarning = result.Warning.Error()
	}

	return state, nil
}

// PackageNode resolves the artifact set and zips it.
//
// Updates: state.Archive, state.PackagedAt
func PackageNode(ctx context.Context, state State) (State, error) {
	svc := MustFromContext(ctx)

	set, err := demoflow.ResolveArtifactSet(state.OutputDir, state.Module)
	if err != nil {
		state.SetError(err)
		return state, err
	}

	archive, err := svc.Packager.Package(set, state.RunID)
	if err != nil {
		state.SetError(err)
		return state, err
	}

	state.Archive = archive
	state.PackagedAt = time.Now()
	return state, nil
}

// PublishNode uploads the archive and mints the signed download URL.
// A failure here aborts the pipeline before any process is spawned.
//
// Prerequisites: state.Archive must be set
// Updates: state.Download, state.PublishedAt
func PublishNode(ctx context.Context, state State) (State, error) {
	svc := MustFromContext(ctx)

	if state.Archive == nil {
		err := fmt.Errorf("publish before package")
		state.SetError(err)
		return state, err
	}

	download, err := svc.Publisher.Upload(ctx, state.Archive)
	if err != nil {
		state.SetError(err)
		return state, err
	}

	state.Download = download
	state.PublishedAt = time.Now()
	return state, nil
}

// LaunchNode spawns the generated app.
//
// Updates: state.Process, state.PID, state.LaunchedAt
func LaunchNode(ctx context.Context, state State) (State, error) {
	svc := MustFromContext(ctx)

	set, err := demoflow.ResolveArtifactSet(state.OutputDir, state.Module)
	if err != nil {
		state.SetError(err)
		return state, err
	}

	proc, err := svc.Launcher.Launch(set.EntryPoint())
	if err != nil {
		state.SetError(err)
		return state, err
	}

	state.Process = proc
	state.PID = proc.PID
	state.LaunchedAt = time.Now()
	return state, nil
}

// DiscoverNode waits (bounded) for the app to print its public URL.
// A timeout is a terminal outcome, not a node error: the pipeline
// completes with the endpoint absent and the app left running.
//
// Prerequisites: state.Process must be set
// Updates: state.Discovery, state.Endpoint, state.LocalURL, state.Status
func DiscoverNode(ctx context.Context, state State) (State, error) {
	svc := MustFromContext(ctx)

	if state.Process == nil {
		err := fmt.Errorf("discover before launch")
		state.SetError(err)
		return state, err
	}

	scan := svc.Scanner.Scan(ctx, state.Process.Output)
	state.Process.Output.Close()

	state.Discovery = scan.State
	state.LocalURL = scan.LocalURL

	if scan.State == demoflow.ScanMatched {
		state.Endpoint = scan.Endpoint
		state.Status = demoflow.StatusSuccess
	} else {
		state.Status = demoflow.StatusDiscoveryTimedOut
	}

	return state, nil
}

// NotifyNode reports the terminal pipeline state.
func NotifyNode(ctx context.Context, state State) (State, error) {
	notifier := notify.NotifierFromContext(ctx)
	if notifier == nil {
		return state, nil
	}

	event := notify.Event{
		RunID:     state.RunID,
		Module:    state.Module,
		Timestamp: time.Now(),
	}

	switch state.Status {
	case demoflow.StatusSuccess:
		event.Type = notify.EventURLDiscovered
		event.Severity = notify.SeverityInfo
		event.Message = fmt.Sprintf("%s live at %s", state.Module, state.Endpoint)
	case demoflow.StatusDiscoveryTimedOut:
		event.Type = notify.EventDiscoveryTimeout
		event.Severity = notify.SeverityWarning
		event.Message = fmt.Sprintf("%s did not expose a public URL", state.Module)
	default:
		event.Type = notify.EventRunFailed
		event.Severity = notify.SeverityError
		event.Message = fmt.Sprintf("%s run failed: %s", state.Module, state.LastError)
	}

	if err := notifier.Notify(ctx, event); err != nil {
		// Notification failures never fail the pipeline.
		slog.Warn("notification failed", "run_id", state.RunID, "error", err)
	}
	return state, nil
}

// =============================================================================
// Node Wrappers
// =============================================================================

// WithTiming wraps a node with timing metrics.
func WithTiming(node NodeFunc, nodeName string) NodeFunc {
	return func(ctx context.Context, state State) (State, error) {
		start := time.Now()
		result, err := node(ctx, state)
		slog.Debug("node execution completed",
			"node", nodeName, "run_id", state.RunID, "duration", time.Since(start))
		return result, err
	}
}
