package demoflow

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/demoflow/notify"
	"github.com/randalmurphal/demoflow/testutil"
)

// fakePublisher returns a canned download or a scripted error.
type fakePublisher struct {
	download *PublishedDownload
	err      error
	uploads  int
}

func (p *fakePublisher) Upload(ctx context.Context, archive *PackagedArchive) (*PublishedDownload, error) {
	p.uploads++
	if p.err != nil {
		return nil, p.err
	}
	d := *p.download
	d.Key = archive.Key
	return &d, nil
}

// fakeLauncher hands back a process whose output is a fixed stream and
// counts how often it was asked to spawn.
type fakeLauncher struct {
	output io.ReadCloser
	err    error
	spawns int
}

func (l *fakeLauncher) Launch(entryPoint string) (*RunProcess, error) {
	l.spawns++
	if l.err != nil {
		return nil, l.err
	}
	return &RunProcess{
		PID:       4242,
		Output:    l.output,
		StartedAt: time.Now(),
	}, nil
}

// recordingNotifier captures every event type in order.
type recordingNotifier struct {
	types []notify.EventType
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event) error {
	n.types = append(n.types, event.Type)
	return nil
}

// fakeReaper keeps runner tests off the host's real port bindings.
func fakeReaper() *PortReaper {
	return NewPortReaper(WithReaperRunner(&fakePortRunner{}), WithReaperLogger(discardLogger()))
}

func testDownload() *PublishedDownload {
	return &PublishedDownload{
		URL:       "https://storage.example.com/signed",
		ExpiresAt: time.Now().Add(DefaultSignedURLTTL),
	}
}

func TestNewRunner_NoPublisher(t *testing.T) {
	_, err := NewRunner(RunConfig{OutputDir: t.TempDir()})
	if !errors.Is(err, ErrNoPublisher) {
		t.Errorf("error = %v, want ErrNoPublisher", err)
	}
}

func TestRunner_Run_Success(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	childOutput := strings.NewReader(
		"Running on local URL: http://127.0.0.1:7860\n" +
			"Running on public URL: https://cafe0123.gradio.live\n")
	launcher := &fakeLauncher{output: io.NopCloser(childOutput)}
	publisher := &fakePublisher{download: testDownload()}
	notifier := &recordingNotifier{}

	runner, err := NewRunner(RunConfig{
		OutputDir:  outputDir,
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     fakeReaper(),
		Publisher:  publisher,
		Launcher:   launcher,
		Notifier:   notifier,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "calculator")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", result.Status, StatusSuccess)
	}
	if result.Discovery != ScanMatched {
		t.Errorf("Discovery = %q, want %q", result.Discovery, ScanMatched)
	}
	if result.Endpoint != "https://cafe0123.gradio.live" {
		t.Errorf("Endpoint = %q, want the printed public URL", result.Endpoint)
	}
	if result.LocalURL != "http://127.0.0.1:7860" {
		t.Errorf("LocalURL = %q, want the printed local URL", result.LocalURL)
	}
	if result.RunID == "" {
		t.Error("RunID should be populated")
	}
	if result.Download == nil || result.Download.URL == "" {
		t.Error("Download should carry the signed URL")
	}
	if result.Download.Key != ArchiveKey("calculator", result.RunID) {
		t.Errorf("Download.Key = %q, want run-scoped archive key", result.Download.Key)
	}

	// The discovered endpoint is persisted for the next packaging pass.
	side, err := os.ReadFile(filepath.Join(outputDir, PublicURLFile))
	if err != nil {
		t.Fatalf("public URL side file missing: %v", err)
	}
	if got := strings.TrimSpace(string(side)); got != result.Endpoint {
		t.Errorf("side file = %q, want %q", got, result.Endpoint)
	}

	want := []notify.EventType{
		notify.EventRunStarted,
		notify.EventArchivePublished,
		notify.EventAppLaunched,
		notify.EventURLDiscovered,
	}
	if len(notifier.types) != len(want) {
		t.Fatalf("notified %v, want %v", notifier.types, want)
	}
	for i, typ := range want {
		if notifier.types[i] != typ {
			t.Errorf("event[%d] = %q, want %q", i, notifier.types[i], typ)
		}
	}
}

func TestRunner_Run_DiscoveryTimeout(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	// A child that stays up but never prints a tunnel URL.
	pr, pw := io.Pipe()
	defer pw.Close()
	go pw.Write([]byte("Loading model...\n"))

	launcher := &fakeLauncher{output: pr}
	publisher := &fakePublisher{download: testDownload()}

	runner, err := NewRunner(RunConfig{
		OutputDir:        outputDir,
		StagingDir:       t.TempDir(),
		Port:             47861,
		Reaper:           fakeReaper(),
		DiscoveryTimeout: 300 * time.Millisecond,
		Publisher:        publisher,
		Launcher:         launcher,
		Logger:           discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "calculator")
	if err != nil {
		t.Fatalf("Run should not error on a discovery timeout: %v", err)
	}

	if result.Status != StatusDiscoveryTimedOut {
		t.Errorf("Status = %q, want %q", result.Status, StatusDiscoveryTimedOut)
	}
	if result.Discovery != ScanTimedOut {
		t.Errorf("Discovery = %q, want %q", result.Discovery, ScanTimedOut)
	}
	if result.Endpoint != "" {
		t.Errorf("Endpoint = %q, want empty on timeout", result.Endpoint)
	}
	if result.Download == nil {
		t.Error("Download should survive a discovery timeout")
	}
	if result.Process == nil {
		t.Error("Process handle should remain valid after a timeout")
	}
	if _, err := os.Stat(filepath.Join(outputDir, PublicURLFile)); !os.IsNotExist(err) {
		t.Error("no public URL side file should be written on timeout")
	}
}

func TestRunner_Run_ChildExited(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	launcher := &fakeLauncher{
		output: io.NopCloser(strings.NewReader("Traceback (most recent call last):\n")),
	}
	publisher := &fakePublisher{download: testDownload()}

	runner, err := NewRunner(RunConfig{
		OutputDir:  outputDir,
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     fakeReaper(),
		Publisher:  publisher,
		Launcher:   launcher,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	start := time.Now()
	result, err := runner.Run(context.Background(), "calculator")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Discovery != ScanChildExited {
		t.Errorf("Discovery = %q, want %q", result.Discovery, ScanChildExited)
	}
	if result.Status != StatusDiscoveryTimedOut {
		t.Errorf("Status = %q, want %q", result.Status, StatusDiscoveryTimedOut)
	}
	// EOF resolves promptly rather than burning the full window.
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("run took %v, want prompt resolution on child exit", elapsed)
	}
}

func TestRunner_Run_PublishFailureSkipsLaunch(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	launcher := &fakeLauncher{output: io.NopCloser(strings.NewReader(""))}
	publisher := &fakePublisher{err: &UploadError{Op: "upload object", Bucket: "b", Key: "k", Err: errors.New("credentials rejected")}}

	runner, err := NewRunner(RunConfig{
		OutputDir:  outputDir,
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     fakeReaper(),
		Publisher:  publisher,
		Launcher:   launcher,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	_, err = runner.Run(context.Background(), "calculator")
	if err == nil {
		t.Fatal("expected publish failure to abort the run")
	}
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Errorf("error should be UploadError, got %T", err)
	}
	if launcher.spawns != 0 {
		t.Errorf("launcher spawned %d times after publish failure, want 0", launcher.spawns)
	}
}

func TestRunner_Run_LaunchFailureKeepsDownload(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	launcher := &fakeLauncher{err: &LaunchError{Op: "start", Path: "app.py", Err: errors.New("exec format error")}}
	publisher := &fakePublisher{download: testDownload()}

	runner, err := NewRunner(RunConfig{
		OutputDir:  outputDir,
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     fakeReaper(),
		Publisher:  publisher,
		Launcher:   launcher,
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "calculator")
	if err == nil {
		t.Fatal("expected launch failure to surface as an error")
	}
	if result == nil {
		t.Fatal("result should be returned alongside a launch error")
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", result.Status, StatusFailed)
	}
	if result.Download == nil {
		t.Error("Download should survive a launch failure")
	}
}

func TestRunner_Run_MissingArtifacts(t *testing.T) {
	runner, err := NewRunner(RunConfig{
		OutputDir:  t.TempDir(),
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     fakeReaper(),
		Publisher:  &fakePublisher{download: testDownload()},
		Launcher:   &fakeLauncher{output: io.NopCloser(strings.NewReader(""))},
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	_, err = runner.Run(context.Background(), "calculator")
	if !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("error = %v, want ErrArtifactMissing", err)
	}
}

func TestRunner_Run_UsesInjectedReaper(t *testing.T) {
	outputDir := testutil.WriteArtifactSet(t, t.TempDir(), "calculator")

	// A stale process holds the port; the injected reaper must be the
	// one that frees it.
	runner := &fakePortRunner{pids: []string{"31337"}}
	reaper := NewPortReaper(WithReaperRunner(runner), WithReaperLogger(discardLogger()))

	r, err := NewRunner(RunConfig{
		OutputDir:  outputDir,
		StagingDir: t.TempDir(),
		Port:       47861,
		Reaper:     reaper,
		Publisher:  &fakePublisher{download: testDownload()},
		Launcher:   &fakeLauncher{output: io.NopCloser(strings.NewReader("Running on public URL: https://cafe0123.gradio.live\n"))},
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := r.Run(context.Background(), "calculator")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", result.Status, StatusSuccess)
	}

	if runner.lsofCalls == 0 {
		t.Error("injected reaper was never asked for listeners")
	}
	if len(runner.killCalls) != 1 || runner.killCalls[0] != "31337" {
		t.Errorf("killCalls = %v, want exactly the stale PID", runner.killCalls)
	}
}

func TestModuleTitle(t *testing.T) {
	if got := moduleTitle("account balance checker"); got != "Account Balance Checker" {
		t.Errorf("moduleTitle = %q, want title case", got)
	}
}
