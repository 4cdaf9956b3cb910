package integrationtest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/demoflow"
	"github.com/randalmurphal/demoflow/workflow"
)

// setupOutputDir creates a fake generated output directory for module.
func setupOutputDir(t *testing.T, module string) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"design.md":              "# " + module + " design\n",
		module + ".py":           "def get_balance():\n    return 0\n",
		"test_" + module + ".py": "def test_balance():\n    assert True\n",
		"app.py":                 "import gradio as gr\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write artifact %s: %v", name, err)
		}
	}
	return dir
}

// memoryPublisher stores uploads in memory and mints fake signed URLs.
type memoryPublisher struct {
	uploads map[string]string
}

func newMemoryPublisher() *memoryPublisher {
	return &memoryPublisher{uploads: make(map[string]string)}
}

func (p *memoryPublisher) Upload(ctx context.Context, archive *demoflow.PackagedArchive) (*demoflow.PublishedDownload, error) {
	p.uploads[archive.Key] = archive.Digest
	return &demoflow.PublishedDownload{
		URL:       "https://storage.example.com/" + archive.Key + "?sig=fake",
		Key:       archive.Key,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, nil
}

// scriptedLauncher returns a process reading a canned transcript.
type scriptedLauncher struct {
	transcript string
}

func (l scriptedLauncher) Launch(entryPoint string) (*demoflow.RunProcess, error) {
	return &demoflow.RunProcess{
		PID:       os.Getpid(),
		Output:    io.NopCloser(strings.NewReader(l.transcript)),
		StartedAt: time.Now(),
	}, nil
}

// freePortRunner answers lsof queries with "no listeners".
type freePortRunner struct{}

func (freePortRunner) Run(dir, name string, args ...string) (string, error) {
	return "", errors.New("exit status 1")
}

// setupContext builds a context carrying stubbed pipeline services.
func setupContext(t *testing.T, publisher demoflow.Publisher, launcher demoflow.AppLauncher) context.Context {
	t.Helper()

	svc := &workflow.Services{
		Reaper:    demoflow.NewPortReaper(demoflow.WithReaperRunner(freePortRunner{})),
		Packager:  demoflow.NewPackager(t.TempDir()),
		Publisher: publisher,
		Launcher:  launcher,
		Scanner:   demoflow.NewScanner(demoflow.WithScanTimeout(2 * time.Second)),
	}
	return svc.Inject(context.Background())
}
