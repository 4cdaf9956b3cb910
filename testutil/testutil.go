// Package testutil provides utilities for testing.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteArtifactSet writes a complete generated artifact set for module
// into dir: design.md, <module>.py, test_<module>.py, app.py.
// Returns dir for convenience.
func WriteArtifactSet(t *testing.T, dir, module string) string {
	t.Helper()

	files := map[string]string{
		"design.md":              "# " + module + " design\n\nGenerated design document.\n",
		module + ".py":           "def get_balance():\n    return 0\n",
		"test_" + module + ".py": "def test_balance():\n    assert True\n",
		"app.py":                 "import gradio as gr\n\nprint('demo')\n",
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write artifact %s: %v", name, err)
		}
	}

	return dir
}

// FakeChildScript writes an executable shell script that prints each
// line with delay between them, then sleeps so the process stays alive
// like a launched demo app. Returns the script path.
func FakeChildScript(t *testing.T, lines []string, delay time.Duration) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("echo '%s'\n", line))
		if delay > 0 {
			b.WriteString(fmt.Sprintf("sleep %.2f\n", delay.Seconds()))
		}
	}
	b.WriteString("sleep 60\n")

	path := filepath.Join(t.TempDir(), "fake_child.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write fake child script: %v", err)
	}
	return path
}

// ExitingChildScript writes an executable shell script that prints each
// line and then exits immediately, simulating a crashed demo app.
func ExitingChildScript(t *testing.T, lines []string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("echo '%s'\n", line))
	}

	path := filepath.Join(t.TempDir(), "exiting_child.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write exiting child script: %v", err)
	}
	return path
}
