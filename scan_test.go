package demoflow

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMatchPublicURL(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{
			name: "launch banner",
			line: "Running on public URL: https://abcd1234.gradio.live",
			want: "https://abcd1234.gradio.live",
			ok:   true,
		},
		{
			name: "banner with trailing text",
			line: "INFO Running on public URL: https://xyz.gradio.live",
			want: "https://xyz.gradio.live",
			ok:   true,
		},
		{
			name: "bare tunnel URL",
			line: "tunnel ready at https://demo42.gradio.live/ for sharing",
			want: "https://demo42.gradio.live/",
			ok:   true,
		},
		{
			name: "local URL is not public",
			line: "Running on local URL: http://127.0.0.1:7860",
			ok:   false,
		},
		{
			name: "unrelated domain",
			line: "see https://example.com/docs for help",
			ok:   false,
		},
		{
			name: "no URL at all",
			line: "Loading model weights...",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchPublicURL(tt.line)
			if ok != tt.ok {
				t.Fatalf("MatchPublicURL(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("MatchPublicURL(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestScanner_Scan_Matched(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()

	go func() {
		io.WriteString(pw, "Loading...\n")
		io.WriteString(pw, "Running on local URL: http://127.0.0.1:7860\n")
		io.WriteString(pw, "Running on public URL: https://abcd1234.gradio.live\n")
		// Keep the stream open: a match must not depend on EOF.
	}()

	scanner := NewScanner(WithScanTimeout(5*time.Second), WithScanLogger(discardLogger()))

	start := time.Now()
	result := scanner.Scan(context.Background(), pr)

	if result.State != ScanMatched {
		t.Fatalf("State = %q, want %q", result.State, ScanMatched)
	}
	if result.Endpoint != "https://abcd1234.gradio.live" {
		t.Errorf("Endpoint = %q, want the exact matched address", result.Endpoint)
	}
	if result.LocalURL != "http://127.0.0.1:7860" {
		t.Errorf("LocalURL = %q, want the loopback fallback", result.LocalURL)
	}
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Errorf("matched scan took %v, should return well before the deadline", elapsed)
	}
}

func TestScanner_Scan_TimedOut(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	go func() {
		for i := 0; i < 3; i++ {
			io.WriteString(pw, "still loading...\n")
			time.Sleep(50 * time.Millisecond)
		}
		// Stream stays open; the consumer's timer must fire regardless.
	}()

	timeout := 400 * time.Millisecond
	scanner := NewScanner(WithScanTimeout(timeout), WithScanLogger(discardLogger()))

	start := time.Now()
	result := scanner.Scan(context.Background(), pr)
	elapsed := time.Since(start)

	if result.State != ScanTimedOut {
		t.Fatalf("State = %q, want %q", result.State, ScanTimedOut)
	}
	if result.Endpoint != "" {
		t.Errorf("Endpoint = %q, want empty on timeout", result.Endpoint)
	}
	if elapsed < timeout {
		t.Errorf("timed out after %v, must not return before the full deadline %v", elapsed, timeout)
	}
}

func TestScanner_Scan_ChildExited(t *testing.T) {
	// EOF before any match: the scan must resolve promptly, not wait out
	// the whole window.
	output := strings.NewReader("Traceback (most recent call last):\n  boom\n")

	scanner := NewScanner(WithScanTimeout(10*time.Second), WithScanLogger(discardLogger()))

	start := time.Now()
	result := scanner.Scan(context.Background(), output)
	elapsed := time.Since(start)

	if result.State != ScanChildExited {
		t.Fatalf("State = %q, want %q", result.State, ScanChildExited)
	}
	if elapsed > time.Second {
		t.Errorf("child-exit scan took %v, want prompt resolution", elapsed)
	}
}

func TestScanner_Scan_LocalURLFallback(t *testing.T) {
	output := strings.NewReader("Running on local URL: http://127.0.0.1:7860\nbye\n")

	scanner := NewScanner(WithScanTimeout(10*time.Second), WithScanLogger(discardLogger()))
	result := scanner.Scan(context.Background(), output)

	if result.State != ScanChildExited {
		t.Fatalf("State = %q, want %q", result.State, ScanChildExited)
	}
	if result.LocalURL != "http://127.0.0.1:7860" {
		t.Errorf("LocalURL = %q, want the loopback address", result.LocalURL)
	}
}

func TestScanner_Scan_Echo(t *testing.T) {
	var echoed strings.Builder
	output := strings.NewReader("line one\nRunning on public URL: https://e.gradio.live\n")

	scanner := NewScanner(
		WithScanTimeout(time.Second),
		WithScanLogger(discardLogger()),
		WithEcho(&echoed),
	)
	result := scanner.Scan(context.Background(), output)

	if result.State != ScanMatched {
		t.Fatalf("State = %q, want %q", result.State, ScanMatched)
	}
	if !strings.Contains(echoed.String(), "line one") {
		t.Errorf("echo output %q should contain the child's lines", echoed.String())
	}
}

func TestScanner_Scan_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	scanner := NewScanner(WithScanTimeout(10*time.Second), WithScanLogger(discardLogger()))

	start := time.Now()
	result := scanner.Scan(ctx, pr)

	if result.State != ScanTimedOut {
		t.Fatalf("State = %q, want %q on cancellation", result.State, ScanTimedOut)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation should abort the scan promptly")
	}
}
