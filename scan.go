package demoflow

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultDiscoveryTimeout bounds how long a run waits for the generated
// app to print its public tunnel address.
const DefaultDiscoveryTimeout = 60 * time.Second

// PublicURLDomain is the recognition rule for public tunnel addresses:
// a URL whose host ends with this suffix is considered the app's public
// endpoint. Keeping the rule to a single domain-suffix match keeps the
// matched/timed-out boundary deterministic.
const PublicURLDomain = ".gradio.live"

var (
	// publicURLBanner matches the launch banner the app prints once its
	// tunnel is up, e.g. "Running on public URL: https://abcd1234.gradio.live".
	publicURLBanner = regexp.MustCompile(`Running on public URL:\s*(https?://\S+)`)

	// anyURL extracts candidate URLs from arbitrary output lines.
	anyURL = regexp.MustCompile(`https?://\S+`)

	// localURL matches the loopback address the app prints before (or
	// instead of) a tunnel address.
	localURL = regexp.MustCompile(`http://127\.0\.0\.1:\d+\S*`)
)

// ScanState is the terminal state of a discovery scan.
type ScanState string

const (
	// ScanMatched means a public tunnel address was found in the output.
	ScanMatched ScanState = "matched"

	// ScanTimedOut means the window elapsed without a match. This is a
	// legitimate outcome, not an error: the app simply did not expose a
	// public endpoint in time.
	ScanTimedOut ScanState = "timed_out"

	// ScanChildExited means the child's output ended before any match.
	ScanChildExited ScanState = "child_exited"
)

// ScanResult is the outcome of one discovery scan. Only ScanMatched
// carries an Endpoint; LocalURL is a best-effort fallback captured from
// the output regardless of the terminal state.
type ScanResult struct {
	State    ScanState
	Endpoint string        // Public tunnel address (ScanMatched only)
	LocalURL string        // First loopback address seen, if any
	Elapsed  time.Duration // Time spent scanning
}

// Scanner watches a RunProcess output stream for a public tunnel
// address. The timeout is enforced by the consumer: a background reader
// feeds a bounded line channel and the scan loop waits on a timer, so a
// silent or chatty child can never stall the run past the deadline.
type Scanner struct {
	timeout time.Duration
	logger  *slog.Logger
	echo    io.Writer // Optional sink for the child's output lines
}

// ScannerOption configures Scanner.
type ScannerOption func(*Scanner)

// WithScanTimeout sets the maximum wait for a match.
func WithScanTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.timeout = d }
}

// WithScanLogger sets the logger for scan progress.
func WithScanLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// WithEcho copies every scanned output line to w, mirroring the child's
// console output for the operator.
func WithEcho(w io.Writer) ScannerOption {
	return func(s *Scanner) { s.echo = w }
}

// NewScanner creates a scanner with the given options.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		timeout: DefaultDiscoveryTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads lines from r until a public tunnel address appears, the
// timeout elapses, or the stream ends (child exited). It returns as
// soon as any of the three happens; a dead child resolves immediately
// instead of burning the rest of the window.
func (s *Scanner) Scan(ctx context.Context, r io.Reader) ScanResult {
	start := time.Now()

	lines := make(chan string, 64)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	result := ScanResult{}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				result.State = ScanChildExited
				result.Elapsed = time.Since(start)
				s.logger.Info("child exited before exposing a public URL", "elapsed", result.Elapsed)
				return result
			}
			if s.echo != nil {
				io.WriteString(s.echo, line+"\n")
			}
			if endpoint, ok := MatchPublicURL(line); ok {
				result.State = ScanMatched
				result.Endpoint = endpoint
				result.Elapsed = time.Since(start)
				s.logger.Info("discovered public URL", "url", endpoint, "elapsed", result.Elapsed)
				return result
			}
			if result.LocalURL == "" {
				if m := localURL.FindString(line); m != "" {
					result.LocalURL = m
				}
			}

		case <-timer.C:
			result.State = ScanTimedOut
			result.Elapsed = time.Since(start)
			s.logger.Warn("discovery window elapsed without a public URL", "timeout", s.timeout)
			return result

		case <-ctx.Done():
			result.State = ScanTimedOut
			result.Elapsed = time.Since(start)
			return result
		}
	}
}

// MatchPublicURL applies the recognition rule to one output line and
// returns the public endpoint if the line announces one.
func MatchPublicURL(line string) (string, bool) {
	if m := publicURLBanner.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	for _, candidate := range anyURL.FindAllString(line, -1) {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if strings.HasSuffix(u.Hostname(), PublicURLDomain) {
			return candidate, true
		}
	}
	return "", false
}
