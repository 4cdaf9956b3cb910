package workflow

import (
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/demoflow"
)

// =============================================================================
// Embeddable State Components
// =============================================================================

// ReapState tracks the port-freeing step.
type ReapState struct {
	ReapedPIDs  []int  `json:"reapedPids,omitempty"`
	PortFreed   bool   `json:"portFreed,omitempty"`
	ReapWarning string `json:"reapWarning,omitempty"`
}

// PackageState tracks archive creation.
type PackageState struct {
	Archive    *demoflow.PackagedArchive `json:"archive,omitempty"`
	PackagedAt time.Time                 `json:"packagedAt,omitempty"`
}

// PublishState tracks the upload and signed URL.
type PublishState struct {
	Download    *demoflow.PublishedDownload `json:"download,omitempty"`
	PublishedAt time.Time                   `json:"publishedAt,omitempty"`
}

// LaunchState tracks the spawned app process.
type LaunchState struct {
	Process    *demoflow.RunProcess `json:"-"`
	PID        int                  `json:"pid,omitempty"`
	LaunchedAt time.Time            `json:"launchedAt,omitempty"`
}

// DiscoverState tracks public URL discovery.
type DiscoverState struct {
	Discovery demoflow.ScanState `json:"discovery,omitempty"`
	Endpoint  string             `json:"endpoint,omitempty"`
	LocalURL  string             `json:"localUrl,omitempty"`
}

// =============================================================================
// State
// =============================================================================

// State carries one run through the pipeline nodes. Each node reads the
// components earlier nodes filled in and returns an updated copy.
type State struct {
	RunID     string `json:"runId"`
	Module    string `json:"module"`
	OutputDir string `json:"outputDir"`
	Port      int    `json:"port"`

	ReapState     `json:",inline"`
	PackageState  `json:",inline"`
	PublishState  `json:",inline"`
	LaunchState   `json:",inline"`
	DiscoverState `json:",inline"`

	Status    demoflow.RunStatus `json:"status,omitempty"`
	LastError string             `json:"lastError,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
}

// NewState creates pipeline state for one module run.
func NewState(outputDir, module string) (State, error) {
	runID, err := nanoid.New()
	if err != nil {
		return State{}, fmt.Errorf("generate run ID: %w", err)
	}

	return State{
		RunID:     runID,
		Module:    module,
		OutputDir: outputDir,
		Port:      demoflow.DefaultPort,
		StartedAt: time.Now(),
	}, nil
}

// SetError records a node failure on the state.
func (s *State) SetError(err error) {
	s.LastError = err.Error()
	s.Status = demoflow.StatusFailed
}

// Result converts terminal pipeline state into a RunResult.
func (s State) Result() *demoflow.RunResult {
	return &demoflow.RunResult{
		RunID:     s.RunID,
		Module:    s.Module,
		Download:  s.Download,
		Endpoint:  s.Endpoint,
		LocalURL:  s.LocalURL,
		Discovery: s.Discovery,
		Status:    s.Status,
		Process:   s.Process,
		Duration:  time.Since(s.StartedAt),
	}
}
