package demoflow

import "errors"

// Packaging errors
var (
	// ErrArtifactMissing indicates a required generated file is absent or empty.
	ErrArtifactMissing = errors.New("required artifact missing")

	// ErrModuleNameEmpty indicates no module name was supplied for a run.
	ErrModuleNameEmpty = errors.New("module name is empty")
)

// Publishing errors
var (
	// ErrNoPublisher indicates the runner has no publisher configured.
	ErrNoPublisher = errors.New("no publisher configured")

	// ErrSecretTooShort indicates the local publisher signing secret is under 32 bytes.
	ErrSecretTooShort = errors.New("signing secret must be at least 32 bytes")

	// ErrTokenExpired indicates a local download token is past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// Launch and discovery errors
var (
	// ErrEntryPointNotFound indicates the generated app entry point does not exist.
	ErrEntryPointNotFound = errors.New("entry point not found")
)

// PackagingError wraps a failure to assemble or write the artifact archive.
// It aborts the run before any network or process activity.
type PackagingError struct {
	Op   string // Operation that failed (e.g., "validate", "write archive")
	Path string // File or archive path involved
	Err  error  // Underlying error
}

func (e *PackagingError) Error() string {
	if e.Path != "" {
		return "packaging " + e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return "packaging " + e.Op + ": " + e.Err.Error()
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// UploadError wraps a failure to publish the archive or mint a signed URL.
// It is fatal for the run and is never retried by the publisher itself;
// retry policy, if any, belongs to the caller.
type UploadError struct {
	Op     string // Operation that failed (e.g., "upload", "sign URL")
	Bucket string // Target bucket
	Key    string // Object key
	Err    error  // Underlying error
}

func (e *UploadError) Error() string {
	if e.Bucket != "" {
		return "upload " + e.Op + " " + e.Bucket + "/" + e.Key + ": " + e.Err.Error()
	}
	return "upload " + e.Op + ": " + e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// LaunchError wraps a failure to spawn the generated application.
// The archive has already been published by the time launch runs, so the
// caller still receives a valid download URL alongside this error.
type LaunchError struct {
	Op   string // Operation that failed (e.g., "spawn", "open output pipe")
	Path string // Entry point path
	Err  error  // Underlying error
}

func (e *LaunchError) Error() string {
	if e.Path != "" {
		return "launch " + e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return "launch " + e.Op + ": " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
