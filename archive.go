package demoflow

import (
	"archive/zip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
)

// PackagedArchive is the immutable zip produced from one ArtifactSet.
// It is owned by the run that created it and never mutated afterwards.
type PackagedArchive struct {
	Path      string    // Local staging path of the zip
	Key       string    // Run-scoped object key (also the file name)
	Size      int64     // Archive size in bytes
	Digest    string    // BLAKE2b-256 hex digest of the archive contents
	CreatedAt time.Time // Creation timestamp
}

// Packager collects an ArtifactSet into a zip archive in a staging
// directory. It never deletes or modifies the source files.
type Packager struct {
	stagingDir string
}

// NewPackager creates a packager writing archives under stagingDir.
// An empty stagingDir uses the OS temp directory.
func NewPackager(stagingDir string) *Packager {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Packager{stagingDir: stagingDir}
}

// ArchiveKey returns the run-scoped object key for a module's archive.
func ArchiveKey(module, runID string) string {
	return fmt.Sprintf("ai-demo-%s-%s.zip", module, runID)
}

// Package validates the set and writes its members into a single zip
// archive named by ArchiveKey. Any missing member, unreadable file, or
// archive write failure is a PackagingError; on failure no archive is
// left behind.
func (p *Packager) Package(set *ArtifactSet, runID string) (*PackagedArchive, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return nil, &PackagingError{Op: "create staging dir", Path: p.stagingDir, Err: err}
	}

	key := ArchiveKey(set.Module, runID)
	archivePath := filepath.Join(p.stagingDir, key)

	f, err := os.Create(archivePath)
	if err != nil {
		return nil, &PackagingError{Op: "create archive", Path: archivePath, Err: err}
	}

	digest, _ := blake2b.New256(nil)
	zw := zip.NewWriter(io.MultiWriter(f, digest))

	for _, m := range set.All() {
		if err := addFile(zw, m); err != nil {
			zw.Close()
			f.Close()
			os.Remove(archivePath)
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(archivePath)
		return nil, &PackagingError{Op: "finalize archive", Path: archivePath, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return nil, &PackagingError{Op: "write archive", Path: archivePath, Err: err}
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, &PackagingError{Op: "stat archive", Path: archivePath, Err: err}
	}

	return &PackagedArchive{
		Path:      archivePath,
		Key:       key,
		Size:      info.Size(),
		Digest:    hex.EncodeToString(digest.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// addFile copies one artifact into the zip under its logical name.
func addFile(zw *zip.Writer, m Artifact) error {
	src, err := os.Open(m.Path)
	if err != nil {
		return &PackagingError{Op: "read member", Path: m.Path, Err: err}
	}
	defer src.Close()

	w, err := zw.Create(m.Name)
	if err != nil {
		return &PackagingError{Op: "add member", Path: m.Path, Err: err}
	}
	if _, err := io.Copy(w, src); err != nil {
		return &PackagingError{Op: "copy member", Path: m.Path, Err: err}
	}
	return nil
}
