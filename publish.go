package demoflow

import (
	"context"
	"time"
)

// DefaultSignedURLTTL is the lifetime of minted download URLs.
const DefaultSignedURLTTL = 10 * time.Minute

// PublishedDownload records a published archive: the signed download
// URL, the object key it was stored under, and the advisory expiry (the
// store enforces it, not this package). Created once per run, never
// updated.
type PublishedDownload struct {
	URL       string    // Signed, credential-free download link
	Key       string    // Object key in the bucket
	ExpiresAt time.Time // When the URL stops working
}

// Publisher uploads a packaged archive to an object store and mints a
// time-limited signed download URL. Implementations surface
// authentication, permission, quota, and network failures as
// UploadErrors and never retry internally; retry policy belongs to the
// caller.
type Publisher interface {
	Upload(ctx context.Context, archive *PackagedArchive) (*PublishedDownload, error)
}
