package demoflow

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage publisher.
type GCSConfig struct {
	// Project is the GCP project ID.
	Project string

	// Bucket is the target bucket name.
	Bucket string

	// ServiceKey is a base64-encoded service account JSON key. When
	// empty, application default credentials are used.
	ServiceKey string

	// SignedURLTTL is the download URL lifetime.
	// Defaults to DefaultSignedURLTTL (10 minutes) if zero.
	SignedURLTTL time.Duration
}

func (c GCSConfig) ttl() time.Duration {
	if c.SignedURLTTL == 0 {
		return DefaultSignedURLTTL
	}
	return c.SignedURLTTL
}

// GCSPublisher publishes archives to a GCS bucket and mints V4 signed
// download URLs.
type GCSPublisher struct {
	client *storage.Client
	config GCSConfig
}

// NewGCSPublisher creates a publisher from the given config. The
// service key, when set, is decoded and exchanged for credentials
// scoped to object read/write.
func NewGCSPublisher(ctx context.Context, cfg GCSConfig) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if cfg.ServiceKey != "" {
		keyJSON, err := base64.StdEncoding.DecodeString(cfg.ServiceKey)
		if err != nil {
			return nil, fmt.Errorf("decode service key: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, keyJSON, storage.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("parse service key: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSPublisher{client: client, config: cfg}, nil
}

// Close releases the underlying storage client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

// Upload implements Publisher. The archive digest rides along as object
// metadata so downloads can be verified out of band.
func (p *GCSPublisher) Upload(ctx context.Context, archive *PackagedArchive) (*PublishedDownload, error) {
	f, err := os.Open(archive.Path)
	if err != nil {
		return nil, &UploadError{Op: "open archive", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}
	defer f.Close()

	obj := p.client.Bucket(p.config.Bucket).Object(archive.Key)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/zip"
	w.Metadata = map[string]string{"blake2b-256": archive.Digest}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return nil, &UploadError{Op: "upload", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &UploadError{Op: "upload", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}

	expires := time.Now().Add(p.config.ttl())
	url, err := p.client.Bucket(p.config.Bucket).SignedURL(archive.Key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	})
	if err != nil {
		return nil, &UploadError{Op: "sign URL", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}

	return &PublishedDownload{
		URL:       url,
		Key:       archive.Key,
		ExpiresAt: expires,
	}, nil
}
