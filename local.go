package demoflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// LocalPublisher is a development and test backend: it copies the
// archive into a serve directory and mints an HMAC-signed, expiring
// download token instead of talking to a cloud store. The URLs it
// returns are meant to be served by whatever exposes ServeDir over
// HTTP; ValidateDownloadToken is the matching check.
type LocalPublisher struct {
	ServeDir string        // Directory the archive is copied into
	BaseURL  string        // URL prefix for download links
	Secret   []byte        // HMAC signing key (must be at least 32 bytes)
	TTL      time.Duration // Download URL lifetime
}

// NewLocalPublisher creates a local publisher. Returns
// ErrSecretTooShort if the signing secret is under 32 bytes.
func NewLocalPublisher(serveDir, baseURL string, secret []byte) (*LocalPublisher, error) {
	if len(secret) < 32 {
		return nil, ErrSecretTooShort
	}
	return &LocalPublisher{
		ServeDir: serveDir,
		BaseURL:  baseURL,
		Secret:   secret,
		TTL:      DefaultSignedURLTTL,
	}, nil
}

// Upload implements Publisher.
func (p *LocalPublisher) Upload(ctx context.Context, archive *PackagedArchive) (*PublishedDownload, error) {
	if err := os.MkdirAll(p.ServeDir, 0o755); err != nil {
		return nil, &UploadError{Op: "create serve dir", Key: archive.Key, Err: err}
	}

	dst := filepath.Join(p.ServeDir, archive.Key)
	if err := copyFile(archive.Path, dst); err != nil {
		return nil, &UploadError{Op: "copy archive", Key: archive.Key, Err: err}
	}

	expires := time.Now().Add(p.TTL)
	token, err := p.signToken(archive.Key, expires)
	if err != nil {
		return nil, &UploadError{Op: "sign URL", Key: archive.Key, Err: err}
	}

	downloadURL := fmt.Sprintf("%s/download/%s?token=%s",
		p.BaseURL, url.PathEscape(archive.Key), url.QueryEscape(token))

	return &PublishedDownload{
		URL:       downloadURL,
		Key:       archive.Key,
		ExpiresAt: expires,
	}, nil
}

// signToken mints an HS256 token scoped to one object key.
func (p *LocalPublisher) signToken(key string, expires time.Time) (string, error) {
	tokenID, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   key,
		Issuer:    "demoflow",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.Secret)
}

// ValidateDownloadToken checks a download token and returns the object
// key it grants access to. Expired tokens return ErrTokenExpired.
func (p *LocalPublisher) ValidateDownloadToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Subject, nil
}

// copyFile copies src to dst, truncating any existing file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
