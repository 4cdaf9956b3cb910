package demoflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3-compatible publisher. It works against
// AWS S3, MinIO, and other S3-compatible stores.
type S3Config struct {
	Bucket          string // Target bucket name
	Region          string // AWS region (default: us-east-1)
	Endpoint        string // Custom endpoint (e.g. localhost:9000 for MinIO)
	AccessKeyID     string // Static access key; empty uses the default chain
	SecretAccessKey string // Static secret key
	UseSSL          bool   // Use HTTPS toward a custom endpoint
	ForcePathStyle  bool   // Path-style addressing (required for MinIO)

	// SignedURLTTL is the download URL lifetime.
	// Defaults to DefaultSignedURLTTL (10 minutes) if zero.
	SignedURLTTL time.Duration
}

func (c S3Config) ttl() time.Duration {
	if c.SignedURLTTL == 0 {
		return DefaultSignedURLTTL
	}
	return c.SignedURLTTL
}

// S3Publisher publishes archives to an S3-compatible bucket and mints
// presigned GET URLs.
type S3Publisher struct {
	client  *s3.Client
	presign *s3.PresignClient
	config  S3Config
}

// NewS3Publisher creates a publisher from the given config.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			scheme := "https"
			if !cfg.UseSSL {
				scheme = "http"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, cfg.Endpoint))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Publisher{
		client:  client,
		presign: s3.NewPresignClient(client),
		config:  cfg,
	}, nil
}

// Upload implements Publisher.
func (p *S3Publisher) Upload(ctx context.Context, archive *PackagedArchive) (*PublishedDownload, error) {
	f, err := os.Open(archive.Path)
	if err != nil {
		return nil, &UploadError{Op: "open archive", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.config.Bucket),
		Key:           aws.String(archive.Key),
		Body:          f,
		ContentType:   aws.String("application/zip"),
		ContentLength: aws.Int64(archive.Size),
		Metadata:      map[string]string{"blake2b-256": archive.Digest},
	})
	if err != nil {
		return nil, &UploadError{Op: "upload", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}

	ttl := p.config.ttl()
	signed, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(archive.Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, &UploadError{Op: "sign URL", Bucket: p.config.Bucket, Key: archive.Key, Err: err}
	}

	return &PublishedDownload{
		URL:       signed.URL,
		Key:       archive.Key,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
