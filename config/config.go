package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to key names for environment variable lookup,
// e.g. key "bucket" maps to DEMOFLOW_BUCKET.
const EnvPrefix = "DEMOFLOW_"

// Publisher kinds selectable from config.
const (
	PublisherGCS   = "gcs"
	PublisherS3    = "s3"
	PublisherLocal = "local"
)

// Config errors.
var (
	// ErrBucketRequired indicates no bucket was configured for a cloud publisher.
	ErrBucketRequired = errors.New("bucket is required")

	// ErrUnknownPublisher indicates the publisher kind is not gcs, s3, or local.
	ErrUnknownPublisher = errors.New("unknown publisher kind")
)

// Config holds the externally provided settings for a run: cloud
// identifiers and credentials (validated here only for presence, not
// correctness), the generated-output directory, and timing policy.
type Config struct {
	// Publisher selects the object store backend: gcs, s3, or local.
	Publisher string `yaml:"publisher"`

	// Project is the GCP project ID (gcs publisher).
	Project string `yaml:"project"`

	// Bucket is the object store bucket name.
	Bucket string `yaml:"bucket"`

	// ServiceKey is a base64-encoded GCP service account JSON key.
	// Usually supplied via DEMOFLOW_SERVICE_KEY rather than the file.
	ServiceKey string `yaml:"service_key"`

	// Region is the AWS region (s3 publisher).
	Region string `yaml:"region"`

	// Endpoint is a custom S3 endpoint (e.g. a MinIO host).
	Endpoint string `yaml:"endpoint"`

	// OutputDir is where the upstream producer writes generated files.
	OutputDir string `yaml:"output_dir"`

	// StagingDir receives packaged archives before upload.
	StagingDir string `yaml:"staging_dir"`

	// Port is the port the generated app binds.
	Port int `yaml:"port"`

	// DiscoveryTimeout bounds the wait for a public URL.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`

	// SignedURLTTL is the download URL lifetime.
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`

	// Warnings collects non-fatal issues found while loading.
	Warnings []string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Publisher:        PublisherGCS,
		OutputDir:        "output",
		Port:             7860,
		DiscoveryTimeout: 60 * time.Second,
		SignedURLTTL:     10 * time.Minute,
	}
}

// Load reads configuration in precedence order: defaults, then the YAML
// file at path (skipped with a warning if missing), then DEMOFLOW_*
// environment variables. An empty path skips the file layer entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file %s not found, using defaults", path))
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays DEMOFLOW_* environment variables.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	setString("PUBLISHER", &c.Publisher)
	setString("PROJECT", &c.Project)
	setString("BUCKET", &c.Bucket)
	setString("SERVICE_KEY", &c.ServiceKey)
	setString("REGION", &c.Region)
	setString("ENDPOINT", &c.Endpoint)
	setString("OUTPUT_DIR", &c.OutputDir)
	setString("STAGING_DIR", &c.StagingDir)

	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid %sPORT=%q", EnvPrefix, v))
		} else {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "DISCOVERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid %sDISCOVERY_TIMEOUT=%q", EnvPrefix, v))
		} else {
			c.DiscoveryTimeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "SIGNED_URL_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid %sSIGNED_URL_TTL=%q", EnvPrefix, v))
		} else {
			c.SignedURLTTL = d
		}
	}
}

// Validate checks the loaded configuration for structural problems.
func (c *Config) Validate() error {
	switch c.Publisher {
	case PublisherGCS, PublisherS3:
		if c.Bucket == "" {
			return fmt.Errorf("%w for publisher %q", ErrBucketRequired, c.Publisher)
		}
	case PublisherLocal:
		// No bucket needed.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPublisher, c.Publisher)
	}
	return nil
}
