// Package config loads demoflow configuration.
//
// Configuration is layered with clear precedence:
//  1. Environment variables (highest priority)
//  2. YAML config file
//  3. Built-in defaults (lowest priority)
//
// # Basic Usage
//
//	cfg, err := config.Load("demoflow.yaml")
//	if err != nil {
//	    // structural problem: unknown publisher, missing bucket, ...
//	}
//	for _, w := range cfg.Warnings {
//	    slog.Warn(w)
//	}
//
// # Environment Variables
//
// Every key maps to a DEMOFLOW_-prefixed variable:
//
//	DEMOFLOW_PUBLISHER=s3
//	DEMOFLOW_BUCKET=demo-archives
//	DEMOFLOW_SERVICE_KEY=<base64 service account JSON>
//	DEMOFLOW_DISCOVERY_TIMEOUT=90s
//
// Credentials are validated for presence only; the publisher surfaces
// authentication failures at upload time.
package config
