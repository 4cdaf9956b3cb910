// Package demoflow packages machine-generated demo applications, publishes
// them to a cloud object store, launches them, and discovers their public
// tunnel address.
//
// The package is organized into subpackages by domain:
//
//   - config: YAML + environment configuration loading
//   - notify: Run lifecycle notifications (log, webhook, Slack)
//   - workflow: Run pipeline nodes for flowgraph execution
//   - testutil: Test fixtures and fake child processes
//
// # Quick Start
//
//	import "github.com/randalmurphal/demoflow"
//
//	// Create a publisher (GCS, S3, or local)
//	pub, _ := demoflow.NewGCSPublisher(ctx, demoflow.GCSConfig{
//	    Project: "my-project",
//	    Bucket:  "my-bucket",
//	})
//
//	// Create a runner and execute a run
//	runner, _ := demoflow.NewRunner(demoflow.RunConfig{
//	    OutputDir: "output",
//	    Publisher: pub,
//	})
//	result, err := runner.Run(ctx, "accounts")
//
// A run reaps any process still bound to the target port, zips the
// generated artifact set, uploads it and mints a signed download URL,
// launches the generated app detached, and waits a bounded window for the
// app to print its public tunnel address. A discovery timeout is a normal
// terminal outcome, not an error: the result carries the download URL and
// an explicit timed-out marker, and the child is left running.
//
// See individual package documentation for detailed usage.
package demoflow
