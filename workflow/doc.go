// Package workflow provides pipeline state management and node
// implementations for package-publish-launch-discover runs.
//
// Core types:
//   - State: Run state with reap, package, publish, launch, and discovery data
//   - NodeFunc: Function signature for pipeline nodes
//   - Services: Pipeline components injected via context
//
// Pipeline nodes:
//   - ReapNode: Frees the target port
//   - PackageNode: Zips the generated artifact set
//   - PublishNode: Uploads the archive and mints the signed URL
//   - LaunchNode: Spawns the generated app
//   - DiscoverNode: Waits (bounded) for the public tunnel URL
//   - NotifyNode: Reports the terminal state
//
// Example usage:
//
//	svc, _ := workflow.NewServices(publisher)
//	ctx = svc.Inject(ctx)
//	state, _ := workflow.NewState("output", "accounts")
//	state, err := workflow.PackageNode(ctx, state)
//
// The nodes compose into a flowgraph graph via Pipeline().
package workflow
