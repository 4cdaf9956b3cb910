package workflow

import (
	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// Pipeline builds the run pipeline as a flowgraph graph:
//
//	reap -> package -> publish -> launch -> discover -> notify -> END
//
// Packaging and publish failures abort before launch; discovery
// timeouts flow through to notify as a normal terminal state.
func Pipeline() *flowgraph.Graph[State] {
	return flowgraph.NewGraph[State]().
		AddNode("reap", asNode(ReapNode)).
		AddNode("package", asNode(PackageNode)).
		AddNode("publish", asNode(PublishNode)).
		AddNode("launch", asNode(LaunchNode)).
		AddNode("discover", asNode(DiscoverNode)).
		AddNode("notify", asNode(NotifyNode)).
		AddEdge("reap", "package").
		AddEdge("package", "publish").
		AddEdge("publish", "launch").
		AddEdge("launch", "discover").
		AddEdge("discover", "notify").
		AddEdge("notify", flowgraph.END).
		SetEntry("reap")
}

// asNode adapts a NodeFunc to flowgraph's NodeFunc signature.
// flowgraph.Context embeds context.Context, so the node receives
// the same context it would under direct invocation.
func asNode(fn NodeFunc) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		return fn(ctx, state)
	}
}
