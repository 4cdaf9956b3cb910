package workflow

import (
	"context"

	"github.com/randalmurphal/demoflow"
	"github.com/randalmurphal/demoflow/notify"
)

// =============================================================================
// Context Injection Helpers
// =============================================================================
// These helpers allow pipeline services to be injected into context.Context
// for use by flowgraph nodes.

// serviceContextKey is a private type for context keys to avoid collisions
type serviceContextKey string

// Context keys for pipeline services
const (
	servicesKey serviceContextKey = "demoflow.services"
)

// Services wraps the pipeline components the nodes need.
type Services struct {
	Reaper    *demoflow.PortReaper
	Packager  *demoflow.Packager
	Publisher demoflow.Publisher
	Launcher  demoflow.AppLauncher
	Scanner   *demoflow.Scanner
	Notifier  notify.Notifier // Optional notification service
}

// NewServices creates Services with real defaults for everything but
// the publisher, which has no sensible default and must be supplied.
func NewServices(publisher demoflow.Publisher) (*Services, error) {
	if publisher == nil {
		return nil, demoflow.ErrNoPublisher
	}
	return &Services{
		Reaper:    demoflow.NewPortReaper(),
		Packager:  demoflow.NewPackager(""),
		Publisher: publisher,
		Launcher:  demoflow.NewLauncher(),
		Scanner:   demoflow.NewScanner(),
	}, nil
}

// Inject adds the services to the context.
func (s *Services) Inject(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, servicesKey, s)
	if s.Notifier != nil {
		ctx = notify.WithNotifier(ctx, s.Notifier)
	}
	return ctx
}

// FromContext extracts Services from context.
// Returns nil if none were injected.
func FromContext(ctx context.Context) *Services {
	if s, ok := ctx.Value(servicesKey).(*Services); ok {
		return s
	}
	return nil
}

// MustFromContext extracts Services or panics.
func MustFromContext(ctx context.Context) *Services {
	s := FromContext(ctx)
	if s == nil {
		panic("demoflow/workflow: Services not found in context")
	}
	return s
}
