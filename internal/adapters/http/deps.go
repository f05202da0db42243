package http

import (
	"context"

	"github.com/samirrijal/stashpoint/internal/core/usecases"
)

// Pinger is a dependency whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports whether a long-lived connection is up.
type ConnChecker interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Search      *usecases.SearchService
	Stashpoints *usecases.StashpointService
	Audit       *usecases.AuditService

	// Readiness probes; nil means not configured.
	DB    Pinger
	Cache Pinger
	NATS  ConnChecker

	Version string
}
