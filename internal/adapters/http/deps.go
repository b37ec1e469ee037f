package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

// Pinger is a collaborator that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions      *usecases.SessionManager
	Features      *usecases.MapDataService
	Contributions ports.ContributionStore
	NATS          *nats.Conn
	DB            Pinger
	Cache         Pinger
	Routing       Pinger
}
