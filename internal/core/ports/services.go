package ports

import (
	"context"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// LocationSource supplies location fixes in timestamp order.
//
// Stream blocks until ctx is cancelled or the source fails. Silence means
// "no fix yet". Failures wrap domain.ErrLocationPermission or
// domain.ErrUnavailable so callers can tell them apart.
type LocationSource interface {
	Stream(ctx context.Context, fixes chan<- domain.LocationFix) error
}

// RoutingProvider computes zero to three candidate routes between two points.
type RoutingProvider interface {
	CalculateRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteResult, error)
}

// MapRenderer applies camera intents and draws overlays.
type MapRenderer interface {
	ApplyCamera(ctx context.Context, sessionID string, intent domain.CameraIntent) error
	ShowRoutes(ctx context.Context, sessionID string, routes []domain.RouteResult) error
	ShowFeatures(ctx context.Context, sessionID string, features domain.FeatureSet) error
}

// EventPublisher publishes navigation events to a message broker.
type EventPublisher interface {
	PublishNavigationEvent(ctx context.Context, event domain.NavigationEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
