package ports

import (
	"context"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// PointOfInterestStore reads OSM and community points of interest.
type PointOfInterestStore interface {
	FetchPOIs(ctx context.Context, bounds domain.BoundingBox) (domain.FeatureSet, error)
}

// WarningStore reads rider-reported hazards.
type WarningStore interface {
	FetchWarnings(ctx context.Context, bounds domain.BoundingBox) ([]domain.Warning, error)
}

// ContributionStore records rider-contributed features.
type ContributionStore interface {
	AddCommunityPOI(ctx context.Context, poi domain.CommunityPOI) (string, error)
	AddWarning(ctx context.Context, w domain.Warning) (string, error)
}
