package usecases

import (
	"context"
	"log/slog"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
)

// ContributionService records rider contributions and makes them visible to
// the next feature fetch. It implements ports.ContributionStore.
type ContributionService struct {
	store    ports.ContributionStore
	features *MapDataService
	logger   *slog.Logger
}

// NewContributionService creates a new ContributionService. features may be nil.
func NewContributionService(store ports.ContributionStore, features *MapDataService, logger *slog.Logger) *ContributionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContributionService{store: store, features: features, logger: logger}
}

// AddCommunityPOI stores p and returns its id.
func (s *ContributionService) AddCommunityPOI(ctx context.Context, p domain.CommunityPOI) (string, error) {
	id, err := s.store.AddCommunityPOI(ctx, p)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx)
	return id, nil
}

// AddWarning stores w and returns its id.
func (s *ContributionService) AddWarning(ctx context.Context, w domain.Warning) (string, error) {
	id, err := s.store.AddWarning(ctx, w)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx)
	return id, nil
}

// invalidate failures only delay visibility until the cached windows expire.
func (s *ContributionService) invalidate(ctx context.Context) {
	if s.features == nil {
		return
	}
	if err := s.features.Invalidate(ctx); err != nil {
		s.logger.Warn("stale feature windows remain cached", "error", err)
	}
}
