package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
	"github.com/samirrijal/pedalnav/internal/pkg/telemetry"
)

// DefaultFeatureCacheTTL is how long, in seconds, a fetched window is cached.
const DefaultFeatureCacheTTL = 120

// featureGenerationKey holds the current cache generation. Every window key
// embeds it, so bumping it orphans all cached windows at once.
const (
	featureGenerationKey = "features:gen"
	featureGenerationTTL = 24 * 60 * 60
)

// MapDataService loads the points of interest and warnings for a window.
type MapDataService struct {
	pois     ports.PointOfInterestStore
	warnings ports.WarningStore
	cache    ports.CacheService
	cacheTTL int
}

// NewMapDataService creates a new MapDataService. warnings and cache may be nil.
func NewMapDataService(pois ports.PointOfInterestStore, warnings ports.WarningStore, cache ports.CacheService, cacheTTL int) *MapDataService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultFeatureCacheTTL
	}
	return &MapDataService{pois: pois, warnings: warnings, cache: cache, cacheTTL: cacheTTL}
}

// FetchFeatures returns every feature inside bounds. POIs and warnings are
// fetched concurrently; if either store fails the whole fetch fails so the
// caller keeps its previous window.
func (s *MapDataService) FetchFeatures(ctx context.Context, bounds domain.BoundingBox) (domain.FeatureSet, error) {
	if err := bounds.Validate(); err != nil {
		return domain.FeatureSet{}, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFetchFeatures)
	defer span.End()

	cacheKey := s.cacheKey(ctx, bounds)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var set domain.FeatureSet
			if err := json.Unmarshal(data, &set); err == nil {
				metrics.CacheHits.WithLabelValues("features").Inc()
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return set, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("features").Inc()
	}

	var (
		set      domain.FeatureSet
		warnings []domain.Warning
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctx, span := telemetry.Tracer().Start(gctx, telemetry.SpanFetchPOIs)
		defer span.End()
		var err error
		if set, err = s.pois.FetchPOIs(ctx, bounds); err != nil {
			return fmt.Errorf("fetch pois: %w", err)
		}
		return nil
	})
	if s.warnings != nil {
		g.Go(func() error {
			ctx, span := telemetry.Tracer().Start(gctx, telemetry.SpanFetchWarnings)
			defer span.End()
			var err error
			if warnings, err = s.warnings.FetchWarnings(ctx, bounds); err != nil {
				return fmt.Errorf("fetch warnings: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.FeatureSet{}, err
	}

	set.Bounds = bounds
	if len(warnings) > 0 {
		set.Warnings = append(set.Warnings, warnings...)
	}
	span.SetAttributes(attribute.Int("features.count", set.Len()))

	if s.cache != nil {
		if data, err := json.Marshal(set); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return set, nil
}

func (s *MapDataService) cacheKey(ctx context.Context, bounds domain.BoundingBox) string {
	gen := "0"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, featureGenerationKey); err == nil && len(data) > 0 {
			gen = string(data)
		}
	}
	return fmt.Sprintf("features:%s:%.4f:%.4f:%.4f:%.4f", gen, bounds.South, bounds.West, bounds.North, bounds.East)
}

// Invalidate drops every cached window so the next fetch reads the stores.
func (s *MapDataService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Set(ctx, featureGenerationKey, []byte(uuid.NewString()), featureGenerationTTL); err != nil {
		return fmt.Errorf("invalidate feature cache: %w", err)
	}
	return nil
}
