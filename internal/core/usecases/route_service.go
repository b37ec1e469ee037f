package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
	"github.com/samirrijal/pedalnav/internal/pkg/telemetry"
)

// substitutes lists, per requested type, the types tried in order when the
// requested one is missing from a result set.
var substitutes = map[domain.RouteType][]domain.RouteType{
	domain.RouteSafest:   {domain.RouteSafest, domain.RouteShortest, domain.RouteFastest},
	domain.RouteFastest:  {domain.RouteFastest, domain.RouteShortest, domain.RouteSafest},
	domain.RouteShortest: {domain.RouteShortest, domain.RouteFastest, domain.RouteSafest},
}

// RouteService orchestrates route calculation and labels the candidates.
// The routing algorithm itself lives behind ports.RoutingProvider.
type RouteService struct {
	provider ports.RoutingProvider
	logger   *slog.Logger
}

// NewRouteService creates a new RouteService.
func NewRouteService(provider ports.RoutingProvider, logger *slog.Logger) *RouteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteService{provider: provider, logger: logger}
}

// CalculateRoutes returns the candidate routes between start and end in the
// provider's order. The result is never nil. "No route" is an empty result
// with a nil error; a provider failure is an empty result with an error
// wrapping domain.ErrUnavailable.
func (s *RouteService) CalculateRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteResult, error) {
	if err := start.Validate(); err != nil {
		return []domain.RouteResult{}, fmt.Errorf("start: %w", err)
	}
	if err := end.Validate(); err != nil {
		return []domain.RouteResult{}, fmt.Errorf("end: %w", err)
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanCalculateRoutes)
	defer span.End()

	began := time.Now()
	raw, err := s.provider.CalculateRoutes(ctx, start, end)
	metrics.RouteCalcDuration.Observe(time.Since(began).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			metrics.RouteRequests.WithLabelValues("empty").Inc()
			span.SetAttributes(attribute.Int("routes.count", 0))
			return []domain.RouteResult{}, nil
		}
		metrics.RouteRequests.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrUnavailable) {
			return []domain.RouteResult{}, fmt.Errorf("calculate routes: %w", err)
		}
		return []domain.RouteResult{}, fmt.Errorf("calculate routes: %w: %w", domain.ErrUnavailable, err)
	}

	routes := s.label(raw)
	span.SetAttributes(attribute.Int("routes.count", len(routes)))
	if len(routes) == 0 {
		metrics.RouteRequests.WithLabelValues("empty").Inc()
	} else {
		metrics.RouteRequests.WithLabelValues("ok").Inc()
	}
	return routes, nil
}

// label drops malformed results and assigns the first unused type, in
// Fastest, Safest, Shortest order, to results the provider left untyped.
// Untyped results left over once every type is taken are dropped. The
// provider's ordering is preserved.
func (s *RouteService) label(raw []domain.RouteResult) []domain.RouteResult {
	routes := make([]domain.RouteResult, 0, len(raw))
	used := make(map[domain.RouteType]bool, len(raw))
	for i, r := range raw {
		if err := r.Validate(); err != nil {
			s.logger.Warn("dropping malformed route", "index", i, "error", err)
			continue
		}
		if r.Type != "" {
			used[r.Type] = true
		}
		routes = append(routes, r)
	}

	labeled := routes[:0]
	for i, r := range routes {
		if r.Type == "" {
			for _, t := range domain.RouteTypes {
				if !used[t] {
					r.Type = t
					used[t] = true
					break
				}
			}
		}
		if r.Type == "" {
			s.logger.Warn("dropping unlabeled route", "index", i, "distance_km", r.DistanceKm)
			continue
		}
		labeled = append(labeled, r)
	}
	return labeled
}

// RouteFor picks the route of the wanted type, substituting the next best
// available type when it is absent.
func RouteFor(routes []domain.RouteResult, want domain.RouteType) (domain.RouteResult, bool) {
	chain, ok := substitutes[want]
	if !ok {
		return domain.RouteResult{}, false
	}
	for _, t := range chain {
		for _, r := range routes {
			if r.Type == t {
				return r, true
			}
		}
	}
	return domain.RouteResult{}, false
}
