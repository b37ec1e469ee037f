// Package valhalla implements ports.RoutingProvider on top of a Valhalla
// routing service, requesting one bicycle costing variant per route type.
package valhalla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/telemetry"
)

// Error codes Valhalla uses when the locations cannot be connected.
var noRouteCodes = map[int]bool{
	170: true, // locations are in unconnected regions
	171: true, // no suitable edges near location
	442: true, // no path could be found for input
	443: true, // exceeded max iterations
}

// costingOptions returns the bicycle costing tuned for each route type.
func costingOptions(t domain.RouteType) map[string]any {
	switch t {
	case domain.RouteSafest:
		return map[string]any{
			"bicycle_type":       "Hybrid",
			"use_roads":          0.0,
			"use_living_streets": 0.8,
			"avoid_bad_surfaces": 0.5,
		}
	case domain.RouteShortest:
		return map[string]any{"shortest": true}
	default:
		return map[string]any{
			"bicycle_type": "Road",
			"use_roads":    0.75,
			"use_hills":    0.5,
		}
	}
}

type location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
}

type routeRequest struct {
	Locations      []location                `json:"locations"`
	Costing        string                    `json:"costing"`
	CostingOptions map[string]map[string]any `json:"costing_options"`
	Units          string                    `json:"units"`
	DirectionsType string                    `json:"directions_type"`
}

type maneuver struct {
	StreetNames     []string `json:"street_names"`
	BeginShapeIndex int      `json:"begin_shape_index"`
	EndShapeIndex   int      `json:"end_shape_index"`
	TravelType      string   `json:"travel_type"`
}

type leg struct {
	Shape     string     `json:"shape"`
	Maneuvers []maneuver `json:"maneuvers"`
}

type routeResponse struct {
	Trip struct {
		Legs    []leg `json:"legs"`
		Summary struct {
			Time   float64 `json:"time"`   // seconds
			Length float64 `json:"length"` // kilometers
		} `json:"summary"`
	} `json:"trip"`
}

type errorResponse struct {
	ErrorCode int    `json:"error_code"`
	Error     string `json:"error"`
}

// Client implements ports.RoutingProvider.
type Client struct {
	baseURL  string
	http     *http.Client
	variants []domain.RouteType
	logger   *slog.Logger
}

// New creates a Valhalla client. variants selects the route types requested
// and their order; empty means all three.
func New(baseURL string, timeout time.Duration, variants []domain.RouteType, logger *slog.Logger) *Client {
	if len(variants) == 0 {
		variants = domain.RouteTypes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		variants: variants,
		logger:   logger,
	}
}

// CalculateRoutes requests every variant concurrently. Variants that fail are
// skipped; the call fails only when none succeeds.
func (c *Client) CalculateRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteResult, error) {
	results := make([]*domain.RouteResult, len(c.variants))
	errs := make([]error, len(c.variants))

	var wg sync.WaitGroup
	for i, t := range c.variants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.route(ctx, t, start, end)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = &r
		}()
	}
	wg.Wait()

	routes := make([]domain.RouteResult, 0, len(c.variants))
	for i, r := range results {
		if r != nil {
			routes = append(routes, *r)
			continue
		}
		if !errors.Is(errs[i], domain.ErrNoRoute) {
			c.logger.Warn("valhalla variant failed", "type", c.variants[i], "error", errs[i])
		}
	}
	if len(routes) > 0 {
		return routes, nil
	}

	for _, err := range errs {
		if err != nil && !errors.Is(err, domain.ErrNoRoute) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
		}
	}
	return nil, domain.ErrNoRoute
}

func (c *Client) route(ctx context.Context, t domain.RouteType, start, end domain.Coordinate) (domain.RouteResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRoutingVariant)
	defer span.End()
	span.SetAttributes(attribute.String("route.type", string(t)))

	body, err := json.Marshal(routeRequest{
		Locations: []location{
			{Lat: start.Lat, Lon: start.Lon, Type: "break"},
			{Lat: end.Lat, Lon: end.Lon, Type: "break"},
		},
		Costing:        "bicycle",
		CostingOptions: map[string]map[string]any{"bicycle": costingOptions(t)},
		Units:          "kilometers",
		DirectionsType: "maneuvers",
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/route", bytes.NewReader(body))
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("valhalla %s: %w", t, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && noRouteCodes[e.ErrorCode] {
			return domain.RouteResult{}, fmt.Errorf("valhalla %s: %w: %s", t, domain.ErrNoRoute, e.Error)
		}
		return domain.RouteResult{}, fmt.Errorf("valhalla %s: status %d: %s", t, resp.StatusCode, truncate(data, 200))
	}

	var rr routeResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode response: %w", err)
	}
	return toRouteResult(t, rr)
}

func toRouteResult(t domain.RouteType, rr routeResponse) (domain.RouteResult, error) {
	result := domain.RouteResult{
		Type:        t,
		DistanceKm:  rr.Trip.Summary.Length,
		DurationMin: rr.Trip.Summary.Time / 60,
	}

	for li, l := range rr.Trip.Legs {
		pts, err := DecodePolyline(l.Shape, Precision6)
		if err != nil {
			return domain.RouteResult{}, fmt.Errorf("leg %d: %w", li, err)
		}
		offset := len(result.Points)
		// Consecutive legs share their joining point.
		if li > 0 && len(pts) > 0 {
			pts = pts[1:]
			offset--
		}
		result.Points = append(result.Points, pts...)

		for _, m := range l.Maneuvers {
			if len(m.StreetNames) > 0 {
				result.Details = append(result.Details, domain.PathDetail{
					Key:   "street_name",
					From:  offset + m.BeginShapeIndex,
					To:    offset + m.EndShapeIndex,
					Value: strings.Join(m.StreetNames, " / "),
				})
			}
			if m.TravelType != "" {
				result.Details = append(result.Details, domain.PathDetail{
					Key:   "travel_type",
					From:  offset + m.BeginShapeIndex,
					To:    offset + m.EndShapeIndex,
					Value: m.TravelType,
				})
			}
		}
	}

	if len(result.Points) < 2 {
		return domain.RouteResult{}, fmt.Errorf("valhalla %s: %w", t, domain.ErrEmptyRoute)
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Ping checks that the routing service answers its status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: valhalla status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	return nil
}
