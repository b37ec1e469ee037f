package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samirrijal/pedalnav/internal/adapters/gpx"
	"github.com/samirrijal/pedalnav/internal/adapters/memory"
	"github.com/samirrijal/pedalnav/internal/adapters/valhalla"
	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
	"github.com/samirrijal/pedalnav/internal/pkg/logging"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

var (
	gpxFile      string
	destination  string
	routeType    string
	featuresFile string
	speedFactor  float64
	valhallaURL  string
	routesOut    string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a GPX track through a navigation session",
	Long: `Plans a route from the first track point to the destination, starts
navigating the chosen route type and feeds the recorded fixes into the
session, printing progress as it goes.

Without --valhalla the track itself is used as the only candidate route.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&gpxFile, "gpx", "", "GPX track to replay (required)")
	replayCmd.Flags().StringVar(&destination, "to", "", "Destination as lat,lon (default: last track point)")
	replayCmd.Flags().StringVar(&routeType, "route-type", string(domain.RouteSafest), "Route type to navigate (fastest, safest, shortest)")
	replayCmd.Flags().StringVar(&featuresFile, "features", "", "GeoJSON FeatureCollection seeding the feature index")
	replayCmd.Flags().Float64VarP(&speedFactor, "speed", "s", 10, "Replay speed multiplier; 0 replays without pauses")
	replayCmd.Flags().StringVar(&valhallaURL, "valhalla", "", "Valhalla base URL for route planning")
	replayCmd.Flags().StringVar(&routesOut, "routes-out", "", "Write the navigated route as GeoJSON to this file")
	_ = replayCmd.MarkFlagRequired("gpx")
}

// trackRoute serves the recorded track as the single candidate route.
type trackRoute struct {
	track *gpx.Track
}

func (r trackRoute) CalculateRoutes(ctx context.Context, start, end domain.Coordinate) ([]domain.RouteResult, error) {
	points := make([]domain.Coordinate, len(r.track.Fixes))
	for i, f := range r.track.Fixes {
		points[i] = f.Coordinate
	}
	return []domain.RouteResult{{
		Points:      points,
		DistanceKm:  r.track.DistanceMeters / 1000,
		DurationMin: r.track.Duration().Minutes(),
	}}, nil
}

func parseCoordinate(s string) (domain.Coordinate, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: want lat,lon, got %q", domain.ErrInvalidCoordinate, s)
	}
	var c domain.Coordinate
	var err error
	if c.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return c, fmt.Errorf("%w: latitude: %v", domain.ErrInvalidCoordinate, err)
	}
	if c.Lon, err = strconv.ParseFloat(strings.TrimSpace(lon), 64); err != nil {
		return c, fmt.Errorf("%w: longitude: %v", domain.ErrInvalidCoordinate, err)
	}
	return c, c.Validate()
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := logging.New(os.Stderr, logLevel, logFormat)

	want, err := domain.ParseRouteType(routeType)
	if err != nil {
		return err
	}
	track, err := gpx.ParseFile(gpxFile)
	if err != nil {
		return err
	}
	end := track.End()
	if destination != "" {
		if end, err = parseCoordinate(destination); err != nil {
			return err
		}
	}

	store := memory.NewStore()
	if featuresFile != "" {
		if store, err = memory.LoadFile(featuresFile); err != nil {
			return err
		}
	}

	var provider ports.RoutingProvider = trackRoute{track: track}
	if valhallaURL != "" {
		provider = valhalla.New(valhallaURL, 15*time.Second, domain.RouteTypes, logger)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	manager := usecases.NewSessionManager(usecases.DefaultSessionConfig(), usecases.SessionDeps{
		Routes:   usecases.NewRouteService(provider, logger),
		Features: usecases.NewMapDataService(store, store, nil, 0),
		Logger:   logger,
	})
	defer manager.Shutdown(context.Background())

	s := manager.Create()
	logger = logger.With("session_id", s.ID())
	logger.Info("replaying track", "name", track.Name, "fixes", len(track.Fixes),
		"distance_m", int(track.DistanceMeters), "duration", track.Duration())

	start := track.Start()
	if err := s.SetViewport(ctx, domain.BoundsAround(start, 1000)); err != nil {
		return err
	}
	if err := s.RequestRoutes(ctx, &start, end); err != nil {
		return err
	}
	snap, err := awaitRoutes(ctx, s)
	if err != nil {
		return err
	}
	for _, r := range snap.State.Candidates {
		fmt.Printf("candidate %-8s %6.2f km %6.1f min %4d points\n", r.Type, r.DistanceKm, r.DurationMin, len(r.Points))
	}

	route, err := s.SelectRoute(ctx, want)
	if err != nil {
		return fmt.Errorf("select %s: %w", want, err)
	}
	fmt.Printf("navigating %s route (%.2f km)\n", route.Type, route.DistanceKm)

	done := make(chan error, 1)
	go func() { done <- s.FollowLocation(ctx, gpx.NewReplayer(track, speedFactor)) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for running := true; running; {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
			running = false
		case <-ticker.C:
			printProgress(s.Snapshot())
		}
	}

	// Let the session drain the last fixes before reporting.
	time.Sleep(100 * time.Millisecond)
	final := s.Snapshot()
	printProgress(final)
	if final.State.Mode == domain.ModeArrived {
		fmt.Println("arrived")
	} else {
		fmt.Printf("track ended %.0f m from the destination\n", final.State.DistanceRemainingMeters)
	}

	if routesOut != "" {
		return writeRoutes(routesOut, route)
	}
	return nil
}

// awaitRoutes polls the session until route computation settles.
func awaitRoutes(ctx context.Context, s *usecases.Session) (usecases.Snapshot, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := s.Snapshot()
		switch snap.RouteStatus {
		case domain.RouteStatusReady:
			return snap, nil
		case domain.RouteStatusEmpty:
			return snap, domain.ErrNoRoute
		case domain.RouteStatusFailed:
			return snap, fmt.Errorf("%w: %s", domain.ErrUnavailable, snap.RouteError)
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printProgress(snap usecases.Snapshot) {
	line := fmt.Sprintf("%-10s remaining %6.0f m  point %4d", snap.State.Mode,
		snap.State.DistanceRemainingMeters, snap.State.NearestRemainingPointIndex)
	if snap.Camera != nil {
		line += fmt.Sprintf("  zoom %.1f  bearing %5.1f  pitch %.0f", snap.Camera.Zoom, snap.Camera.Bearing, snap.Camera.Pitch)
	}
	if snap.FeatureCount > 0 {
		line += fmt.Sprintf("  features %d", snap.FeatureCount)
	}
	fmt.Println(line)
}

func writeRoutes(path string, route domain.RouteResult) error {
	data, err := json.MarshalIndent(mapjson.RoutesToGeoJSON([]domain.RouteResult{route}), "", "  ")
	if err != nil {
		return fmt.Errorf("encode routes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
