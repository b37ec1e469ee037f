package usecases

import (
	"fmt"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// DefaultArrivalThresholdMeters is the distance to the terminal point under
// which the rider has arrived.
const DefaultArrivalThresholdMeters = 20.0

// NavigationConfig tunes the navigation state machine.
type NavigationConfig struct {
	ArrivalThresholdMeters float64
	// Strict makes caller miswiring (a location update outside navigation)
	// panic instead of returning ErrNotNavigating.
	Strict bool
}

// Progress is the outcome of one location update during navigation.
type Progress struct {
	DistanceRemainingMeters    float64
	NearestRemainingPointIndex int
	// Arrived is true only on the update that crossed the arrival threshold.
	Arrived bool
}

// NavigationController owns the NavigationState of one session:
//
//	Idle -> Previewing -> Navigating -> Arrived -> Idle
//
// Stop is valid from every non-idle mode. Not safe for concurrent use.
type NavigationController struct {
	cfg     NavigationConfig
	tracker *BreadcrumbTracker

	state        domain.NavigationState
	lastPosition *domain.Coordinate
	generation   uint64
}

// NewNavigationController creates an idle controller. tracker is reset
// whenever navigation stops.
func NewNavigationController(sessionID string, cfg NavigationConfig, tracker *BreadcrumbTracker) *NavigationController {
	if cfg.ArrivalThresholdMeters <= 0 {
		cfg.ArrivalThresholdMeters = DefaultArrivalThresholdMeters
	}
	return &NavigationController{
		cfg:     cfg,
		tracker: tracker,
		state:   domain.NavigationState{SessionID: sessionID, Mode: domain.ModeIdle},
	}
}

// State returns a copy of the current state.
func (c *NavigationController) State() domain.NavigationState { return c.state.Clone() }

// Mode returns the current mode.
func (c *NavigationController) Mode() domain.NavigationMode { return c.state.Mode }

// Generation increases every time navigation is torn down. Work started
// under an older generation must not be applied.
func (c *NavigationController) Generation() uint64 { return c.generation }

// LastPosition returns the last known rider position, if any.
func (c *NavigationController) LastPosition() (domain.Coordinate, bool) {
	if c.lastPosition == nil {
		return domain.Coordinate{}, false
	}
	return *c.lastPosition, true
}

// ObservePosition records the rider position outside of navigation.
func (c *NavigationController) ObservePosition(pos domain.Coordinate) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	c.lastPosition = &pos
	return nil
}

// PreviewRoutes shows candidates before the rider commits to one. Any
// non-empty set moves the controller to Previewing; an empty set leaves the
// state unchanged and returns ErrNoRoute.
func (c *NavigationController) PreviewRoutes(routes []domain.RouteResult) error {
	if c.state.Mode == domain.ModeNavigating {
		return alreadyNavigating("preview routes")
	}
	if len(routes) == 0 {
		return domain.ErrNoRoute
	}
	for i, r := range routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}

	if c.state.Mode == domain.ModeArrived {
		c.reset()
	}
	c.state.Candidates = append([]domain.RouteResult(nil), routes...)
	c.state.Mode = domain.ModePreviewing
	return nil
}

// SelectRoute promotes the candidate of the wanted type, or its substitute,
// and starts navigating it. Other candidates are discarded.
func (c *NavigationController) SelectRoute(want domain.RouteType) (domain.RouteResult, error) {
	if c.state.Mode != domain.ModePreviewing || len(c.state.Candidates) == 0 {
		return domain.RouteResult{}, domain.ErrNoCandidates
	}
	route, ok := RouteFor(c.state.Candidates, want)
	if !ok {
		return domain.RouteResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownRouteType, want)
	}
	if err := c.StartNavigation(route); err != nil {
		return domain.RouteResult{}, err
	}
	return route, nil
}

// StartNavigation begins following route. Remaining distance is measured
// from the last known position, or from the route origin when none is known.
func (c *NavigationController) StartNavigation(route domain.RouteResult) error {
	if c.state.Mode == domain.ModeNavigating {
		return alreadyNavigating("start navigation")
	}
	if err := route.Validate(); err != nil {
		return err
	}

	from := route.Origin()
	if c.lastPosition != nil {
		from = *c.lastPosition
	}

	c.state.ActiveRoute = &route
	c.state.Candidates = nil
	c.state.Mode = domain.ModeNavigating
	c.state.HasArrived = false
	c.state.DistanceRemainingMeters = from.DistanceTo(route.Destination())
	c.state.NearestRemainingPointIndex = c.nearestFrom(from, 0)
	return nil
}

// OnLocationUpdate advances progress along the active route.
//
// Remaining distance is the straight line to the terminal point; it is not
// snapped to the path and under-estimates on winding routes. The arrival
// transition fires at most once per navigation.
func (c *NavigationController) OnLocationUpdate(fix domain.LocationFix) (Progress, error) {
	if err := fix.Coordinate.Validate(); err != nil {
		return Progress{}, err
	}
	if c.state.Mode != domain.ModeNavigating {
		if c.cfg.Strict {
			panic(fmt.Sprintf("navigation: location update in mode %q", c.state.Mode))
		}
		return Progress{}, domain.ErrNotNavigating
	}

	pos := fix.Coordinate
	c.lastPosition = &pos

	route := c.state.ActiveRoute
	c.state.DistanceRemainingMeters = pos.DistanceTo(route.Destination())
	c.state.NearestRemainingPointIndex = c.nearestFrom(pos, c.state.NearestRemainingPointIndex)

	p := Progress{
		DistanceRemainingMeters:    c.state.DistanceRemainingMeters,
		NearestRemainingPointIndex: c.state.NearestRemainingPointIndex,
	}
	if !c.state.HasArrived && c.state.DistanceRemainingMeters < c.cfg.ArrivalThresholdMeters {
		c.state.HasArrived = true
		c.state.Mode = domain.ModeArrived
		p.Arrived = true
	}
	return p, nil
}

// nearestFrom finds the route point closest to pos at or after index from,
// so progress never moves backwards.
func (c *NavigationController) nearestFrom(pos domain.Coordinate, from int) int {
	points := c.state.ActiveRoute.Points
	best, bestDist := from, pos.DistanceTo(points[from])
	for i := from + 1; i < len(points); i++ {
		if d := pos.DistanceTo(points[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// StopNavigation returns to Idle from any mode, clearing the route,
// candidates, distances and breadcrumbs. It reports whether anything changed;
// stopping while idle is a no-op.
func (c *NavigationController) StopNavigation() bool {
	if c.state.Mode == domain.ModeIdle {
		return false
	}
	c.reset()
	return true
}

func (c *NavigationController) reset() {
	c.state = domain.NavigationState{SessionID: c.state.SessionID, Mode: domain.ModeIdle}
	if c.tracker != nil {
		c.tracker.Reset()
	}
	c.generation++
}

func alreadyNavigating(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrAlreadyNavigating)
}
