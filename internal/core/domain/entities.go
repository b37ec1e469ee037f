package domain

import (
	"fmt"
	"time"
)

// LocationFix is a single GPS sample produced by a location source.
type LocationFix struct {
	Coordinate
	Speed     *float64  `json:"speed,omitempty"`    // m/s
	Heading   *float64  `json:"heading,omitempty"`  // degrees, [0, 360)
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	Timestamp time.Time `json:"timestamp"`
}

// SpeedKmh returns the fix speed in km/h, if reported.
func (f LocationFix) SpeedKmh() (float64, bool) {
	if f.Speed == nil || *f.Speed < 0 {
		return 0, false
	}
	return *f.Speed * 3.6, true
}

// Validate rejects fixes with a malformed coordinate or no timestamp.
func (f LocationFix) Validate() error {
	if err := f.Coordinate.Validate(); err != nil {
		return err
	}
	if f.Timestamp.IsZero() {
		return fmt.Errorf("%w: fix has no timestamp", ErrInvalidCoordinate)
	}
	return nil
}

// Breadcrumb is a retained historical fix used to derive travel direction.
type Breadcrumb struct {
	Coordinate
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
}

// RouteType labels a candidate route.
type RouteType string

const (
	RouteFastest  RouteType = "fastest"
	RouteSafest   RouteType = "safest"
	RouteShortest RouteType = "shortest"
)

// RouteTypes lists the labels in the order untyped provider results receive them.
var RouteTypes = []RouteType{RouteFastest, RouteSafest, RouteShortest}

// IsValid reports whether t is one of the known route types.
func (t RouteType) IsValid() bool {
	switch t {
	case RouteFastest, RouteSafest, RouteShortest:
		return true
	}
	return false
}

// ParseRouteType parses a case-sensitive route type label.
func ParseRouteType(s string) (RouteType, error) {
	t := RouteType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRouteType, s)
	}
	return t, nil
}

// PathDetail tags the point range [From, To] of a route with a value,
// e.g. Key "surface" Value "asphalt" or Key "street_name" Value "Gran Vía".
type PathDetail struct {
	Key   string `json:"key"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Value string `json:"value"`
}

// RouteResult is a computed route. Immutable once returned by a routing provider.
type RouteResult struct {
	Points      []Coordinate `json:"points"`
	DistanceKm  float64      `json:"distance_km"`
	DurationMin float64      `json:"duration_min"`
	Type        RouteType    `json:"type"`
	Details     []PathDetail `json:"details,omitempty"`
}

// Validate checks the route geometry.
func (r RouteResult) Validate() error {
	if len(r.Points) < 2 {
		return ErrEmptyRoute
	}
	for i, p := range r.Points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	if r.Type != "" && !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownRouteType, r.Type)
	}
	return nil
}

// Origin returns the first point of the route.
func (r RouteResult) Origin() Coordinate { return r.Points[0] }

// Destination returns the terminal point of the route.
func (r RouteResult) Destination() Coordinate { return r.Points[len(r.Points)-1] }

// DetailsFor returns the path details with the given key.
func (r RouteResult) DetailsFor(key string) []PathDetail {
	var out []PathDetail
	for _, d := range r.Details {
		if d.Key == key {
			out = append(out, d)
		}
	}
	return out
}

// NavigationMode is the navigation state machine mode.
type NavigationMode string

const (
	ModeIdle       NavigationMode = "idle"
	ModePreviewing NavigationMode = "previewing"
	ModeNavigating NavigationMode = "navigating"
	ModeArrived    NavigationMode = "arrived"
)

// FollowsRoute reports whether the camera should track travel direction.
func (m NavigationMode) FollowsRoute() bool {
	return m == ModeNavigating || m == ModeArrived
}

// NavigationState is owned by a single navigation controller; everyone else
// receives copies.
type NavigationState struct {
	SessionID                  string         `json:"session_id"`
	Mode                       NavigationMode `json:"mode"`
	ActiveRoute                *RouteResult   `json:"active_route,omitempty"`
	Candidates                 []RouteResult  `json:"candidates,omitempty"`
	DistanceRemainingMeters    float64        `json:"distance_remaining_meters"`
	NearestRemainingPointIndex int            `json:"nearest_remaining_point_index"`
	HasArrived                 bool           `json:"has_arrived"`
}

// Clone returns a deep copy safe to hand to readers.
func (s NavigationState) Clone() NavigationState {
	out := s
	if s.ActiveRoute != nil {
		r := *s.ActiveRoute
		out.ActiveRoute = &r
	}
	if s.Candidates != nil {
		out.Candidates = append([]RouteResult(nil), s.Candidates...)
	}
	return out
}

// CameraIntent is the single logical camera target produced per tick.
type CameraIntent struct {
	Center          Coordinate `json:"center"`
	Zoom            float64    `json:"zoom"`
	Bearing         float64    `json:"bearing"`
	OverrideBearing bool       `json:"override_bearing"`
	Pitch           float64    `json:"pitch"`
	ShouldRecenter  bool       `json:"should_recenter"`
}

// RouteStatus distinguishes "no route" from "still computing".
type RouteStatus string

const (
	RouteStatusNone      RouteStatus = ""
	RouteStatusComputing RouteStatus = "computing"
	RouteStatusReady     RouteStatus = "ready"
	RouteStatusEmpty     RouteStatus = "empty"
	RouteStatusFailed    RouteStatus = "failed"
)

// GPSStatus reflects the location source health.
type GPSStatus string

const (
	GPSStatusUnknown          GPSStatus = ""
	GPSStatusOK               GPSStatus = "ok"
	GPSStatusUnavailable      GPSStatus = "unavailable"
	GPSStatusPermissionDenied GPSStatus = "permission_denied"
)

// NavigationEventType enumerates published navigation events.
type NavigationEventType string

const (
	EventModeChanged NavigationEventType = "mode_changed"
	EventArrived     NavigationEventType = "arrived"
	EventRouteFailed NavigationEventType = "route_failed"
	EventGPSStatus   NavigationEventType = "gps_status"
)

// NavigationEvent is published whenever a session changes in a way other
// services care about.
type NavigationEvent struct {
	SessionID string              `json:"session_id"`
	Type      NavigationEventType `json:"type"`
	Mode      NavigationMode      `json:"mode,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	Position  *Coordinate         `json:"position,omitempty"`
	Time      time.Time           `json:"time"`
}
