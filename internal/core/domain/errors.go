package domain

import "errors"

// Input errors: rejected at the boundary, never cause a state transition.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidBounds     = errors.New("invalid bounding box")
	ErrEmptyRoute        = errors.New("route must contain at least two points")
	ErrUnknownRouteType  = errors.New("unknown route type")
)

// Collaborator availability. Surfaced to the user, never fatal.
var (
	ErrUnavailable        = errors.New("collaborator unavailable")
	ErrLocationPermission = errors.New("location permission denied")
	ErrNoRoute            = errors.New("no route available")
)

// State errors.
var (
	ErrAlreadyNavigating = errors.New("navigation already in progress")
	ErrNotNavigating     = errors.New("not navigating")
	ErrNoCandidates      = errors.New("no candidate routes to select from")
	ErrStaleResult       = errors.New("stale result discarded")
	ErrUnknownSession    = errors.New("unknown session")
	ErrSessionClosed     = errors.New("session closed")
)
