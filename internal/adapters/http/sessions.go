package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID          string                `json:"id"`
	Mode        domain.NavigationMode `json:"mode"`
	RouteStatus domain.RouteStatus    `json:"route_status,omitempty"`
	GPSStatus   domain.GPSStatus      `json:"gps_status,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// RouteRequest asks for candidate routes. Start defaults to the last fix.
type RouteRequest struct {
	Start *domain.Coordinate `json:"start,omitempty"`
	End   *domain.Coordinate `json:"end"`
}

// NavigationRequest starts navigation, either on a previewed candidate
// (Type) or on a caller-supplied route (Route).
type NavigationRequest struct {
	Type  string              `json:"type,omitempty"`
	Route *domain.RouteResult `json:"route,omitempty"`
}

// RoutesResponse reports the route state of a session.
type RoutesResponse struct {
	Status     domain.RouteStatus    `json:"status,omitempty"`
	Error      string                `json:"error,omitempty"`
	Mode       domain.NavigationMode `json:"mode"`
	Candidates []domain.RouteResult  `json:"candidates"`
	Active     *domain.RouteResult   `json:"active,omitempty"`
}

// session resolves the :id path parameter.
func session(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	return deps.Sessions.Get(c.Params("id"))
}

// ListSessionsHandler lists live sessions with offset/limit pagination.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids := deps.Sessions.IDs()

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		total := len(ids)
		page := pageOf(ids, offset, limit)
		out := make([]SessionSummary, 0, len(page))
		for _, id := range page {
			s, err := deps.Sessions.Get(id)
			if err != nil {
				continue // removed since IDs()
			}
			snap := s.Snapshot()
			out = append(out, SessionSummary{
				ID:          id,
				Mode:        snap.State.Mode,
				RouteStatus: snap.RouteStatus,
				GPSStatus:   snap.GPSStatus,
				UpdatedAt:   snap.UpdatedAt,
			})
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: out, Pagination: pg})
	}
}

// CreateSessionHandler starts a new idle session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := deps.Sessions.Create()
		LoggerFromCtx(c.UserContext()).Info("session created", "session_id", s.ID())
		c.Location("/v1/sessions/" + s.ID())
		return c.Status(fiber.StatusCreated).JSON(s.Snapshot())
	}
}

// GetSessionHandler returns the latest session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(s.Snapshot())
	}
}

// DeleteSessionHandler ends a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Remove(c.Params("id")); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SubmitFixesHandler accepts one fix object or an array of fixes. Fixes
// without a timestamp are stamped with the server clock.
func SubmitFixesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}

		var fixes []domain.LocationFix
		body := bytes.TrimSpace(c.Body())
		if len(body) > 0 && body[0] == '[' {
			err = json.Unmarshal(body, &fixes)
		} else {
			var fix domain.LocationFix
			err = json.Unmarshal(body, &fix)
			fixes = append(fixes, fix)
		}
		if err != nil {
			return errBadRequest(c, "invalid fix payload: "+err.Error())
		}

		now := time.Now().UTC()
		for i := range fixes {
			if fixes[i].Timestamp.IsZero() {
				fixes[i].Timestamp = now
			}
			if err := s.SubmitFix(c.UserContext(), fixes[i]); err != nil {
				return errFrom(c, err)
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": len(fixes)})
	}
}

// SetViewportHandler reports the visible map extent.
func SetViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		var bounds domain.BoundingBox
		if err := c.BodyParser(&bounds); err != nil {
			return errBadRequest(c, "invalid bounds payload")
		}
		if err := s.SetViewport(c.UserContext(), bounds); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

// RequestRoutesHandler starts computing candidate routes.
func RequestRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		var req RouteRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid route request")
		}
		if req.End == nil {
			return errBadRequest(c, "end is required")
		}
		if err := s.RequestRoutes(c.UserContext(), req.Start, *req.End); err != nil {
			return errFrom(c, err)
		}
		c.Location("/v1/sessions/" + s.ID() + "/routes")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": domain.RouteStatusComputing})
	}
}

// GetRoutesHandler returns the candidates and the active route.
func GetRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		snap := s.Snapshot()
		candidates := snap.State.Candidates
		if candidates == nil {
			candidates = []domain.RouteResult{}
		}
		return c.JSON(RoutesResponse{
			Status:     snap.RouteStatus,
			Error:      snap.RouteError,
			Mode:       snap.State.Mode,
			Candidates: candidates,
			Active:     snap.State.ActiveRoute,
		})
	}
}

// RoutesGeoJSONHandler renders the active route, or the candidates while
// previewing, as a GeoJSON FeatureCollection.
func RoutesGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		snap := s.Snapshot()
		routes := snap.State.Candidates
		if snap.State.ActiveRoute != nil {
			routes = []domain.RouteResult{*snap.State.ActiveRoute}
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.JSON(mapjson.RoutesToGeoJSON(routes))
	}
}

// StartNavigationHandler selects a previewed candidate or follows the route
// in the request body.
func StartNavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		var req NavigationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid navigation request")
		}

		ctx := c.UserContext()
		switch {
		case req.Route != nil:
			err = s.StartNavigation(ctx, *req.Route)
		case req.Type != "":
			var t domain.RouteType
			if t, err = domain.ParseRouteType(req.Type); err == nil {
				_, err = s.SelectRoute(ctx, t)
			}
		default:
			return errBadRequest(c, "type or route is required")
		}
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(s.Snapshot())
	}
}

// StopNavigationHandler returns the session to idle.
func StopNavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errFrom(c, err)
		}
		if err := s.StopNavigation(c.UserContext()); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
