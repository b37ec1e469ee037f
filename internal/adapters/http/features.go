package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

const maxNearbyRadius = 5000.0

// ContributionRequest is the body of a community POI or warning report.
type ContributionRequest struct {
	Location    *domain.Coordinate `json:"location"`
	Name        string             `json:"name,omitempty"`
	Category    string             `json:"category"`
	Severity    string             `json:"severity,omitempty"`
	Description string             `json:"description,omitempty"`
	CreatedBy   string             `json:"created_by,omitempty"`
}

func (r ContributionRequest) validate() string {
	switch {
	case r.Location == nil:
		return "location is required"
	case r.Category == "":
		return "category is required"
	case len(r.Description) > 1000:
		return "description too long (max 1000 characters)"
	}
	return ""
}

// FeaturesHandler returns the features inside ?south=&west=&north=&east=.
// With ?format=geojson the response is a FeatureCollection.
func FeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds := domain.BoundingBox{
			South: c.QueryFloat("south", 0),
			West:  c.QueryFloat("west", 0),
			North: c.QueryFloat("north", 0),
			East:  c.QueryFloat("east", 0),
		}
		return writeFeatures(c, deps, bounds)
	}
}

// NearbyFeaturesHandler returns the features within ?radius= meters of
// ?lat=&lon=, using the enclosing bounding box.
func NearbyFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		center := domain.Coordinate{Lat: c.QueryFloat("lat", 0), Lon: c.QueryFloat("lon", 0)}
		if err := center.Validate(); err != nil {
			return errFrom(c, err)
		}
		radius := c.QueryFloat("radius", 500)
		if radius <= 0 || radius > maxNearbyRadius {
			return errBadRequest(c, "radius must be between 1 and 5000 meters")
		}
		return writeFeatures(c, deps, domain.BoundsAround(center, radius))
	}
}

func writeFeatures(c *fiber.Ctx, deps *Dependencies, bounds domain.BoundingBox) error {
	if deps.Features == nil {
		return errNotImplemented(c, "no feature source configured")
	}
	set, err := deps.Features.FetchFeatures(c.UserContext(), bounds)
	if err != nil {
		return errFrom(c, err)
	}
	if c.Query("format") == "geojson" {
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.JSON(mapjson.FeaturesToGeoJSON(set))
	}
	return c.JSON(set)
}

// AddCommunityPOIHandler stores a rider-contributed point of interest.
func AddCommunityPOIHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Contributions == nil {
			return errNotImplemented(c, "contributions are not enabled")
		}
		var req ContributionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid payload")
		}
		if msg := req.validate(); msg != "" {
			return errBadRequest(c, msg)
		}
		if req.Name == "" {
			return errBadRequest(c, "name is required")
		}
		if err := req.Location.Validate(); err != nil {
			return errFrom(c, err)
		}
		id, err := deps.Contributions.AddCommunityPOI(c.UserContext(), domain.CommunityPOI{
			Name:        req.Name,
			Location:    *req.Location,
			Category:    req.Category,
			Description: req.Description,
			CreatedBy:   req.CreatedBy,
		})
		if err != nil {
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}

// AddWarningHandler stores a rider-reported hazard.
func AddWarningHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Contributions == nil {
			return errNotImplemented(c, "contributions are not enabled")
		}
		var req ContributionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid payload")
		}
		if msg := req.validate(); msg != "" {
			return errBadRequest(c, msg)
		}
		if err := req.Location.Validate(); err != nil {
			return errFrom(c, err)
		}
		id, err := deps.Contributions.AddWarning(c.UserContext(), domain.Warning{
			Location:    *req.Location,
			Category:    req.Category,
			Severity:    req.Severity,
			Description: req.Description,
		})
		if err != nil {
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}
