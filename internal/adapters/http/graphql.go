package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

// buildSchema creates the read-only GraphQL schema over sessions and map
// features.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"type":         &graphql.Field{Type: graphql.String},
			"distance_km":  &graphql.Field{Type: graphql.Float},
			"duration_min": &graphql.Field{Type: graphql.Float},
			"points":       &graphql.Field{Type: graphql.NewList(coordinateType)},
			"point_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch r := p.Source.(type) {
					case domain.RouteResult:
						return len(r.Points), nil
					case *domain.RouteResult:
						return len(r.Points), nil
					}
					return 0, nil
				},
			},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NavigationState",
		Fields: graphql.Fields{
			"mode":                          &graphql.Field{Type: graphql.String},
			"active_route":                  &graphql.Field{Type: routeType},
			"candidates":                    &graphql.Field{Type: graphql.NewList(routeType)},
			"distance_remaining_meters":     &graphql.Field{Type: graphql.Float},
			"nearest_remaining_point_index": &graphql.Field{Type: graphql.Int},
			"has_arrived":                   &graphql.Field{Type: graphql.Boolean},
		},
	})

	cameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Camera",
		Fields: graphql.Fields{
			"center":           &graphql.Field{Type: coordinateType},
			"zoom":             &graphql.Field{Type: graphql.Float},
			"bearing":          &graphql.Field{Type: graphql.Float},
			"override_bearing": &graphql.Field{Type: graphql.Boolean},
			"pitch":            &graphql.Field{Type: graphql.Float},
			"should_recenter":  &graphql.Field{Type: graphql.Boolean},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"session_id":     &graphql.Field{Type: graphql.String},
			"state":          &graphql.Field{Type: stateType},
			"camera":         &graphql.Field{Type: cameraType},
			"travel_bearing": &graphql.Field{Type: graphql.Float},
			"route_status":   &graphql.Field{Type: graphql.String},
			"route_error":    &graphql.Field{Type: graphql.String},
			"gps_status":     &graphql.Field{Type: graphql.String},
			"feature_count":  &graphql.Field{Type: graphql.Int},
			"position": &graphql.Field{
				Type: coordinateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap := p.Source.(usecases.Snapshot)
					if snap.LastFix == nil {
						return nil, nil
					}
					return snap.LastFix.Coordinate, nil
				},
			},
			"updated_at": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(usecases.Snapshot).UpdatedAt.UTC().Format(time.RFC3339Nano), nil
				},
			},
		},
	})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feature",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"kind":        &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"severity":    &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lon":         &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Latest snapshot of a navigation session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return s.Snapshot(), nil
				},
			},
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "Snapshots of every live session",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []usecases.Snapshot
					for _, id := range deps.Sessions.IDs() {
						if s, err := deps.Sessions.Get(id); err == nil {
							out = append(out, s.Snapshot())
						}
					}
					return out, nil
				},
			},
			"features": &graphql.Field{
				Type:        graphql.NewList(featureType),
				Description: "Points of interest and warnings inside a bounding box",
				Args: graphql.FieldConfigArgument{
					"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Features == nil {
						return nil, nil
					}
					set, err := deps.Features.FetchFeatures(p.Context, domain.BoundingBox{
						South: p.Args["south"].(float64),
						West:  p.Args["west"].(float64),
						North: p.Args["north"].(float64),
						East:  p.Args["east"].(float64),
					})
					if err != nil {
						return nil, err
					}
					return featureRows(set), nil
				},
			},
			"zoomForSpeed": &graphql.Field{
				Type:        graphql.Float,
				Description: "Camera zoom used at a travel speed in km/h",
				Args: graphql.FieldConfigArgument{
					"kmh": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.ZoomForSpeed(usecases.DefaultZoomBands, p.Args["kmh"].(float64)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// featureRows flattens the tagged feature variants into GraphQL rows.
func featureRows(set domain.FeatureSet) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, set.Len())
	row := func(f domain.MapFeature, id, name, severity, description string) {
		rows = append(rows, map[string]interface{}{
			"id":          id,
			"kind":        string(f.Kind()),
			"category":    f.Type(),
			"name":        name,
			"severity":    severity,
			"description": description,
			"lat":         f.Latitude(),
			"lon":         f.Longitude(),
		})
	}
	for _, p := range set.OSM {
		row(p, p.ID, p.Name, "", "")
	}
	for _, p := range set.Community {
		row(p, p.ID, p.Name, "", p.Description)
	}
	for _, w := range set.Warnings {
		row(w, w.ID, "", w.Severity, w.Description)
	}
	return rows
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
