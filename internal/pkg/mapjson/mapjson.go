// Package mapjson converts map features and routes to and from GeoJSON.
package mapjson

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// Reserved property names. Any other string property of an OSM feature is
// kept as a tag.
const (
	propKind        = "kind"
	propID          = "id"
	propName        = "name"
	propCategory    = "category"
	propSeverity    = "severity"
	propDescription = "description"
	propCreatedBy   = "created_by"
	propTime        = "time"
)

// FeaturesFromGeoJSON parses a FeatureCollection of points. Features without
// a "kind" property are treated as OSM points of interest.
func FeaturesFromGeoJSON(data []byte) (domain.FeatureSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("parse geojson: %w", err)
	}

	var set domain.FeatureSet
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return domain.FeatureSet{}, fmt.Errorf("feature %d: geometry %s is not a point", i, f.Geometry.GeoJSONType())
		}
		loc := domain.Coordinate{Lat: pt.Lat(), Lon: pt.Lon()}
		if err := loc.Validate(); err != nil {
			return domain.FeatureSet{}, fmt.Errorf("feature %d: %w", i, err)
		}

		props := f.Properties
		id := props.MustString(propID, "")
		if id == "" && f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		if id == "" {
			id = fmt.Sprintf("feature-%d", i)
		}
		at := parseTime(props.MustString(propTime, ""))

		switch domain.FeatureKind(props.MustString(propKind, string(domain.KindOSMPOI))) {
		case domain.KindCommunityPOI:
			set.Community = append(set.Community, domain.CommunityPOI{
				ID:          id,
				Name:        props.MustString(propName, ""),
				Location:    loc,
				Category:    props.MustString(propCategory, ""),
				Description: props.MustString(propDescription, ""),
				CreatedBy:   props.MustString(propCreatedBy, ""),
				CreatedAt:   at,
			})
		case domain.KindWarning:
			set.Warnings = append(set.Warnings, domain.Warning{
				ID:          id,
				Location:    loc,
				Category:    props.MustString(propCategory, ""),
				Severity:    props.MustString(propSeverity, ""),
				Description: props.MustString(propDescription, ""),
				ReportedAt:  at,
			})
		case domain.KindOSMPOI:
			set.OSM = append(set.OSM, domain.OSMPOI{
				ID:       id,
				Name:     props.MustString(propName, ""),
				Location: loc,
				Category: props.MustString(propCategory, ""),
				Tags:     tags(props),
			})
		default:
			return domain.FeatureSet{}, fmt.Errorf("feature %d: unknown kind %q", i, props.MustString(propKind, ""))
		}
	}
	return set, nil
}

// FeaturesToGeoJSON renders a feature set as a point FeatureCollection.
func FeaturesToGeoJSON(set domain.FeatureSet) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range set.OSM {
		f := pointFeature(p)
		f.Properties[propID] = p.ID
		f.Properties[propName] = p.Name
		for k, v := range p.Tags {
			if _, reserved := f.Properties[k]; !reserved {
				f.Properties[k] = v
			}
		}
		fc.Append(f)
	}
	for _, p := range set.Community {
		f := pointFeature(p)
		f.Properties[propID] = p.ID
		f.Properties[propName] = p.Name
		setIfNotEmpty(f.Properties, propDescription, p.Description)
		setIfNotEmpty(f.Properties, propCreatedBy, p.CreatedBy)
		if !p.CreatedAt.IsZero() {
			f.Properties[propTime] = p.CreatedAt.UTC().Format(time.RFC3339)
		}
		fc.Append(f)
	}
	for _, w := range set.Warnings {
		f := pointFeature(w)
		f.Properties[propID] = w.ID
		setIfNotEmpty(f.Properties, propSeverity, w.Severity)
		setIfNotEmpty(f.Properties, propDescription, w.Description)
		if !w.ReportedAt.IsZero() {
			f.Properties[propTime] = w.ReportedAt.UTC().Format(time.RFC3339)
		}
		fc.Append(f)
	}
	return fc
}

// RoutesToGeoJSON renders routes as LineString features carrying their
// type, distance and duration.
func RoutesToGeoJSON(routes []domain.RouteResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range routes {
		f := geojson.NewFeature(LineString(r.Points))
		f.Properties["type"] = string(r.Type)
		f.Properties["distance_km"] = r.DistanceKm
		f.Properties["duration_min"] = r.DurationMin
		fc.Append(f)
	}
	return fc
}

// LineString converts coordinates to an orb line in lon/lat order.
func LineString(points []domain.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls
}

func pointFeature(m domain.MapFeature) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{m.Longitude(), m.Latitude()})
	f.Properties[propKind] = string(m.Kind())
	f.Properties[propCategory] = m.Type()
	return f
}

func tags(props geojson.Properties) map[string]string {
	var out map[string]string
	for k, v := range props {
		switch k {
		case propKind, propID, propName, propCategory, propSeverity, propDescription, propCreatedBy, propTime:
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = s
	}
	return out
}

func setIfNotEmpty(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
