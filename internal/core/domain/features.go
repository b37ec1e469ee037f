package domain

import "time"

// FeatureKind tags the closed set of map feature variants.
type FeatureKind string

const (
	KindOSMPOI       FeatureKind = "osm_poi"
	KindCommunityPOI FeatureKind = "community_poi"
	KindWarning      FeatureKind = "warning"
)

// MapFeature is the capability shared by everything drawn as a marker.
type MapFeature interface {
	Latitude() float64
	Longitude() float64
	// Type is the feature category, e.g. "bicycle_parking" or "roadworks".
	Type() string
	Kind() FeatureKind
}

// OSMPOI is a point of interest imported from OpenStreetMap.
type OSMPOI struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Location Coordinate        `json:"location"`
	Category string            `json:"category"`
	Tags     map[string]string `json:"tags,omitempty"`
}

func (p OSMPOI) Latitude() float64  { return p.Location.Lat }
func (p OSMPOI) Longitude() float64 { return p.Location.Lon }
func (p OSMPOI) Type() string       { return p.Category }
func (p OSMPOI) Kind() FeatureKind  { return KindOSMPOI }

// CommunityPOI is a point of interest contributed by riders.
type CommunityPOI struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Location    Coordinate `json:"location"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (p CommunityPOI) Latitude() float64  { return p.Location.Lat }
func (p CommunityPOI) Longitude() float64 { return p.Location.Lon }
func (p CommunityPOI) Type() string       { return p.Category }
func (p CommunityPOI) Kind() FeatureKind  { return KindCommunityPOI }

// Warning is a rider-reported hazard.
type Warning struct {
	ID          string     `json:"id"`
	Location    Coordinate `json:"location"`
	Category    string     `json:"category"`
	Severity    string     `json:"severity,omitempty"`
	Description string     `json:"description,omitempty"`
	ReportedAt  time.Time  `json:"reported_at"`
}

func (w Warning) Latitude() float64  { return w.Location.Lat }
func (w Warning) Longitude() float64 { return w.Location.Lon }
func (w Warning) Type() string       { return w.Category }
func (w Warning) Kind() FeatureKind  { return KindWarning }

// FeatureSet groups the features loaded for one fetch window.
type FeatureSet struct {
	Bounds    BoundingBox    `json:"bounds"`
	OSM       []OSMPOI       `json:"osm"`
	Community []CommunityPOI `json:"community"`
	Warnings  []Warning      `json:"warnings"`
}

// All flattens the set into its shared capability.
func (s FeatureSet) All() []MapFeature {
	out := make([]MapFeature, 0, s.Len())
	for _, p := range s.OSM {
		out = append(out, p)
	}
	for _, p := range s.Community {
		out = append(out, p)
	}
	for _, w := range s.Warnings {
		out = append(out, w)
	}
	return out
}

// Len returns the total feature count.
func (s FeatureSet) Len() int {
	return len(s.OSM) + len(s.Community) + len(s.Warnings)
}
