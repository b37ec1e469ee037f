// Package memory provides an in-process feature store backed by an R-tree,
// used when no database is configured and by the replay tooling.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/mapjson"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	// Points are indexed as tiny rectangles.
	pointTolerance = 1e-9
)

type item struct {
	feature domain.MapFeature
	rect    *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect { return it.rect }

// Store implements ports.PointOfInterestStore and ports.WarningStore.
type Store struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	now  func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
		now:  time.Now,
	}
}

// LoadFile seeds a new store from a GeoJSON FeatureCollection file.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	set, err := mapjson.FeaturesFromGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s := NewStore()
	s.Insert(set)
	return s, nil
}

// Insert indexes every feature in set.
func (s *Store) Insert(set domain.FeatureSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range set.All() {
		s.insertLocked(f)
	}
}

func (s *Store) insertLocked(f domain.MapFeature) {
	rect := rtreego.Point{f.Latitude(), f.Longitude()}.ToRect(pointTolerance)
	s.tree.Insert(&item{feature: f, rect: rect})
}

// Len returns the number of indexed features.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Size()
}

// search returns the features inside b, ordered by id for stable output.
func (s *Store) search(b domain.BoundingBox) ([]domain.MapFeature, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.South, b.West}, []float64{b.Height(), b.Width()})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBounds, err)
	}

	s.mu.RLock()
	hits := s.tree.SearchIntersect(rect)
	s.mu.RUnlock()

	out := make([]domain.MapFeature, 0, len(hits))
	for _, h := range hits {
		it, ok := h.(*item)
		if !ok {
			continue
		}
		// The tolerance rectangle may poke across the edge.
		if b.ContainsPoint(domain.Coordinate{Lat: it.feature.Latitude(), Lon: it.feature.Longitude()}) {
			out = append(out, it.feature)
		}
	}
	sort.Slice(out, func(i, j int) bool { return featureID(out[i]) < featureID(out[j]) })
	return out, nil
}

// FetchPOIs returns the OSM and community points of interest inside b.
func (s *Store) FetchPOIs(ctx context.Context, b domain.BoundingBox) (domain.FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeatureSet{}, err
	}
	hits, err := s.search(b)
	if err != nil {
		return domain.FeatureSet{}, err
	}
	set := domain.FeatureSet{Bounds: b}
	for _, f := range hits {
		switch v := f.(type) {
		case domain.OSMPOI:
			set.OSM = append(set.OSM, v)
		case domain.CommunityPOI:
			set.Community = append(set.Community, v)
		}
	}
	return set, nil
}

// FetchWarnings returns the hazards inside b.
func (s *Store) FetchWarnings(ctx context.Context, b domain.BoundingBox) ([]domain.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := s.search(b)
	if err != nil {
		return nil, err
	}
	var out []domain.Warning
	for _, f := range hits {
		if w, ok := f.(domain.Warning); ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// AddCommunityPOI indexes a rider-contributed point of interest.
func (s *Store) AddCommunityPOI(ctx context.Context, p domain.CommunityPOI) (string, error) {
	if err := p.Location.Validate(); err != nil {
		return "", err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.insertLocked(p)
	s.mu.Unlock()
	return p.ID, nil
}

// AddWarning indexes a rider-reported hazard.
func (s *Store) AddWarning(ctx context.Context, w domain.Warning) (string, error) {
	if err := w.Location.Validate(); err != nil {
		return "", err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.ReportedAt.IsZero() {
		w.ReportedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.insertLocked(w)
	s.mu.Unlock()
	return w.ID, nil
}

func featureID(f domain.MapFeature) string {
	switch v := f.(type) {
	case domain.OSMPOI:
		return v.ID
	case domain.CommunityPOI:
		return v.ID
	case domain.Warning:
		return v.ID
	}
	return ""
}
