package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// --- Mock stores ---

type mockPOIStore struct {
	fetchFn func(ctx context.Context, b domain.BoundingBox) (domain.FeatureSet, error)
}

func (m *mockPOIStore) FetchPOIs(ctx context.Context, b domain.BoundingBox) (domain.FeatureSet, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return domain.FeatureSet{}, nil
}

type mockWarningStore struct {
	fetchFn func(ctx context.Context, b domain.BoundingBox) ([]domain.Warning, error)
}

func (m *mockWarningStore) FetchWarnings(ctx context.Context, b domain.BoundingBox) ([]domain.Warning, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return nil, nil
}

// --- In-memory CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Recording MapRenderer / EventPublisher ---

type recordingRenderer struct {
	mu       sync.Mutex
	cameras  []domain.CameraIntent
	routes   [][]domain.RouteResult
	features []domain.FeatureSet
}

func (r *recordingRenderer) ApplyCamera(ctx context.Context, sessionID string, intent domain.CameraIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras = append(r.cameras, intent)
	return nil
}

func (r *recordingRenderer) ShowRoutes(ctx context.Context, sessionID string, routes []domain.RouteResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, routes)
	return nil
}

func (r *recordingRenderer) ShowFeatures(ctx context.Context, sessionID string, fs domain.FeatureSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features = append(r.features, fs)
	return nil
}

func (r *recordingRenderer) cameraCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cameras)
}

func (r *recordingRenderer) lastCamera() domain.CameraIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cameras[len(r.cameras)-1]
}

func (r *recordingRenderer) routeCalls() [][]domain.RouteResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]domain.RouteResult(nil), r.routes...)
}

func (r *recordingRenderer) featureCalls() []domain.FeatureSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.FeatureSet(nil), r.features...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.NavigationEvent
}

func (p *recordingPublisher) PublishNavigationEvent(ctx context.Context, e domain.NavigationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(typ domain.NavigationEventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type mockContributionStore struct {
	addPOIFn     func(ctx context.Context, p domain.CommunityPOI) (string, error)
	addWarningFn func(ctx context.Context, w domain.Warning) (string, error)
}

func (m *mockContributionStore) AddCommunityPOI(ctx context.Context, p domain.CommunityPOI) (string, error) {
	if m.addPOIFn != nil {
		return m.addPOIFn(ctx, p)
	}
	return "c-new", nil
}

func (m *mockContributionStore) AddWarning(ctx context.Context, w domain.Warning) (string, error) {
	if m.addWarningFn != nil {
		return m.addWarningFn(ctx, w)
	}
	return "w-new", nil
}
