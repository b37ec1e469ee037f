package usecases_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

func newController(t *testing.T) (*usecases.NavigationController, *usecases.BreadcrumbTracker) {
	t.Helper()
	tr := newTracker()
	return usecases.NewNavigationController("s-1", usecases.NavigationConfig{}, tr), tr
}

func twoCandidates() []domain.RouteResult {
	fastest := straightRoute(domain.RouteFastest, bilbao, 5000)
	fastest.DurationMin = 15
	safest := straightRoute(domain.RouteSafest, bilbao, 5800)
	safest.DistanceKm, safest.DurationMin = 5.8, 20
	return []domain.RouteResult{fastest, safest}
}

func TestNavigation_SelectSafestStartsNavigating(t *testing.T) {
	c, _ := newController(t)

	require.NoError(t, c.PreviewRoutes(twoCandidates()))
	assert.Equal(t, domain.ModePreviewing, c.Mode())
	assert.Len(t, c.State().Candidates, 2)

	route, err := c.SelectRoute(domain.RouteSafest)
	require.NoError(t, err)
	assert.Equal(t, domain.RouteSafest, route.Type)

	st := c.State()
	assert.Equal(t, domain.ModeNavigating, st.Mode)
	require.NotNil(t, st.ActiveRoute)
	assert.Equal(t, domain.RouteSafest, st.ActiveRoute.Type)
	assert.Equal(t, 5.8, st.ActiveRoute.DistanceKm)
	assert.Empty(t, st.Candidates, "selecting clears the other candidates")
	assert.False(t, st.HasArrived)
}

func TestNavigation_SingleCandidateStillPreviews(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.PreviewRoutes(twoCandidates()[:1]))
	assert.Equal(t, domain.ModePreviewing, c.Mode())
}

func TestNavigation_EmptyPreviewKeepsState(t *testing.T) {
	c, _ := newController(t)
	assert.ErrorIs(t, c.PreviewRoutes(nil), domain.ErrNoRoute)
	assert.Equal(t, domain.ModeIdle, c.Mode())

	require.NoError(t, c.PreviewRoutes(twoCandidates()))
	assert.ErrorIs(t, c.PreviewRoutes([]domain.RouteResult{}), domain.ErrNoRoute)
	assert.Equal(t, domain.ModePreviewing, c.Mode())
	assert.Len(t, c.State().Candidates, 2)
}

func TestNavigation_SelectWithoutPreview(t *testing.T) {
	c, _ := newController(t)
	_, err := c.SelectRoute(domain.RouteFastest)
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
	assert.Equal(t, domain.ModeIdle, c.Mode())
}

func TestNavigation_StartWhileNavigatingRejected(t *testing.T) {
	c, _ := newController(t)
	first := straightRoute(domain.RouteFastest, bilbao, 1000)
	require.NoError(t, c.StartNavigation(first))

	err := c.StartNavigation(straightRoute(domain.RouteSafest, bilbao, 2000))
	assert.ErrorIs(t, err, domain.ErrAlreadyNavigating)
	assert.Equal(t, domain.RouteFastest, c.State().ActiveRoute.Type)

	assert.ErrorIs(t, c.PreviewRoutes(twoCandidates()), domain.ErrAlreadyNavigating)
	assert.Equal(t, domain.ModeNavigating, c.Mode())
}

func TestNavigation_StartRejectsEmptyRoute(t *testing.T) {
	c, _ := newController(t)
	err := c.StartNavigation(domain.RouteResult{Points: []domain.Coordinate{bilbao}})
	assert.ErrorIs(t, err, domain.ErrEmptyRoute)
	assert.Equal(t, domain.ModeIdle, c.Mode())
}

func TestNavigation_StartDistanceFromLastKnownPosition(t *testing.T) {
	c, _ := newController(t)
	route := straightRoute(domain.RouteFastest, bilbao, 1000)

	require.NoError(t, c.ObservePosition(offset(bilbao, 400, 0)))
	require.NoError(t, c.StartNavigation(route))

	st := c.State()
	assert.InDelta(t, 600, st.DistanceRemainingMeters, 0.5)
	assert.Equal(t, 1, st.NearestRemainingPointIndex)
}

func TestNavigation_StartDistanceFromOriginWhenUnknown(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.StartNavigation(straightRoute(domain.RouteFastest, bilbao, 1000)))
	assert.InDelta(t, 1000, c.State().DistanceRemainingMeters, 0.5)
}

func TestNavigation_ArrivalFiresExactlyOnce(t *testing.T) {
	c, _ := newController(t)
	route := straightRoute(domain.RouteFastest, bilbao, 1000)
	require.NoError(t, c.StartNavigation(route))

	p, err := c.OnLocationUpdate(fixAt(offset(bilbao, 500, 0), 0))
	require.NoError(t, err)
	assert.False(t, p.Arrived)
	assert.False(t, c.State().HasArrived)

	p, err = c.OnLocationUpdate(fixAt(offset(route.Destination(), -15, 0), 10*time.Second))
	require.NoError(t, err)
	assert.True(t, p.Arrived)
	assert.InDelta(t, 15, p.DistanceRemainingMeters, 0.1)

	st := c.State()
	assert.True(t, st.HasArrived)
	assert.Equal(t, domain.ModeArrived, st.Mode)

	// Standing at the destination must not produce a second arrival.
	for i := 0; i < 3; i++ {
		p, err = c.OnLocationUpdate(fixAt(route.Destination(), time.Duration(11+i)*time.Second))
		assert.ErrorIs(t, err, domain.ErrNotNavigating)
		assert.False(t, p.Arrived)
	}
	assert.True(t, c.State().HasArrived)
}

func TestNavigation_UpdateOutsideNavigation(t *testing.T) {
	c, _ := newController(t)
	_, err := c.OnLocationUpdate(fixAt(bilbao, 0))
	assert.ErrorIs(t, err, domain.ErrNotNavigating)
	assert.Equal(t, domain.ModeIdle, c.Mode())
}

func TestNavigation_StrictModePanics(t *testing.T) {
	c := usecases.NewNavigationController("s-1", usecases.NavigationConfig{Strict: true}, nil)
	assert.Panics(t, func() { _, _ = c.OnLocationUpdate(fixAt(bilbao, 0)) })
}

func TestNavigation_InvalidFixDoesNotTransition(t *testing.T) {
	c, _ := newController(t)
	route := straightRoute(domain.RouteFastest, bilbao, 10)
	require.NoError(t, c.StartNavigation(route))
	before := c.State()

	_, err := c.OnLocationUpdate(fixAt(domain.Coordinate{Lat: 200, Lon: 0}, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
	assert.Equal(t, before, c.State())
}

func TestNavigation_NearestIndexIsMonotonic(t *testing.T) {
	c, _ := newController(t)
	require.NoError(t, c.StartNavigation(straightRoute(domain.RouteFastest, bilbao, 1000)))

	_, err := c.OnLocationUpdate(fixAt(offset(bilbao, 520, 0), 0))
	require.NoError(t, err)
	assert.Equal(t, 1, c.State().NearestRemainingPointIndex)

	// Drifting back towards the start never rewinds progress.
	_, err = c.OnLocationUpdate(fixAt(offset(bilbao, 10, 0), time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, c.State().NearestRemainingPointIndex)
}

func TestNavigation_StopAlwaysLeavesIdle(t *testing.T) {
	setups := map[string]func(c *usecases.NavigationController){
		"idle":       func(c *usecases.NavigationController) {},
		"previewing": func(c *usecases.NavigationController) { _ = c.PreviewRoutes(twoCandidates()) },
		"navigating": func(c *usecases.NavigationController) {
			_ = c.StartNavigation(straightRoute(domain.RouteFastest, bilbao, 1000))
		},
		"arrived": func(c *usecases.NavigationController) {
			r := straightRoute(domain.RouteFastest, bilbao, 1000)
			_ = c.StartNavigation(r)
			_, _ = c.OnLocationUpdate(fixAt(r.Destination(), 0))
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			c, tr := newController(t)
			tr.AddFix(fixAt(bilbao, 0))
			tr.AddFix(fixAt(offset(bilbao, 30, 0), time.Second))
			setup(c)

			c.StopNavigation()
			c.StopNavigation()

			st := c.State()
			assert.Equal(t, domain.ModeIdle, st.Mode)
			assert.Nil(t, st.ActiveRoute)
			assert.Empty(t, st.Candidates)
			assert.Zero(t, st.DistanceRemainingMeters)
			assert.Zero(t, st.NearestRemainingPointIndex)
			assert.False(t, st.HasArrived)
			if name != "idle" {
				assert.Zero(t, tr.Len(), "breadcrumbs are cleared on stop")
			}
		})
	}
}

func TestNavigation_StopIdempotentAndBumpsGeneration(t *testing.T) {
	c, _ := newController(t)
	assert.False(t, c.StopNavigation())
	assert.Equal(t, uint64(0), c.Generation())

	require.NoError(t, c.StartNavigation(straightRoute(domain.RouteFastest, bilbao, 1000)))
	assert.True(t, c.StopNavigation())
	assert.Equal(t, uint64(1), c.Generation())
	assert.False(t, c.StopNavigation())
	assert.Equal(t, uint64(1), c.Generation())
}

func TestNavigation_RestartBeginsClean(t *testing.T) {
	c, tr := newController(t)
	r := straightRoute(domain.RouteFastest, bilbao, 1000)
	require.NoError(t, c.StartNavigation(r))
	_, _ = c.OnLocationUpdate(fixAt(r.Destination(), 0))
	require.True(t, c.State().HasArrived)

	c.StopNavigation()
	require.NoError(t, c.StartNavigation(r))

	st := c.State()
	assert.False(t, st.HasArrived)
	assert.Equal(t, domain.ModeNavigating, st.Mode)
	assert.Zero(t, tr.Len())
}
