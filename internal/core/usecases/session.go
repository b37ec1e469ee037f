package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/pkg/debounce"
	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
)

// SessionConfig tunes a navigation session.
type SessionConfig struct {
	Tracker        TrackerConfig
	Navigation     NavigationConfig
	Camera         CameraConfig
	ReloadDebounce time.Duration
	TriggerShrink  float64
	EventBuffer    int
	OutboxBuffer   int
	RouteTimeout   time.Duration
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
}

// DefaultSessionConfig returns the standard session tuning.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Tracker:        DefaultTrackerConfig(),
		Navigation:     NavigationConfig{ArrivalThresholdMeters: DefaultArrivalThresholdMeters},
		Camera:         DefaultCameraConfig(),
		ReloadDebounce: time.Second,
		TriggerShrink:  DefaultTriggerShrink,
		EventBuffer:    64,
		OutboxBuffer:   128,
		RouteTimeout:   30 * time.Second,
		FetchTimeout:   10 * time.Second,
		RenderTimeout:  2 * time.Second,
	}
}

// SessionDeps are the collaborators of a session. Only Routes is required.
type SessionDeps struct {
	Routes    *RouteService
	Features  *MapDataService
	Renderer  ports.MapRenderer
	Publisher ports.EventPublisher
	Logger    *slog.Logger
	// Locations, if set, gives the manager a location source to follow for
	// each session it creates.
	Locations func(sessionID string) ports.LocationSource
}

// Snapshot is an immutable view of a session published after every event.
type Snapshot struct {
	SessionID     string                 `json:"session_id"`
	State         domain.NavigationState `json:"state"`
	Camera        *domain.CameraIntent   `json:"camera,omitempty"`
	TravelBearing *float64               `json:"travel_bearing,omitempty"`
	LastFix       *domain.LocationFix    `json:"last_fix,omitempty"`
	RouteStatus   domain.RouteStatus     `json:"route_status,omitempty"`
	RouteError    string                 `json:"route_error,omitempty"`
	GPSStatus     domain.GPSStatus       `json:"gps_status,omitempty"`
	LoadedBounds  *domain.BoundingBox    `json:"loaded_bounds,omitempty"`
	FeatureCount  int                    `json:"feature_count"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Events processed by the session loop.
type (
	fixEvent struct{ fix domain.LocationFix }

	viewportEvent struct{ bounds domain.BoundingBox }

	reloadDueEvent struct{}

	featuresLoadedEvent struct {
		token  string
		window domain.BoundingBox
		set    domain.FeatureSet
		err    error
	}

	routeRequestEvent struct {
		start *domain.Coordinate
		end   domain.Coordinate
		reply chan error
	}

	routesComputedEvent struct {
		token  string
		routes []domain.RouteResult
		err    error
	}

	selectRouteEvent struct {
		want  domain.RouteType
		reply chan selectReply
	}

	selectReply struct {
		route domain.RouteResult
		err   error
	}

	startNavigationEvent struct {
		route domain.RouteResult
		reply chan error
	}

	stopEvent struct{ reply chan error }

	gpsStatusEvent struct {
		status domain.GPSStatus
		detail string
	}
)

type outboxJob struct {
	op string
	fn func(ctx context.Context) error
}

// Session is one rider's navigation engine. A single goroutine (Run) owns
// the controller, tracker, camera and reload policies; every input reaches it
// as an event on one channel and is handled in arrival order. Renderer and
// publisher calls leave through an ordered outbox so the loop never blocks on
// them.
type Session struct {
	id     string
	cfg    SessionConfig
	deps   SessionDeps
	logger *slog.Logger

	events    chan any
	outbox    chan outboxJob
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	snapshot  atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	bgCtx       context.Context
	tracker     *BreadcrumbTracker
	nav         *NavigationController
	camera      *CameraPolicy
	reload      *BoundsReloadPolicy
	debouncer   *debounce.Debouncer
	lastFix     *domain.LocationFix
	pendingView *domain.BoundingBox
	routeToken  string
	fetchToken  string
	routeStatus domain.RouteStatus
	routeErr    string
	gpsStatus   domain.GPSStatus
	features    int
}

// NewSession creates an idle session. Call Run to start processing.
func NewSession(id string, cfg SessionConfig, deps SessionDeps) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultSessionConfig().EventBuffer
	}
	if cfg.OutboxBuffer <= 0 {
		cfg.OutboxBuffer = DefaultSessionConfig().OutboxBuffer
	}
	if cfg.ReloadDebounce <= 0 {
		cfg.ReloadDebounce = time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultSessionConfig().RenderTimeout
	}

	tracker := NewBreadcrumbTracker(cfg.Tracker)
	s := &Session{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.With("session_id", id),
		events:  make(chan any, cfg.EventBuffer),
		outbox:  make(chan outboxJob, cfg.OutboxBuffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		bgCtx:   context.Background(),
		tracker: tracker,
		nav:     NewNavigationController(id, cfg.Navigation, tracker),
		camera:  NewCameraPolicy(cfg.Camera),
		reload:  NewBoundsReloadPolicy(cfg.TriggerShrink),
	}
	s.debouncer = debounce.New(cfg.ReloadDebounce, func() { s.post(reloadDueEvent{}) })
	s.publishSnapshot()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the latest published view of the session.
func (s *Session) Snapshot() Snapshot { return *s.snapshot.Load() }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the session loop. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Run processes events until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s already running", s.id)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.bgCtx = ctx
	outboxDone := make(chan struct{})
	go s.drainOutbox(ctx, outboxDone)

	defer func() {
		s.debouncer.Cancel()
		cancel()
		<-outboxDone
		close(s.done)
		s.logger.Info("session stopped")
	}()

	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev any) {
	// Replies go out after the snapshot so callers observe their own change.
	var respond func()

	switch e := ev.(type) {
	case fixEvent:
		s.onFix(e.fix)
	case viewportEvent:
		s.pendingView = &e.bounds
		s.debouncer.Trigger()
	case reloadDueEvent:
		s.onReloadDue()
	case featuresLoadedEvent:
		s.onFeaturesLoaded(e)
	case routeRequestEvent:
		err := s.onRouteRequest(e)
		respond = func() { e.reply <- err }
	case routesComputedEvent:
		s.onRoutesComputed(e)
	case selectRouteEvent:
		route, err := s.onSelectRoute(e.want)
		respond = func() { e.reply <- selectReply{route: route, err: err} }
	case startNavigationEvent:
		err := s.onStartNavigation(e.route)
		respond = func() { e.reply <- err }
	case stopEvent:
		s.onStop()
		respond = func() { e.reply <- nil }
	case gpsStatusEvent:
		s.setGPSStatus(e.status, e.detail)
	default:
		s.logger.Error("unknown session event", "type", fmt.Sprintf("%T", ev))
	}

	s.publishSnapshot()
	if respond != nil {
		respond()
	}
}

// --- Public API (safe for concurrent use) ---

// SubmitFix validates fix and queues it for processing.
func (s *Session) SubmitFix(ctx context.Context, fix domain.LocationFix) error {
	if err := fix.Validate(); err != nil {
		return err
	}
	return s.enqueue(ctx, fixEvent{fix: fix})
}

// SetViewport reports the visible map extent. Reloads are debounced.
func (s *Session) SetViewport(ctx context.Context, bounds domain.BoundingBox) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	return s.enqueue(ctx, viewportEvent{bounds: bounds})
}

// RequestRoutes starts computing routes to end. A nil start uses the last
// known position. The result arrives asynchronously; watch RouteStatus.
func (s *Session) RequestRoutes(ctx context.Context, start *domain.Coordinate, end domain.Coordinate) error {
	if err := end.Validate(); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if start != nil {
		if err := start.Validate(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	reply := make(chan error, 1)
	if err := s.enqueue(ctx, routeRequestEvent{start: start, end: end, reply: reply}); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// SelectRoute commits to one previewed candidate and starts navigating it.
func (s *Session) SelectRoute(ctx context.Context, want domain.RouteType) (domain.RouteResult, error) {
	reply := make(chan selectReply, 1)
	if err := s.enqueue(ctx, selectRouteEvent{want: want, reply: reply}); err != nil {
		return domain.RouteResult{}, err
	}
	select {
	case r := <-reply:
		return r.route, r.err
	case <-ctx.Done():
		return domain.RouteResult{}, ctx.Err()
	case <-s.done:
		return domain.RouteResult{}, domain.ErrSessionClosed
	}
}

// StartNavigation follows route directly, bypassing preview.
func (s *Session) StartNavigation(ctx context.Context, route domain.RouteResult) error {
	if err := route.Validate(); err != nil {
		return err
	}
	reply := make(chan error, 1)
	if err := s.enqueue(ctx, startNavigationEvent{route: route, reply: reply}); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// StopNavigation returns the session to Idle. It returns once the reset has
// been applied, so a following StartNavigation begins clean.
func (s *Session) StopNavigation(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.enqueue(ctx, stopEvent{reply: reply}); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// ReportLocationError records a location source failure as GPS status.
func (s *Session) ReportLocationError(ctx context.Context, err error) error {
	status := domain.GPSStatusUnavailable
	if errors.Is(err, domain.ErrLocationPermission) {
		status = domain.GPSStatusPermissionDenied
	}
	return s.enqueue(ctx, gpsStatusEvent{status: status, detail: err.Error()})
}

// FollowLocation feeds fixes from src into the session until src stops or
// ctx is cancelled. Source failures are reported as GPS status and returned.
func (s *Session) FollowLocation(ctx context.Context, src ports.LocationSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fixes := make(chan domain.LocationFix, 16)
	errc := make(chan error, 1)
	go func() { errc <- src.Stream(ctx, fixes) }()

	submit := func(fix domain.LocationFix) error {
		err := s.SubmitFix(ctx, fix)
		if errors.Is(err, domain.ErrInvalidCoordinate) {
			s.logger.Warn("dropping invalid fix", "error", err)
			return nil
		}
		return err
	}

	for {
		select {
		case fix := <-fixes:
			if err := submit(fix); err != nil {
				return err
			}
		case err := <-errc:
			// Everything the source sent before returning is still buffered.
			for drained := false; !drained; {
				select {
				case fix := <-fixes:
					if serr := submit(fix); serr != nil {
						return serr
					}
				default:
					drained = true
				}
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				_ = s.ReportLocationError(context.WithoutCancel(ctx), err)
				return fmt.Errorf("location source: %w", err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) enqueue(ctx context.Context, ev any) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrSessionClosed
	case <-s.quit:
		return domain.ErrSessionClosed
	}
}

// post delivers results from background work back to the loop.
func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	case <-s.quit:
	}
}

func (s *Session) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrSessionClosed
	}
}

// --- Event handlers (Run goroutine only) ---

func (s *Session) onFix(fix domain.LocationFix) {
	if s.tracker.AddFix(fix) {
		metrics.FixesProcessed.WithLabelValues("accepted").Inc()
	} else {
		metrics.FixesProcessed.WithLabelValues("filtered").Inc()
	}
	s.lastFix = &fix
	s.setGPSStatus(domain.GPSStatusOK, "")

	if s.nav.Mode() == domain.ModeNavigating {
		p, err := s.nav.OnLocationUpdate(fix)
		if err != nil {
			s.logger.Warn("location update rejected", "error", err)
		} else if p.Arrived {
			metrics.Arrivals.Inc()
			s.logger.Info("arrived at destination", "distance_m", p.DistanceRemainingMeters)
			s.publish(domain.EventArrived, "")
			s.publish(domain.EventModeChanged, string(domain.ModeNavigating))
		}
	} else if err := s.nav.ObservePosition(fix.Coordinate); err != nil {
		s.logger.Warn("position rejected", "error", err)
	}

	s.updateCamera()
}

func (s *Session) onReloadDue() {
	if s.pendingView == nil || s.deps.Features == nil {
		return
	}
	visible := *s.pendingView
	if !s.reload.ShouldReload(visible) {
		metrics.FeatureReloads.WithLabelValues("skipped").Inc()
		return
	}

	window := s.reload.FetchWindow(visible)
	token := uuid.NewString()
	s.fetchToken = token
	s.logger.Debug("reloading map features", "window", window)

	ctx, features, timeout := s.bgCtx, s.deps.Features, s.cfg.FetchTimeout
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		set, err := features.FetchFeatures(ctx, window)
		s.post(featuresLoadedEvent{token: token, window: window, set: set, err: err})
	}()
}

func (s *Session) onFeaturesLoaded(e featuresLoadedEvent) {
	if e.token != s.fetchToken {
		metrics.FeatureReloads.WithLabelValues("stale").Inc()
		return
	}
	s.fetchToken = ""
	if e.err != nil {
		// Keep the previous window so the next pan retries.
		metrics.FeatureReloads.WithLabelValues("failed").Inc()
		s.logger.Warn("map feature reload failed", "error", e.err)
		return
	}

	metrics.FeatureReloads.WithLabelValues("ok").Inc()
	s.reload.MarkLoaded(e.window)
	s.features = e.set.Len()
	if r := s.deps.Renderer; r != nil {
		set := e.set
		s.emit("show_features", func(ctx context.Context) error { return r.ShowFeatures(ctx, s.id, set) })
	}
}

func (s *Session) onRouteRequest(e routeRequestEvent) error {
	if s.nav.Mode() == domain.ModeNavigating {
		return alreadyNavigating("request routes")
	}

	start := e.start
	if start == nil {
		pos, ok := s.nav.LastPosition()
		if !ok {
			return fmt.Errorf("%w: no start given and no fix received yet", domain.ErrInvalidCoordinate)
		}
		start = &pos
	}

	token := uuid.NewString()
	s.routeToken = token
	s.routeStatus = domain.RouteStatusComputing
	s.routeErr = ""

	ctx, routes, timeout, from, to := s.bgCtx, s.deps.Routes, s.cfg.RouteTimeout, *start, e.end
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err := routes.CalculateRoutes(ctx, from, to)
		s.post(routesComputedEvent{token: token, routes: result, err: err})
	}()
	return nil
}

func (s *Session) onRoutesComputed(e routesComputedEvent) {
	if e.token != s.routeToken {
		s.logger.Debug("discarding route result", "error", domain.ErrStaleResult)
		return
	}
	s.routeToken = ""

	if e.err != nil {
		s.routeStatus = domain.RouteStatusFailed
		s.routeErr = e.err.Error()
		s.logger.Warn("route calculation failed", "error", e.err)
		s.publish(domain.EventRouteFailed, e.err.Error())
		return
	}
	if len(e.routes) == 0 {
		s.routeStatus = domain.RouteStatusEmpty
		return
	}

	prev := s.nav.Mode()
	if err := s.nav.PreviewRoutes(e.routes); err != nil {
		s.logger.Warn("cannot preview routes", "error", err)
		if s.nav.Mode() == domain.ModeNavigating {
			s.routeStatus = domain.RouteStatusReady
		} else {
			s.routeStatus = domain.RouteStatusFailed
			s.routeErr = err.Error()
		}
		return
	}
	s.routeStatus = domain.RouteStatusReady
	s.showRoutes(s.nav.State().Candidates)
	s.afterTransition(prev)
}

func (s *Session) onSelectRoute(want domain.RouteType) (domain.RouteResult, error) {
	prev := s.nav.Mode()
	route, err := s.nav.SelectRoute(want)
	if err != nil {
		return domain.RouteResult{}, err
	}
	s.routeToken = ""
	s.routeStatus = domain.RouteStatusReady
	s.showRoutes([]domain.RouteResult{route})
	s.afterTransition(prev)
	return route, nil
}

func (s *Session) onStartNavigation(route domain.RouteResult) error {
	prev := s.nav.Mode()
	if err := s.nav.StartNavigation(route); err != nil {
		return err
	}
	// A route still being computed would only replace the one just chosen.
	s.routeToken = ""
	s.routeStatus = domain.RouteStatusReady
	s.showRoutes([]domain.RouteResult{route})
	s.afterTransition(prev)
	return nil
}

func (s *Session) onStop() {
	prev := s.nav.Mode()
	s.routeToken = ""
	s.routeStatus = domain.RouteStatusNone
	s.routeErr = ""
	if s.nav.StopNavigation() {
		s.showRoutes(nil)
		s.afterTransition(prev)
	}
}

func (s *Session) afterTransition(prev domain.NavigationMode) {
	cur := s.nav.Mode()
	if cur == prev {
		return
	}
	s.logger.Info("navigation mode changed", "from", prev, "to", cur)
	s.publish(domain.EventModeChanged, string(prev))
	s.updateCamera()
}

func (s *Session) setGPSStatus(status domain.GPSStatus, detail string) {
	if s.gpsStatus == status {
		return
	}
	s.gpsStatus = status
	if status != domain.GPSStatusOK {
		s.logger.Warn("gps status changed", "status", status, "detail", detail)
	}
	s.publish(domain.EventGPSStatus, string(status))
}

// updateCamera produces the single camera intent for this tick.
func (s *Session) updateCamera() {
	pos, ok := s.nav.LastPosition()
	if !ok {
		return
	}

	in := CameraInput{Mode: s.nav.Mode(), Position: pos, Now: time.Now()}
	if s.lastFix != nil {
		// Fix time keeps the zoom throttle meaningful for replayed tracks.
		in.Now = s.lastFix.Timestamp
		in.SpeedKmh, in.HasSpeed = s.lastFix.SpeedKmh()
	}
	if !in.HasSpeed {
		if v, ok := s.tracker.EstimatedSpeed(); ok {
			in.SpeedKmh, in.HasSpeed = v*3.6, true
		}
	}
	in.TravelBearing, in.HasBearing = s.tracker.TravelBearing()

	intent := s.camera.Update(in)
	if r := s.deps.Renderer; r != nil {
		s.emit("apply_camera", func(ctx context.Context) error { return r.ApplyCamera(ctx, s.id, intent) })
	}
}

func (s *Session) showRoutes(routes []domain.RouteResult) {
	r := s.deps.Renderer
	if r == nil {
		return
	}
	routes = append([]domain.RouteResult(nil), routes...)
	s.emit("show_routes", func(ctx context.Context) error { return r.ShowRoutes(ctx, s.id, routes) })
}

func (s *Session) publish(t domain.NavigationEventType, detail string) {
	p := s.deps.Publisher
	if p == nil {
		return
	}
	ev := domain.NavigationEvent{
		SessionID: s.id,
		Type:      t,
		Mode:      s.nav.Mode(),
		Detail:    detail,
		Time:      time.Now().UTC(),
	}
	if pos, ok := s.nav.LastPosition(); ok {
		ev.Position = &pos
	}
	s.emit("publish_"+string(t), func(ctx context.Context) error { return p.PublishNavigationEvent(ctx, ev) })
}

func (s *Session) publishSnapshot() {
	snap := &Snapshot{
		SessionID:    s.id,
		State:        s.nav.State(),
		RouteStatus:  s.routeStatus,
		RouteError:   s.routeErr,
		GPSStatus:    s.gpsStatus,
		LoadedBounds: s.reload.Loaded(),
		FeatureCount: s.features,
		UpdatedAt:    time.Now().UTC(),
	}
	if intent, ok := s.camera.Current(); ok {
		snap.Camera = &intent
	}
	if b, ok := s.tracker.LastBearing(); ok {
		snap.TravelBearing = &b
	}
	if s.lastFix != nil {
		f := *s.lastFix
		snap.LastFix = &f
	}
	s.snapshot.Store(snap)
}

// --- Outbox ---

// emit queues a collaborator call without blocking the loop. When the
// outbox is full the call is dropped.
func (s *Session) emit(op string, fn func(ctx context.Context) error) {
	select {
	case s.outbox <- outboxJob{op: op, fn: fn}:
	default:
		metrics.OutboxDropped.Inc()
		s.logger.Warn("outbox full, dropping call", "op", op)
	}
}

func (s *Session) drainOutbox(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.outbox:
			jctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
			if err := job.fn(jctx); err != nil {
				s.logger.Warn("collaborator call failed", "op", job.op, "error", err)
			}
			cancel()
		}
	}
}
