package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

// ConversionSite says which side converts projected route coordinates.
type ConversionSite string

const (
	ConvertOnHost     ConversionSite = "host"
	ConvertOnRenderer ConversionSite = "renderer"
)

const maxAlerts = 10

// Alert is a user-facing message raised by the controller.
type Alert struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SelectedPlace is the place behind the last tapped marker.
type SelectedPlace struct {
	Index int        `json:"index"`
	Title string     `json:"title"`
	At    geo.LatLng `json:"at"`
}

// Status is a read-only view of a controller.
type Status struct {
	SessionID    string               `json:"session_id"`
	State        State                `json:"state"`
	ScheduleID   string               `json:"schedule_id,omitempty"`
	SelectedDate *string              `json:"selected_date,omitempty"`
	Mode         string               `json:"mode,omitempty"`
	Waypoints    []itinerary.Waypoint `json:"waypoints"`
	RoutePoints  int                  `json:"route_points"`
	Selected     *SelectedPlace       `json:"selected,omitempty"`
	Alerts       []Alert              `json:"alerts"`
}

// ControllerDeps are the collaborators a controller calls out to.
type ControllerDeps struct {
	Store     ItineraryStore
	Routes    RouteProvider
	Location  LocationProvider
	Publisher SelectionPublisher
	Metrics   Recorder
}

// Controller is the host side of a bridge. It loads the selected itinerary,
// requests routes and pushes full snapshots to the renderer.
type Controller struct {
	sessionID  string
	deps       ControllerDeps
	transport  Transport
	conversion ConversionSite
	logger     *zap.Logger

	mu           sync.Mutex
	state        State
	scheduleID   uuid.UUID
	selectedDate *string
	mode         itinerary.TransportMode
	modeOverride itinerary.TransportMode
	waypoints    []itinerary.Waypoint
	routePoints  int
	selected     *SelectedPlace
	alerts       []Alert

	// pushMu serializes pushes; lastRoute is guarded by it.
	pushMu    sync.Mutex
	lastRoute []geo.LatLng

	// seq is bumped by every load and route request; responses tagged with
	// an older value are discarded.
	seq atomic.Uint64
}

// NewController creates a controller in the idle state.
func NewController(sessionID string, deps ControllerDeps, transport Transport, conversion ConversionSite, logger *zap.Logger) *Controller {
	if deps.Metrics == nil {
		deps.Metrics = NopRecorder{}
	}
	if conversion == "" {
		conversion = ConvertOnHost
	}
	return &Controller{
		sessionID:  sessionID,
		deps:       deps,
		transport:  transport,
		conversion: conversion,
		logger:     logger.With(zap.String("session_id", sessionID)),
		state:      StateIdle,
	}
}

// LoadItinerary fetches the schedule and draws its waypoints, restricted to
// one day when selectedDate is set, then requests the route. A missing or
// unreadable schedule is logged and leaves an empty map.
func (c *Controller) LoadItinerary(ctx context.Context, scheduleID uuid.UUID, selectedDate *string) {
	seq := c.seq.Add(1)

	c.mu.Lock()
	c.transition(StateLoading)
	c.scheduleID = scheduleID
	c.selectedDate = copyDate(selectedDate)
	c.selected = nil
	override := c.modeOverride
	c.mu.Unlock()

	it, err := c.deps.Store.FindByID(ctx, scheduleID)
	if c.isStale(seq) {
		c.logger.Debug("itinerary load superseded", zap.Uint64("seq", seq))
		return
	}
	if err != nil {
		c.logger.Warn("itinerary not available, showing empty map",
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err),
		)
		c.settle(nil, "")
		c.PushToRenderer(ctx, []itinerary.Waypoint{}, nil)
		c.clearRoute(ctx)
		return
	}

	waypoints := it.Waypoints(selectedDate)
	mode := DeriveTransportMode(it)
	if override != "" {
		mode = override
	}
	c.settle(waypoints, mode)
	c.logger.Info("itinerary loaded",
		zap.String("schedule_id", scheduleID.String()),
		zap.Int("waypoints", len(waypoints)),
		zap.String("mode", mode.String()),
	)

	c.PushToRenderer(ctx, waypoints, nil)
	if len(waypoints) < 2 {
		c.clearRoute(ctx)
		return
	}
	c.RequestRoute(ctx, mode, waypoints)
}

// OverrideMode routes later loads with mode instead of the one derived from
// the itinerary. An empty mode restores the derived one.
func (c *Controller) OverrideMode(mode itinerary.TransportMode) {
	c.mu.Lock()
	c.modeOverride = mode
	c.mu.Unlock()
}

// DeriveTransportMode picks the routing mode from the itinerary's preferences.
func DeriveTransportMode(it *itinerary.Itinerary) itinerary.TransportMode {
	return itinerary.DeriveTransportMode(it.Transportation())
}

// RequestRoute asks the provider for a path and pushes it. Fewer than two
// waypoints is a no-op. Failures are logged and the previous route stays.
func (c *Controller) RequestRoute(ctx context.Context, mode itinerary.TransportMode, waypoints []itinerary.Waypoint) {
	if len(waypoints) < 2 {
		return
	}
	seq := c.seq.Add(1)

	start := time.Now()
	raw, err := c.deps.Routes.Route(ctx, mode, waypoints)
	elapsed := time.Since(start)

	if err != nil {
		c.deps.Metrics.ObserveRoute(mode.String(), "error", elapsed, 0)
		c.logger.Error("route request failed, keeping previous route",
			zap.String("mode", mode.String()),
			zap.Int("waypoints", len(waypoints)),
			zap.Error(err),
		)
		return
	}
	if c.isStale(seq) {
		c.deps.Metrics.ObserveRoute(mode.String(), "stale", elapsed, len(raw))
		c.logger.Info("discarding stale route response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", c.seq.Load()),
		)
		return
	}
	c.deps.Metrics.ObserveRoute(mode.String(), "ok", elapsed, len(raw))

	if c.conversion == ConvertOnRenderer {
		if err := c.transport.SendCommand(ctx, Command{Type: CmdConvertRouteCoordinates, Points: raw, Seq: seq}); err != nil {
			c.logger.Warn("failed to send route for conversion", zap.Error(err))
		}
		return
	}

	path, fallbacks := geo.ConvertPath(raw)
	if fallbacks > 0 {
		c.logger.Warn("route points kept unconverted", zap.Int("count", fallbacks))
	}
	c.acceptRoute(ctx, seq, waypoints, path)
}

// acceptRoute pushes path with the markers it was requested for. The seq
// check runs under pushMu so a load that started meanwhile always pushes
// after this and wins. Nil waypoints means the current selection.
func (c *Controller) acceptRoute(ctx context.Context, seq uint64, waypoints []itinerary.Waypoint, path []geo.LatLng) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	if c.isStale(seq) {
		c.mu.Unlock()
		c.logger.Debug("route superseded before push", zap.Uint64("seq", seq))
		return
	}
	c.routePoints = len(path)
	if waypoints == nil {
		waypoints = c.waypoints
	}
	c.mu.Unlock()

	c.push(ctx, waypoints, path)
}

// clearRoute removes the drawn path so a selection without a route never
// shows the previous one.
func (c *Controller) clearRoute(ctx context.Context) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.lastRoute = nil
	if err := c.transport.SendCommand(ctx, Command{Type: CmdClearRoute}); err != nil {
		c.logger.Warn("failed to clear route", zap.Error(err))
	}
}

// PushToRenderer sends markers, then the route unless it equals the last
// pushed route. Pushes from one controller never interleave.
func (c *Controller) PushToRenderer(ctx context.Context, markers []itinerary.Waypoint, route []geo.LatLng) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.push(ctx, markers, route)
}

// push must be called with pushMu held.
func (c *Controller) push(ctx context.Context, markers []itinerary.Waypoint, route []geo.LatLng) {
	if markers != nil {
		if err := c.transport.SendCommand(ctx, Command{Type: CmdUpdateMarkers, Locations: markers}); err != nil {
			c.logger.Warn("failed to push markers", zap.Error(err))
		}
	}

	if len(route) < 2 {
		return
	}
	if geo.EqualPaths(route, c.lastRoute) {
		c.deps.Metrics.PushSkipped()
		c.logger.Debug("route unchanged, skipping redraw", zap.Int("points", len(route)))
		return
	}
	if err := c.transport.SendCommand(ctx, Command{Type: CmdUpdateRoute, Path: route}); err != nil {
		c.logger.Warn("failed to push route", zap.Error(err))
		return
	}
	c.lastRoute = append([]geo.LatLng(nil), route...)
}

// OnRendererEvent handles one event from the renderer. Unknown types are
// logged and ignored.
func (c *Controller) OnRendererEvent(ctx context.Context, ev Event) {
	c.deps.Metrics.RendererEvent(metricLabel(ev.Type))

	switch ev.Type {
	case EventLog:
		c.logger.Debug("renderer log", zap.String("message", ev.Message))
	case EventInfo:
		c.logger.Info("renderer info", zap.String("message", ev.Message))
	case EventError:
		c.logger.Error("renderer error", zap.String("message", ev.Message))
	case EventMarkerClicked:
		c.onMarkerClicked(ctx, ev)
	case EventGetCurrentLocation:
		c.onGetCurrentLocation(ctx)
	case EventConvertedRoute:
		c.onConvertedRoute(ctx, ev)
	default:
		c.logger.Warn("ignoring unknown renderer event", zap.String("type", string(ev.Type)))
	}
}

func (c *Controller) onMarkerClicked(ctx context.Context, ev Event) {
	if ev.Index == nil {
		c.logger.Warn("markerClicked without index")
		return
	}
	idx := *ev.Index

	c.mu.Lock()
	if idx < 0 || idx >= len(c.waypoints) {
		n := len(c.waypoints)
		c.mu.Unlock()
		c.logger.Warn("markerClicked index out of range", zap.Int("index", idx), zap.Int("markers", n))
		return
	}
	wp := c.waypoints[idx]
	sel := &SelectedPlace{Index: idx, Title: wp.Title, At: wp.LatLng}
	c.selected = sel
	scheduleID := c.scheduleID.String()
	c.mu.Unlock()

	c.logger.Info("marker selected", zap.Int("index", idx), zap.String("title", wp.Title))

	if c.deps.Publisher == nil {
		return
	}
	err := c.deps.Publisher.PublishMarkerSelected(ctx, MarkerSelected{
		SessionID:  c.sessionID,
		ScheduleID: scheduleID,
		Index:      idx,
		Title:      wp.Title,
		Lat:        wp.Lat,
		Lng:        wp.Lng,
		SelectedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("failed to publish marker selection", zap.Error(err))
	}
}

func (c *Controller) onGetCurrentLocation(ctx context.Context) {
	if c.deps.Location == nil {
		return
	}
	at, err := c.deps.Location.CurrentLocation(ctx)
	switch {
	case errors.Is(err, ErrLocationPermissionDenied):
		c.raiseAlert("위치 권한이 필요합니다. 설정에서 위치 접근을 허용해주세요.")
		c.logger.Info("location permission denied")
		return
	case errors.Is(err, ErrLocationUnavailable):
		c.logger.Debug("no device location reported yet")
		return
	case err != nil:
		c.raiseAlert("현재 위치를 가져올 수 없습니다.")
		c.logger.Warn("location lookup failed", zap.Error(err))
		return
	}

	if err := c.transport.SendCommand(ctx, Command{Type: CmdUpdateUserLocation, Location: &at}); err != nil {
		c.logger.Warn("failed to push user location", zap.Error(err))
	}
}

func (c *Controller) onConvertedRoute(ctx context.Context, ev Event) {
	if c.isStale(ev.Seq) {
		c.logger.Info("discarding stale converted route", zap.Uint64("seq", ev.Seq))
		return
	}
	c.acceptRoute(ctx, ev.Seq, nil, ev.Path)
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		SessionID:    c.sessionID,
		State:        c.state,
		SelectedDate: copyDate(c.selectedDate),
		Mode:         string(c.mode),
		Waypoints:    append([]itinerary.Waypoint{}, c.waypoints...),
		RoutePoints:  c.routePoints,
		Alerts:       append([]Alert{}, c.alerts...),
	}
	if c.scheduleID != uuid.Nil {
		st.ScheduleID = c.scheduleID.String()
	}
	if c.selected != nil {
		sel := *c.selected
		st.Selected = &sel
	}
	return st
}

// ScheduleID returns the schedule currently shown.
func (c *Controller) ScheduleID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduleID
}

// SelectedDate returns the day filter currently applied.
func (c *Controller) SelectedDate() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyDate(c.selectedDate)
}

// settle leaves Loading for Ready or Empty.
func (c *Controller) settle(waypoints []itinerary.Waypoint, mode itinerary.TransportMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waypoints = waypoints
	c.mode = mode
	c.routePoints = 0
	if len(waypoints) == 0 {
		c.transition(StateEmpty)
		return
	}
	c.transition(StateReady)
}

// transition must be called with mu held.
func (c *Controller) transition(to State) {
	if !c.state.CanTransitionTo(to) {
		c.logger.Warn("unexpected bridge state transition", zap.String("from", c.state.String()), zap.String("to", to.String()))
	}
	c.state = to
}

func (c *Controller) raiseAlert(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, Alert{Message: msg, At: time.Now().UTC()})
	if len(c.alerts) > maxAlerts {
		c.alerts = c.alerts[len(c.alerts)-maxAlerts:]
	}
}

func (c *Controller) isStale(seq uint64) bool { return seq != c.seq.Load() }

func copyDate(d *string) *string {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func metricLabel(t EventType) string {
	if t.IsKnown() {
		return string(t)
	}
	return "unknown"
}
