package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

const (
	// RouteZoom is applied after a route is drawn.
	RouteZoom = 14
	// DefaultRedrawDelay separates polyline removal from re-creation.
	DefaultRedrawDelay = 50 * time.Millisecond

	userInnerRadius = 12.0
	userOuterRadius = 50.0
)

// DefaultCenter is where the map starts before anything is drawn.
var DefaultCenter = geo.LatLng{Lat: 37.566481, Lng: 126.985032}

// ErrRendererStopped is returned when interacting with a renderer that has exited.
var ErrRendererStopped = errors.New("renderer stopped")

// RenderedMarker is a numbered waypoint pin.
type RenderedMarker struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Position  geo.LatLng `json:"position"`
	Size      MarkerSize `json:"size"`
	PopupOpen bool       `json:"popup_open"`
	shape     ShapeID
}

// RendererState is everything the renderer owns. It is only touched by the
// renderer goroutine.
type RendererState struct {
	surface MapSurface

	Zoom    int
	Center  geo.LatLng
	Markers []RenderedMarker
	Route   []geo.LatLng
	User    *geo.LatLng

	routeShape ShapeID
	routeGen   uint64
	userShapes []ShapeID
}

// NewRendererState sets the surface to its initial view.
func NewRendererState(surface MapSurface) *RendererState {
	st := &RendererState{surface: surface, Zoom: RouteZoom, Center: DefaultCenter}
	surface.SetCenter(st.Center)
	surface.SetZoom(st.Zoom)
	return st
}

// RendererSnapshot is a copy of RendererState safe to hand to other goroutines.
type RendererSnapshot struct {
	Zoom      int              `json:"zoom"`
	Center    geo.LatLng       `json:"center"`
	Markers   []RenderedMarker `json:"markers"`
	Route     []geo.LatLng     `json:"route"`
	User      *geo.LatLng      `json:"user,omitempty"`
	OpenPopup int              `json:"open_popup"`
}

func (st *RendererState) snapshot() RendererSnapshot {
	snap := RendererSnapshot{
		Zoom:      st.Zoom,
		Center:    st.Center,
		Markers:   append([]RenderedMarker(nil), st.Markers...),
		Route:     append([]geo.LatLng(nil), st.Route...),
		OpenPopup: -1,
	}
	if st.User != nil {
		u := *st.User
		snap.User = &u
	}
	for i, m := range st.Markers {
		if m.PopupOpen {
			snap.OpenPopup = i
		}
	}
	return snap
}

// updateMarkers removes every marker and draws one per location, numbered
// 1..N in the given order.
func (st *RendererState) updateMarkers(locations []itinerary.Waypoint) {
	for _, m := range st.Markers {
		st.surface.Remove(m.shape)
	}
	st.Markers = make([]RenderedMarker, 0, len(locations))

	size := SizeForZoom(st.Zoom)
	for i, loc := range locations {
		n := i + 1
		title := loc.Title
		if title == "" {
			title = "일정_" + strconv.Itoa(n)
		}
		id := st.surface.AddMarker(MarkerSpec{
			Position: loc.LatLng,
			Label:    strconv.Itoa(n),
			Title:    title,
			Size:     size,
		})
		st.Markers = append(st.Markers, RenderedMarker{
			Number:   n,
			Title:    title,
			Position: loc.LatLng,
			Size:     size,
			shape:    id,
		})
	}
}

// clearRoute removes the drawn polyline and returns the generation that a
// deferred draw must match.
func (st *RendererState) clearRoute() uint64 {
	if st.routeShape != 0 {
		st.surface.Remove(st.routeShape)
		st.routeShape = 0
	}
	st.Route = nil
	st.routeGen++
	return st.routeGen
}

// drawRoute creates the polyline unless a newer route superseded it.
func (st *RendererState) drawRoute(path []geo.LatLng, gen uint64) bool {
	if gen != st.routeGen {
		return false
	}
	st.routeShape = st.surface.AddPolyline(path)
	st.Route = path
	st.setView(path[0], RouteZoom)
	return true
}

func (st *RendererState) updateUserLocation(at geo.LatLng) {
	for _, id := range st.userShapes {
		st.surface.Remove(id)
	}
	st.userShapes = []ShapeID{
		st.surface.AddCircle(at, userOuterRadius),
		st.surface.AddCircle(at, userInnerRadius),
		st.surface.AddMarker(MarkerSpec{Position: at, Title: "현재 위치", Size: SizeMedium, User: true}),
	}
	st.User = &at
	st.Center = at
	st.surface.SetCenter(at)
}

func (st *RendererState) setView(center geo.LatLng, zoom int) {
	st.Center = center
	st.surface.SetCenter(center)
	st.setZoom(zoom)
}

// setZoom applies a zoom level and re-tiers marker sizes when the tier changes.
func (st *RendererState) setZoom(zoom int) {
	st.Zoom = zoom
	st.surface.SetZoom(zoom)
	size := SizeForZoom(zoom)
	for i := range st.Markers {
		if st.Markers[i].Size != size {
			st.Markers[i].Size = size
			st.surface.SetMarkerSize(st.Markers[i].shape, size)
		}
	}
}

// openPopup opens the marker at index and closes every other popup.
func (st *RendererState) openPopup(index int) (RenderedMarker, error) {
	if index < 0 || index >= len(st.Markers) {
		return RenderedMarker{}, fmt.Errorf("marker index %d out of range (%d markers)", index, len(st.Markers))
	}
	for i := range st.Markers {
		open := i == index
		if st.Markers[i].PopupOpen != open {
			st.Markers[i].PopupOpen = open
			st.surface.SetPopup(st.Markers[i].shape, open)
		}
	}
	return st.Markers[index], nil
}

func (st *RendererState) teardown() {
	for _, m := range st.Markers {
		st.surface.Remove(m.shape)
	}
	for _, id := range st.userShapes {
		st.surface.Remove(id)
	}
	st.clearRoute()
	st.Markers, st.userShapes, st.User = nil, nil, nil
}

type task func(ctx context.Context, st *RendererState)

// Renderer owns a RendererState and applies commands to it one at a time on
// a single goroutine.
type Renderer struct {
	transport   Transport
	state       *RendererState
	redrawDelay time.Duration
	metrics     Recorder
	logger      *zap.Logger

	tasks chan task
	done  chan struct{}
}

// NewRenderer creates a renderer reading commands from transport.
func NewRenderer(transport Transport, surface MapSurface, redrawDelay time.Duration, metrics Recorder, logger *zap.Logger) *Renderer {
	if redrawDelay <= 0 {
		redrawDelay = DefaultRedrawDelay
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &Renderer{
		transport:   transport,
		state:       NewRendererState(surface),
		redrawDelay: redrawDelay,
		metrics:     metrics,
		logger:      logger,
		tasks:       make(chan task, 16),
		done:        make(chan struct{}),
	}
}

// Run processes commands and internal tasks until ctx is cancelled or the
// transport closes. It announces itself and asks for the device location.
func (r *Renderer) Run(ctx context.Context) {
	defer close(r.done)
	defer r.state.teardown()

	r.emit(ctx, Event{Type: EventInfo, Message: "renderer ready"})
	r.emit(ctx, Event{Type: EventGetCurrentLocation})

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.transport.Done():
			return
		case cmd := <-r.transport.Commands():
			r.safely(ctx, string(cmd.Type), func() { r.handle(ctx, cmd) })
		case t := <-r.tasks:
			r.safely(ctx, "task", func() { t(ctx, r.state) })
		}
	}
}

// Done is closed once Run has returned.
func (r *Renderer) Done() <-chan struct{} { return r.done }

func (r *Renderer) handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdUpdateMarkers:
		r.state.updateMarkers(cmd.Locations)
		r.emit(ctx, logEvent(fmt.Sprintf("markers updated: %d", len(cmd.Locations))))

	case CmdUpdateRoute:
		if len(cmd.Path) < 2 {
			return
		}
		gen := r.state.clearRoute()
		path := append([]geo.LatLng(nil), cmd.Path...)
		r.later(func(ctx context.Context, st *RendererState) {
			if st.drawRoute(path, gen) {
				r.emit(ctx, logEvent(fmt.Sprintf("route drawn: %d points", len(path))))
			}
		})

	case CmdClearRoute:
		r.state.clearRoute()
		r.emit(ctx, logEvent("route cleared"))

	case CmdUpdateUserLocation:
		if cmd.Location == nil {
			r.emit(ctx, errorEvent("updateUserLocation without location"))
			return
		}
		r.state.updateUserLocation(*cmd.Location)

	case CmdConvertRouteCoordinates:
		path, fallbacks := geo.ConvertPath(cmd.Points)
		if fallbacks > 0 {
			r.emit(ctx, logEvent(fmt.Sprintf("%d points kept unconverted", fallbacks)))
		}
		r.emit(ctx, Event{Type: EventConvertedRoute, Seq: cmd.Seq, Path: path})

	default:
		r.emit(ctx, errorEvent(fmt.Sprintf("unknown command: %s", cmd.Type)))
	}
}

// later schedules t on the renderer goroutine after the redraw delay.
func (r *Renderer) later(t task) {
	time.AfterFunc(r.redrawDelay, func() {
		select {
		case r.tasks <- t:
		case <-r.done:
		}
	})
}

// safely runs fn, turning a panic into an error event.
func (r *Renderer) safely(ctx context.Context, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RendererPanic()
			r.logger.Error("renderer panic recovered",
				zap.String("while", what),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			r.emit(ctx, errorEvent(fmt.Sprintf("%s: %v", what, rec)))
		}
	}()
	fn()
}

func (r *Renderer) emit(ctx context.Context, ev Event) {
	if err := r.transport.SendEvent(ctx, ev); err != nil {
		r.logger.Debug("renderer event dropped", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// submit runs t on the renderer goroutine and waits for it.
func (r *Renderer) submit(ctx context.Context, t task) error {
	finished := make(chan struct{})
	wrapped := func(ctx context.Context, st *RendererState) {
		defer close(finished)
		t(ctx, st)
	}
	select {
	case r.tasks <- wrapped:
	case <-r.done:
		return ErrRendererStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRendererStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Click simulates a tap on the marker at index (0-based display position).
func (r *Renderer) Click(ctx context.Context, index int) error {
	var clickErr error
	err := r.submit(ctx, func(ctx context.Context, st *RendererState) {
		m, err := st.openPopup(index)
		if err != nil {
			clickErr = err
			r.emit(ctx, errorEvent(err.Error()))
			return
		}
		r.emit(ctx, markerClicked(index, m.Title))
	})
	if err != nil {
		return err
	}
	return clickErr
}

// SetZoom changes the zoom level as a pinch gesture would.
func (r *Renderer) SetZoom(ctx context.Context, zoom int) error {
	return r.submit(ctx, func(_ context.Context, st *RendererState) { st.setZoom(zoom) })
}

// Snapshot copies the current renderer state.
func (r *Renderer) Snapshot(ctx context.Context) (RendererSnapshot, error) {
	var snap RendererSnapshot
	err := r.submit(ctx, func(_ context.Context, st *RendererState) { snap = st.snapshot() })
	return snap, err
}

// GeoJSON exports the surface when it supports it.
func (r *Renderer) GeoJSON(ctx context.Context) ([]byte, error) {
	var (
		out    []byte
		expErr error
	)
	err := r.submit(ctx, func(_ context.Context, st *RendererState) {
		exp, ok := st.surface.(Exporter)
		if !ok {
			expErr = errors.New("surface does not support export")
			return
		}
		out, expErr = json.Marshal(exp.Export())
	})
	if err != nil {
		return nil, err
	}
	return out, expErr
}
