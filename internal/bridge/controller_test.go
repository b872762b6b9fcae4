package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

func newTestController(store ItineraryStore, routes RouteProvider, loc LocationProvider) (*Controller, *MemoryTransport) {
	tr := NewMemoryTransport(64)
	c := NewController("s-1", ControllerDeps{Store: store, Routes: routes, Location: loc}, tr, ConvertOnHost, zap.NewNop())
	return c, tr
}

func TestController_LoadItinerary(t *testing.T) {
	ctx := context.Background()

	t.Run("fewer than two geocoded places never calls the provider", func(t *testing.T) {
		it := newItinerary(t, nil, day("2025-03-01", cityHall, unknown))
		routes := &fakeRoutes{}
		c, tr := newTestController(newFakeStore(it), routes, nil)

		c.LoadItinerary(ctx, it.ID(), nil)

		assert.Empty(t, routes.Calls())
		cmds := drain(tr)
		assert.Len(t, ofType(cmds, CmdUpdateMarkers), 1)
		assert.Empty(t, ofType(cmds, CmdUpdateRoute))
		assert.Equal(t, StateReady, c.Status().State)
	})

	t.Run("single day filter", func(t *testing.T) {
		it := newItinerary(t, nil,
			day("2025-03-01", cityHall, palace),
			day("2025-03-02", gangnam),
		)
		routes := &fakeRoutes{}
		c, tr := newTestController(newFakeStore(it), routes, nil)

		date := "2025-03-02"
		c.LoadItinerary(ctx, it.ID(), &date)

		assert.Empty(t, routes.Calls())
		markers := ofType(drain(tr), CmdUpdateMarkers)
		require.Len(t, markers, 1)
		require.Len(t, markers[0].Locations, 1)
		assert.Equal(t, "강남역", markers[0].Locations[0].Title)

		c.LoadItinerary(ctx, it.ID(), nil)
		assert.Len(t, routes.Calls(), 1)
		assert.Len(t, routes.Calls()[0].waypoints, 3)
	})

	t.Run("missing itinerary shows an empty map", func(t *testing.T) {
		routes := &fakeRoutes{}
		c, tr := newTestController(newFakeStore(), routes, nil)

		c.LoadItinerary(ctx, uuid.New(), nil)

		assert.Equal(t, StateEmpty, c.Status().State)
		assert.Empty(t, routes.Calls())
		cmds := drain(tr)
		markers := ofType(cmds, CmdUpdateMarkers)
		require.Len(t, markers, 1)
		assert.Empty(t, markers[0].Locations)
		assert.Len(t, ofType(cmds, CmdClearRoute), 1)
	})

	t.Run("route is cleared and redrawn after a pathless selection", func(t *testing.T) {
		it := newItinerary(t, nil,
			day("2025-03-01", cityHall, palace),
			day("2025-03-02", gangnam),
		)
		c, tr := newTestController(newFakeStore(it), &fakeRoutes{}, nil)

		c.LoadItinerary(ctx, it.ID(), nil)
		assert.Len(t, ofType(drain(tr), CmdUpdateRoute), 1)

		date := "2025-03-02"
		c.LoadItinerary(ctx, it.ID(), &date)
		cmds := drain(tr)
		assert.Len(t, ofType(cmds, CmdClearRoute), 1)
		assert.Empty(t, ofType(cmds, CmdUpdateRoute))

		c.LoadItinerary(ctx, it.ID(), nil)
		assert.Len(t, ofType(drain(tr), CmdUpdateRoute), 1)
	})

	t.Run("no geocoded places is empty", func(t *testing.T) {
		it := newItinerary(t, nil, day("2025-03-01", unknown))
		c, _ := newTestController(newFakeStore(it), &fakeRoutes{}, nil)

		c.LoadItinerary(ctx, it.ID(), nil)
		assert.Equal(t, StateEmpty, c.Status().State)
	})

	t.Run("mode follows preferences", func(t *testing.T) {
		it := newItinerary(t, []string{"대중교통", "걷기"}, day("2025-03-01", cityHall, palace))
		routes := &fakeRoutes{}
		c, _ := newTestController(newFakeStore(it), routes, nil)

		c.LoadItinerary(ctx, it.ID(), nil)
		require.Len(t, routes.Calls(), 1)
		assert.Equal(t, itinerary.ModeTransit, routes.Calls()[0].mode)
		assert.Equal(t, "transit", c.Status().Mode)
	})
}

func TestController_OverrideMode(t *testing.T) {
	ctx := context.Background()
	it := newItinerary(t, []string{"택시"}, day("2025-03-01", cityHall, palace))
	routes := &fakeRoutes{}
	c, _ := newTestController(newFakeStore(it), routes, nil)

	c.OverrideMode(itinerary.ModePedestrian)
	c.LoadItinerary(ctx, it.ID(), nil)
	c.OverrideMode("")
	c.LoadItinerary(ctx, it.ID(), nil)

	calls := routes.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, itinerary.ModePedestrian, calls[0].mode)
	assert.Equal(t, itinerary.ModeTaxi, calls[1].mode)
	assert.Equal(t, "taxi", c.Status().Mode)
}

func TestController_RequestRouteFailureKeepsPreviousRoute(t *testing.T) {
	ctx := context.Background()
	it := newItinerary(t, nil, day("2025-03-01", cityHall, palace, gangnam))
	routes := &fakeRoutes{respond: func(call int, wps []itinerary.Waypoint) ([]geo.Projected, error) {
		if call == 2 {
			return nil, errors.New("upstream 502")
		}
		return projectedPath(wps), nil
	}}
	c, tr := newTestController(newFakeStore(it), routes, nil)

	c.LoadItinerary(ctx, it.ID(), nil)
	first := ofType(drain(tr), CmdUpdateRoute)
	require.Len(t, first, 1)

	c.RequestRoute(ctx, itinerary.ModeCar, it.Waypoints(nil))
	assert.Empty(t, ofType(drain(tr), CmdUpdateRoute))
	assert.Equal(t, 3, c.Status().RoutePoints)
	assert.Len(t, routes.Calls(), 2)
}

func TestController_PushSkipsUnchangedRoute(t *testing.T) {
	ctx := context.Background()
	c, tr := newTestController(newFakeStore(), &fakeRoutes{}, nil)

	wps := []itinerary.Waypoint{{LatLng: cityHall.Coordinate, Title: cityHall.Title}, {LatLng: palace.Coordinate, Title: palace.Title}}
	route := []geo.LatLng{cityHall.Coordinate, palace.Coordinate}

	c.PushToRenderer(ctx, wps, route)
	c.PushToRenderer(ctx, wps, []geo.LatLng{cityHall.Coordinate, palace.Coordinate})

	cmds := drain(tr)
	assert.Len(t, ofType(cmds, CmdUpdateMarkers), 2)
	assert.Len(t, ofType(cmds, CmdUpdateRoute), 1)

	c.PushToRenderer(ctx, wps, []geo.LatLng{palace.Coordinate, cityHall.Coordinate})
	assert.Len(t, ofType(drain(tr), CmdUpdateRoute), 1)
}

func TestController_DiscardsStaleRouteResponse(t *testing.T) {
	ctx := context.Background()
	it := newItinerary(t, nil,
		day("2025-03-01", cityHall, palace),
		day("2025-03-02", gangnam, tower),
	)

	started := make(chan struct{})
	release := make(chan struct{})
	routes := &fakeRoutes{respond: func(call int, wps []itinerary.Waypoint) ([]geo.Projected, error) {
		if call == 1 {
			close(started)
			<-release
		}
		return projectedPath(wps), nil
	}}
	c, tr := newTestController(newFakeStore(it), routes, nil)

	first, second := "2025-03-01", "2025-03-02"
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.LoadItinerary(ctx, it.ID(), &first)
	}()
	<-started

	c.LoadItinerary(ctx, it.ID(), &second)
	close(release)
	wg.Wait()

	routesPushed := ofType(drain(tr), CmdUpdateRoute)
	require.Len(t, routesPushed, 1)
	assert.InDelta(t, gangnam.Coordinate.Lat, routesPushed[0].Path[0].Lat, 1e-6)
	assert.Equal(t, "2025-03-02", *c.Status().SelectedDate)
}

func TestController_AcceptRoutePairsPathWithRequestedMarkers(t *testing.T) {
	ctx := context.Background()
	it := newItinerary(t, nil,
		day("2025-03-01", cityHall, palace),
		day("2025-03-02", gangnam, tower),
	)
	c, tr := newTestController(newFakeStore(it), &fakeRoutes{}, nil)

	first := "2025-03-01"
	c.LoadItinerary(ctx, it.ID(), &first)
	drain(tr)
	requested := it.Waypoints(&first)
	path := []geo.LatLng{cityHall.Coordinate, palace.Coordinate}

	seq := c.seq.Load()
	second := "2025-03-02"
	c.LoadItinerary(ctx, it.ID(), &second)
	drain(tr)

	c.acceptRoute(ctx, seq, requested, path)
	assert.Empty(t, drain(tr))
	assert.Equal(t, 2, c.Status().RoutePoints)
	assert.Equal(t, gangnam.Title, c.Status().Waypoints[0].Title)

	c.acceptRoute(ctx, c.seq.Load(), requested, path)
	cmds := drain(tr)
	markers := ofType(cmds, CmdUpdateMarkers)
	require.Len(t, markers, 1)
	assert.Equal(t, cityHall.Title, markers[0].Locations[0].Title)
	assert.Len(t, ofType(cmds, CmdUpdateRoute), 1)
}

func TestController_RendererConversion(t *testing.T) {
	ctx := context.Background()
	it := newItinerary(t, nil, day("2025-03-01", cityHall, palace))
	tr := NewMemoryTransport(64)
	c := NewController("s-2", ControllerDeps{Store: newFakeStore(it), Routes: &fakeRoutes{}}, tr, ConvertOnRenderer, zap.NewNop())

	c.LoadItinerary(ctx, it.ID(), nil)

	cmds := drain(tr)
	assert.Empty(t, ofType(cmds, CmdUpdateRoute))
	conv := ofType(cmds, CmdConvertRouteCoordinates)
	require.Len(t, conv, 1)
	require.Len(t, conv[0].Points, 2)

	path, _ := geo.ConvertPath(conv[0].Points)

	c.OnRendererEvent(ctx, Event{Type: EventConvertedRoute, Seq: conv[0].Seq - 1, Path: path})
	assert.Empty(t, ofType(drain(tr), CmdUpdateRoute))

	c.OnRendererEvent(ctx, Event{Type: EventConvertedRoute, Seq: conv[0].Seq, Path: path})
	routes := ofType(drain(tr), CmdUpdateRoute)
	require.Len(t, routes, 1)
	assert.InDelta(t, cityHall.Coordinate.Lng, routes[0].Path[0].Lng, 1e-6)
}

func TestController_OnRendererEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown event is logged and ignored", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		tr := NewMemoryTransport(8)
		c := NewController("s-3", ControllerDeps{Store: newFakeStore(), Routes: &fakeRoutes{}}, tr, ConvertOnHost, zap.New(core))

		c.OnRendererEvent(ctx, Event{Type: "zoomChanged", Message: "15"})

		entries := logs.FilterMessage("ignoring unknown renderer event").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "zoomChanged", entries[0].ContextMap()["type"])
		assert.Empty(t, drain(tr))
		assert.Equal(t, StateIdle, c.Status().State)
	})

	t.Run("renderer errors are logged with the session", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		c := NewController("s-4", ControllerDeps{Store: newFakeStore(), Routes: &fakeRoutes{}}, NewMemoryTransport(8), ConvertOnHost, zap.New(core))

		c.OnRendererEvent(ctx, Event{Type: EventError, Message: "Tmapv2 is not defined"})

		entries := logs.FilterMessage("renderer error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "s-4", entries[0].ContextMap()["session_id"])
	})

	t.Run("marker click selects the place and publishes", func(t *testing.T) {
		it := newItinerary(t, nil, day("2025-03-01", cityHall, palace, gangnam))
		pub := &recordingPublisher{}
		tr := NewMemoryTransport(64)
		c := NewController("s-5", ControllerDeps{Store: newFakeStore(it), Routes: &fakeRoutes{}, Publisher: pub}, tr, ConvertOnHost, zap.NewNop())
		c.LoadItinerary(ctx, it.ID(), nil)

		idx := 1
		c.OnRendererEvent(ctx, Event{Type: EventMarkerClicked, Index: &idx, Title: "경복궁"})

		sel := c.Status().Selected
		require.NotNil(t, sel)
		assert.Equal(t, "경복궁", sel.Title)
		require.Len(t, pub.Selections(), 1)
		assert.Equal(t, it.ID().String(), pub.Selections()[0].ScheduleID)

		bad := 9
		c.OnRendererEvent(ctx, Event{Type: EventMarkerClicked, Index: &bad})
		assert.Equal(t, "경복궁", c.Status().Selected.Title)
		assert.Len(t, pub.Selections(), 1)
	})

	t.Run("location permission denied raises an alert", func(t *testing.T) {
		loc := &DeviceLocation{}
		loc.Report(geo.LatLng{Lat: 37.5, Lng: 127}, false)
		c, tr := newTestController(newFakeStore(), &fakeRoutes{}, loc)

		c.OnRendererEvent(ctx, Event{Type: EventGetCurrentLocation})

		alerts := c.Status().Alerts
		require.Len(t, alerts, 1)
		assert.Contains(t, alerts[0].Message, "위치 권한")
		assert.Empty(t, drain(tr))
	})

	t.Run("granted location is pushed", func(t *testing.T) {
		loc := &DeviceLocation{}
		loc.Report(geo.LatLng{Lat: 37.5, Lng: 127}, true)
		c, tr := newTestController(newFakeStore(), &fakeRoutes{}, loc)

		c.OnRendererEvent(ctx, Event{Type: EventGetCurrentLocation})

		cmds := ofType(drain(tr), CmdUpdateUserLocation)
		require.Len(t, cmds, 1)
		assert.Equal(t, geo.LatLng{Lat: 37.5, Lng: 127}, *cmds[0].Location)
		assert.Empty(t, c.Status().Alerts)
	})

	t.Run("no location yet is quiet", func(t *testing.T) {
		c, tr := newTestController(newFakeStore(), &fakeRoutes{}, &DeviceLocation{})
		c.OnRendererEvent(ctx, Event{Type: EventGetCurrentLocation})
		assert.Empty(t, c.Status().Alerts)
		assert.Empty(t, drain(tr))
	})
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateLoading, true},
		{StateIdle, StateReady, false},
		{StateLoading, StateReady, true},
		{StateLoading, StateEmpty, true},
		{StateLoading, StateLoading, true},
		{StateReady, StateLoading, true},
		{StateReady, StateEmpty, false},
		{StateEmpty, StateLoading, true},
		{StateEmpty, StateIdle, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.False(t, State("closed").CanTransitionTo(StateLoading))
}
