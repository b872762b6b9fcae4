package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tripmate/service-routemap/internal/common/domain"
	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

type fakeStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*itinerary.Itinerary
}

func newFakeStore(items ...*itinerary.Itinerary) *fakeStore {
	s := &fakeStore{items: make(map[uuid.UUID]*itinerary.Itinerary)}
	for _, it := range items {
		s.items[it.ID()] = it
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*itinerary.Itinerary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("Itinerary", id.String())
	}
	return it, nil
}

type routeCall struct {
	mode      itinerary.TransportMode
	waypoints []itinerary.Waypoint
}

// fakeRoutes answers each call with respond, optionally blocking until released.
type fakeRoutes struct {
	mu      sync.Mutex
	calls   []routeCall
	n       atomic.Int32
	respond func(call int, wps []itinerary.Waypoint) ([]geo.Projected, error)
}

func (f *fakeRoutes) Route(_ context.Context, mode itinerary.TransportMode, wps []itinerary.Waypoint) ([]geo.Projected, error) {
	call := int(f.n.Add(1))
	f.mu.Lock()
	f.calls = append(f.calls, routeCall{mode: mode, waypoints: wps})
	f.mu.Unlock()
	if f.respond == nil {
		return projectedPath(wps), nil
	}
	return f.respond(call, wps)
}

func (f *fakeRoutes) Calls() []routeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]routeCall(nil), f.calls...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sels []MarkerSelected
}

func (p *recordingPublisher) PublishMarkerSelected(_ context.Context, sel MarkerSelected) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sels = append(p.sels, sel)
	return nil
}

func (p *recordingPublisher) Selections() []MarkerSelected {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MarkerSelected(nil), p.sels...)
}

// projectedPath converts waypoints into a straight projected path.
func projectedPath(wps []itinerary.Waypoint) []geo.Projected {
	out := make([]geo.Projected, len(wps))
	for i, w := range wps {
		out[i] = geo.ToProjected(w.LatLng)
	}
	return out
}

var (
	cityHall = itinerary.Place{Title: "서울시청", Coordinate: geo.LatLng{Lat: 37.5665, Lng: 126.978}, Cost: 0}
	palace   = itinerary.Place{Title: "경복궁", Coordinate: geo.LatLng{Lat: 37.5796, Lng: 126.977}, Cost: 3000}
	gangnam  = itinerary.Place{Title: "강남역", Coordinate: geo.LatLng{Lat: 37.4979, Lng: 127.0276}, Cost: 5000}
	tower    = itinerary.Place{Title: "남산타워", Coordinate: geo.LatLng{Lat: 37.5512, Lng: 126.9882}, Cost: 21000}
	unknown  = itinerary.Place{Title: "어딘가"}
)

func newItinerary(t *testing.T, prefs []string, days ...itinerary.Day) *itinerary.Itinerary {
	t.Helper()
	it, err := itinerary.NewItinerary("서울", "2025-03-01", "2025-03-03", prefs, days, true)
	require.NoError(t, err)
	return it
}

func day(date string, places ...itinerary.Place) itinerary.Day {
	return itinerary.Day{Date: date, Places: places}
}

// drain collects commands currently buffered on a memory transport.
func drain(t *MemoryTransport) []Command {
	var out []Command
	for {
		select {
		case c := <-t.commands:
			out = append(out, c)
		default:
			return out
		}
	}
}

func drainEvents(t *MemoryTransport) []Event {
	var out []Event
	for {
		select {
		case e := <-t.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func ofType(cmds []Command, typ CommandType) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
