package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

var (
	// ErrLocationPermissionDenied means the user refused location access.
	ErrLocationPermissionDenied = errors.New("location permission denied")
	// ErrLocationUnavailable means no location has been reported yet.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// ItineraryStore fetches itineraries by id.
type ItineraryStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*itinerary.Itinerary, error)
}

// RouteProvider computes the raw projected path through waypoints.
type RouteProvider interface {
	Route(ctx context.Context, mode itinerary.TransportMode, waypoints []itinerary.Waypoint) ([]geo.Projected, error)
}

// LocationProvider answers the device's current position.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (geo.LatLng, error)
}

// MarkerSelected is published when the user taps a marker.
type MarkerSelected struct {
	SessionID  string    `json:"session_id"`
	ScheduleID string    `json:"schedule_id"`
	Index      int       `json:"index"`
	Title      string    `json:"title"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SelectedAt time.Time `json:"selected_at"`
}

// SelectionPublisher announces marker selections to other services.
type SelectionPublisher interface {
	PublishMarkerSelected(ctx context.Context, sel MarkerSelected) error
}

// Recorder receives bridge metrics.
type Recorder interface {
	ObserveRoute(mode, outcome string, d time.Duration, points int)
	SessionOpened()
	SessionClosed()
	RendererEvent(eventType string)
	RendererPanic()
	PushSkipped()
}

// NopRecorder discards metrics.
type NopRecorder struct{}

func (NopRecorder) ObserveRoute(string, string, time.Duration, int) {}
func (NopRecorder) SessionOpened()                                  {}
func (NopRecorder) SessionClosed()                                  {}
func (NopRecorder) RendererEvent(string)                            {}
func (NopRecorder) RendererPanic()                                  {}
func (NopRecorder) PushSkipped()                                    {}

// DeviceLocation holds the last position the host app reported for a
// session, together with whether location permission was granted.
type DeviceLocation struct {
	mu       sync.RWMutex
	known    bool
	granted  bool
	location geo.LatLng
}

// Report records a location report.
func (d *DeviceLocation) Report(at geo.LatLng, granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known = true
	d.granted = granted
	d.location = at
}

// CurrentLocation implements LocationProvider.
func (d *DeviceLocation) CurrentLocation(_ context.Context) (geo.LatLng, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.known {
		return geo.LatLng{}, ErrLocationUnavailable
	}
	if !d.granted {
		return geo.LatLng{}, ErrLocationPermissionDenied
	}
	return d.location, nil
}
