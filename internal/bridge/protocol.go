// Package bridge keeps an embedded map renderer in sync with the host's
// itinerary selection over asynchronous messages.
package bridge

import (
	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

// CommandType names a host-to-renderer message.
type CommandType string

const (
	CmdUpdateMarkers           CommandType = "updateMarkers"
	CmdUpdateRoute             CommandType = "updateRoute"
	CmdUpdateUserLocation      CommandType = "updateUserLocation"
	CmdConvertRouteCoordinates CommandType = "convertRouteCoordinates"
	CmdClearRoute              CommandType = "clearRoute"
)

// Command is a host-to-renderer message. Only the fields for its type are set.
type Command struct {
	Type      CommandType          `json:"type"`
	Locations []itinerary.Waypoint `json:"locations,omitempty"`
	Path      []geo.LatLng         `json:"path,omitempty"`
	Location  *geo.LatLng          `json:"location,omitempty"`
	Points    []geo.Projected      `json:"points,omitempty"`
	Seq       uint64               `json:"seq,omitempty"`
}

// EventType names a renderer-to-host message.
type EventType string

const (
	EventLog                EventType = "log"
	EventError              EventType = "error"
	EventInfo               EventType = "info"
	EventMarkerClicked      EventType = "markerClicked"
	EventGetCurrentLocation EventType = "getCurrentLocation"
	EventConvertedRoute     EventType = "convertedRoute"
)

var knownEvents = map[EventType]bool{
	EventLog:                true,
	EventError:              true,
	EventInfo:               true,
	EventMarkerClicked:      true,
	EventGetCurrentLocation: true,
	EventConvertedRoute:     true,
}

// IsKnown reports whether the host understands the event type.
func (t EventType) IsKnown() bool { return knownEvents[t] }

// Event is a renderer-to-host message.
type Event struct {
	Type    EventType    `json:"type"`
	Message string       `json:"message,omitempty"`
	Index   *int         `json:"index,omitempty"`
	Title   string       `json:"title,omitempty"`
	Seq     uint64       `json:"seq,omitempty"`
	Path    []geo.LatLng `json:"path,omitempty"`
}

func logEvent(msg string) Event   { return Event{Type: EventLog, Message: msg} }
func errorEvent(msg string) Event { return Event{Type: EventError, Message: msg} }

func markerClicked(index int, title string) Event {
	return Event{Type: EventMarkerClicked, Index: &index, Title: title}
}
