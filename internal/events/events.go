// Package events defines the routemap topics and payloads and moves them
// over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies this service in CloudEvent envelopes.
const Source = "service-routemap"

// Topics.
const (
	TopicItineraryEvents = "routemap.itinerary.events"
	TopicMapEvents       = "routemap.map.events"
)

// Event types.
const (
	ItineraryCreated      = "routemap.itinerary.created"
	ItineraryRegenerated  = "routemap.itinerary.regenerated"
	ItineraryPlaceRemoved = "routemap.itinerary.place_removed"
	MarkerSelected        = "routemap.marker_selected"
)

// ItineraryCreatedEvent is published after a new itinerary is stored.
type ItineraryCreatedEvent struct {
	ItineraryID uuid.UUID `json:"itinerary_id"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Days        int       `json:"days"`
	Places      int       `json:"places"`
	TotalCost   int64     `json:"total_cost"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ItineraryRegeneratedEvent is published after the days of an itinerary
// were replaced wholesale.
type ItineraryRegeneratedEvent struct {
	ItineraryID uuid.UUID `json:"itinerary_id"`
	Version     int64     `json:"version"`
	TotalCost   int64     `json:"total_cost"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PlaceRemovedEvent is published after a single place was deleted.
type PlaceRemovedEvent struct {
	ItineraryID uuid.UUID `json:"itinerary_id"`
	Date        string    `json:"date"`
	Order       int       `json:"order"`
	Title       string    `json:"title"`
	Version     int64     `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`
}
