package itinerary

import (
	"context"

	"github.com/google/uuid"
)

// ItineraryRepository defines the persistence contract for itinerary aggregates.
type ItineraryRepository interface {
	// FindByID retrieves an itinerary by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Itinerary, error)

	// Save persists a new itinerary.
	Save(ctx context.Context, it *Itinerary) error

	// Update persists changes to an existing itinerary with optimistic locking.
	Update(ctx context.Context, it *Itinerary) error
}
