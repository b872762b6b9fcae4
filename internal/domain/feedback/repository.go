package feedback

import (
	"context"

	"github.com/google/uuid"
)

// FeedbackRepository defines persistence operations for itinerary feedback.
type FeedbackRepository interface {
	Save(ctx context.Context, f *Feedback) error
	FindByItineraryID(ctx context.Context, itineraryID uuid.UUID) ([]*Feedback, error)
}
