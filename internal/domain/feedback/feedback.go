package feedback

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripmate/service-routemap/internal/common/domain"
)

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLength = 2000
)

// Feedback is a traveller's rating of a generated itinerary.
type Feedback struct {
	id          uuid.UUID
	itineraryID uuid.UUID
	rating      int
	deduction   int
	comment     string
	createdAt   time.Time
}

// NewFeedback validates and creates a feedback entry.
func NewFeedback(itineraryID uuid.UUID, rating, deduction int, comment string) (*Feedback, error) {
	if itineraryID == uuid.Nil {
		return nil, domain.NewValidationError("itinerary ID is required")
	}
	if rating < MinRating || rating > MaxRating {
		return nil, domain.NewValidationError(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	if deduction < 0 {
		return nil, domain.NewValidationError("deduction must not be negative")
	}
	if len(comment) > maxCommentLength {
		return nil, domain.NewValidationError("comment is too long")
	}

	return &Feedback{
		id:          uuid.New(),
		itineraryID: itineraryID,
		rating:      rating,
		deduction:   deduction,
		comment:     comment,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Feedback from persistence.
func Reconstruct(id, itineraryID uuid.UUID, rating, deduction int, comment string, createdAt time.Time) *Feedback {
	return &Feedback{
		id:          id,
		itineraryID: itineraryID,
		rating:      rating,
		deduction:   deduction,
		comment:     comment,
		createdAt:   createdAt,
	}
}

// Getters.
func (f *Feedback) ID() uuid.UUID          { return f.id }
func (f *Feedback) ItineraryID() uuid.UUID { return f.itineraryID }
func (f *Feedback) Rating() int            { return f.rating }
func (f *Feedback) Deduction() int         { return f.deduction }
func (f *Feedback) Comment() string        { return f.comment }
func (f *Feedback) CreatedAt() time.Time   { return f.createdAt }

// Summary aggregates the feedback for one itinerary.
type Summary struct {
	Count          int     `json:"count"`
	AverageRating  float64 `json:"average_rating"`
	TotalDeduction int     `json:"total_deduction"`
}

// Summarize computes a Summary over entries.
func Summarize(entries []*Feedback) Summary {
	var s Summary
	if len(entries) == 0 {
		return s
	}
	sum := 0
	for _, f := range entries {
		sum += f.rating
		s.TotalDeduction += f.deduction
	}
	s.Count = len(entries)
	s.AverageRating = float64(sum) / float64(len(entries))
	return s
}
