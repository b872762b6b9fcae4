package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	feedbackDomain "github.com/tripmate/service-routemap/internal/domain/feedback"
	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
)

// SubmitFeedbackRequest holds a traveller's rating of an itinerary.
type SubmitFeedbackRequest struct {
	Rating    int    `json:"rating" binding:"required"`
	Deduction int    `json:"deduction"`
	Comment   string `json:"comment"`
}

// FeedbackDTO is the API response representation of a feedback entry.
type FeedbackDTO struct {
	ID          uuid.UUID `json:"id"`
	ItineraryID uuid.UUID `json:"itinerary_id"`
	Rating      int       `json:"rating"`
	Deduction   int       `json:"deduction"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedbackListDTO lists an itinerary's feedback with its summary.
type FeedbackListDTO struct {
	Entries []*FeedbackDTO         `json:"entries"`
	Summary feedbackDomain.Summary `json:"summary"`
}

// FeedbackService handles itinerary feedback use cases.
type FeedbackService struct {
	repo        feedbackDomain.FeedbackRepository
	itineraries itineraryDomain.ItineraryRepository
	logger      *zap.Logger
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(repo feedbackDomain.FeedbackRepository, itineraries itineraryDomain.ItineraryRepository, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{repo: repo, itineraries: itineraries, logger: logger}
}

// SubmitFeedback records feedback for an existing itinerary.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, itineraryID uuid.UUID, req SubmitFeedbackRequest) (*FeedbackDTO, error) {
	if _, err := s.itineraries.FindByID(ctx, itineraryID); err != nil {
		return nil, err
	}

	f, err := feedbackDomain.NewFeedback(itineraryID, req.Rating, req.Deduction, req.Comment)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("feedback submitted",
		zap.String("itinerary_id", itineraryID.String()),
		zap.Int("rating", req.Rating),
	)

	return toFeedbackDTO(f), nil
}

// GetFeedback returns all feedback for an itinerary.
func (s *FeedbackService) GetFeedback(ctx context.Context, itineraryID uuid.UUID) (*FeedbackListDTO, error) {
	entries, err := s.repo.FindByItineraryID(ctx, itineraryID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*FeedbackDTO, len(entries))
	for i, f := range entries {
		dtos[i] = toFeedbackDTO(f)
	}
	return &FeedbackListDTO{Entries: dtos, Summary: feedbackDomain.Summarize(entries)}, nil
}

func toFeedbackDTO(f *feedbackDomain.Feedback) *FeedbackDTO {
	return &FeedbackDTO{
		ID:          f.ID(),
		ItineraryID: f.ItineraryID(),
		Rating:      f.Rating(),
		Deduction:   f.Deduction(),
		Comment:     f.Comment(),
		CreatedAt:   f.CreatedAt(),
	}
}
