package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	feedbackDomain "github.com/tripmate/service-routemap/internal/domain/feedback"
)

// FeedbackModel is the GORM model for the itinerary_feedback table.
type FeedbackModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ItineraryID uuid.UUID `gorm:"type:uuid;not null;index"`
	Rating      int       `gorm:"not null"`
	Deduction   int       `gorm:"not null;default:0"`
	Comment     string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (FeedbackModel) TableName() string { return "itinerary_feedback" }

// GormFeedbackRepository implements FeedbackRepository using GORM.
type GormFeedbackRepository struct {
	db *gorm.DB
}

// NewGormFeedbackRepository creates a new GormFeedbackRepository.
func NewGormFeedbackRepository(db *gorm.DB) *GormFeedbackRepository {
	return &GormFeedbackRepository{db: db}
}

// Save persists a feedback entry.
func (r *GormFeedbackRepository) Save(ctx context.Context, f *feedbackDomain.Feedback) error {
	model := toFeedbackModel(f)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// FindByItineraryID returns every entry for an itinerary, oldest first.
func (r *GormFeedbackRepository) FindByItineraryID(ctx context.Context, itineraryID uuid.UUID) ([]*feedbackDomain.Feedback, error) {
	var models []FeedbackModel
	if err := r.db.WithContext(ctx).Where("itinerary_id = ?", itineraryID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find feedback: %w", err)
	}

	entries := make([]*feedbackDomain.Feedback, len(models))
	for i := range models {
		entries[i] = toFeedbackDomain(&models[i])
	}
	return entries, nil
}

func toFeedbackModel(f *feedbackDomain.Feedback) FeedbackModel {
	return FeedbackModel{
		ID:          f.ID(),
		ItineraryID: f.ItineraryID(),
		Rating:      f.Rating(),
		Deduction:   f.Deduction(),
		Comment:     f.Comment(),
		CreatedAt:   f.CreatedAt(),
	}
}

func toFeedbackDomain(m *FeedbackModel) *feedbackDomain.Feedback {
	return feedbackDomain.Reconstruct(m.ID, m.ItineraryID, m.Rating, m.Deduction, m.Comment, m.CreatedAt)
}
