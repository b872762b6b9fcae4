package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripmate/service-routemap/internal/common/domain"
	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
)

// ItineraryModel is the GORM model for the itineraries table.
type ItineraryModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Destination     string          `gorm:"not null;size:200"`
	StartDate       string          `gorm:"not null;size:10"`
	EndDate         string          `gorm:"not null;size:10"`
	Transportation  json.RawMessage `gorm:"type:jsonb;not null"`
	Days            json.RawMessage `gorm:"type:jsonb;not null"`
	TotalCost       int64           `gorm:"not null;default:0"`
	IsAIRecommended bool            `gorm:"not null;default:false"`
	Version         int64           `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null;index"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ItineraryModel) TableName() string {
	return "itineraries"
}

// GormItineraryRepository is the GORM-based implementation of ItineraryRepository.
type GormItineraryRepository struct {
	db *gorm.DB
}

// NewGormItineraryRepository creates a new GormItineraryRepository.
func NewGormItineraryRepository(db *gorm.DB) *GormItineraryRepository {
	return &GormItineraryRepository{db: db}
}

// FindByID retrieves an itinerary by its unique identifier.
func (r *GormItineraryRepository) FindByID(ctx context.Context, id uuid.UUID) (*itineraryDomain.Itinerary, error) {
	var model ItineraryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Itinerary", id.String())
		}
		return nil, fmt.Errorf("failed to find itinerary by ID: %w", err)
	}
	return toDomainItinerary(&model)
}

// Save persists a new itinerary.
func (r *GormItineraryRepository) Save(ctx context.Context, it *itineraryDomain.Itinerary) error {
	model, err := toItineraryModel(it)
	if err != nil {
		return fmt.Errorf("failed to convert itinerary to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save itinerary: %w", err)
	}
	return nil
}

// Update persists changes to an existing itinerary with optimistic locking.
// The caller must have called IncrementVersion.
func (r *GormItineraryRepository) Update(ctx context.Context, it *itineraryDomain.Itinerary) error {
	model, err := toItineraryModel(it)
	if err != nil {
		return fmt.Errorf("failed to convert itinerary to model: %w", err)
	}

	expectedVersion := it.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&ItineraryModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"transportation": model.Transportation,
			"days":           model.Days,
			"total_cost":     model.TotalCost,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update itinerary: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("itinerary was modified by another transaction")
	}

	return nil
}

// --- Conversion Helpers ---

func toItineraryModel(it *itineraryDomain.Itinerary) (*ItineraryModel, error) {
	transportation := it.Transportation()
	if transportation == nil {
		transportation = []string{}
	}
	transportJSON, err := json.Marshal(transportation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transportation: %w", err)
	}

	days := it.Days()
	for d := range days {
		if days[d].Places == nil {
			days[d].Places = []itineraryDomain.Place{}
		}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal days: %w", err)
	}

	return &ItineraryModel{
		ID:              it.ID(),
		Destination:     it.Destination(),
		StartDate:       it.StartDate(),
		EndDate:         it.EndDate(),
		Transportation:  transportJSON,
		Days:            daysJSON,
		TotalCost:       it.TotalCost(),
		IsAIRecommended: it.IsAIRecommended(),
		Version:         it.Version(),
		CreatedAt:       it.CreatedAt(),
		UpdatedAt:       it.UpdatedAt(),
	}, nil
}

func toDomainItinerary(m *ItineraryModel) (*itineraryDomain.Itinerary, error) {
	var transportation []string
	if len(m.Transportation) > 0 {
		if err := json.Unmarshal(m.Transportation, &transportation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transportation: %w", err)
		}
	}

	var days []itineraryDomain.Day
	if len(m.Days) > 0 {
		if err := json.Unmarshal(m.Days, &days); err != nil {
			return nil, fmt.Errorf("failed to unmarshal days: %w", err)
		}
	}

	return itineraryDomain.ReconstructItinerary(
		m.ID,
		m.Destination,
		m.StartDate,
		m.EndDate,
		transportation,
		days,
		m.TotalCost,
		m.IsAIRecommended,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
