package application

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/events"
	"github.com/tripmate/service-routemap/internal/geo"
)

// EventPublisher writes a domain event to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, key string, data interface{}) error
}

// Geocoder resolves a place name to a coordinate. Failures yield the zero
// coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, keyword string) geo.LatLng
}

// GeocodeRecorder counts places that could not be located.
type GeocodeRecorder interface {
	GeocodeFailure()
}

// SessionReloader refreshes map sessions after an itinerary changes.
type SessionReloader interface {
	Reload(ctx context.Context, scheduleID uuid.UUID) int
}

// PlaceInput is a place as submitted by the planner. A missing coordinate is
// looked up by address, then by title.
type PlaceInput struct {
	Order           int      `json:"order"`
	Title           string   `json:"title" binding:"required"`
	Address         string   `json:"address"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	Cost            int64    `json:"cost"`
	DurationMinutes int      `json:"duration_minutes"`
}

// DayInput is one day of submitted places.
type DayInput struct {
	Date   string       `json:"date" binding:"required"`
	Places []PlaceInput `json:"places"`
}

// CreateItineraryRequest holds the data needed to store a generated itinerary.
type CreateItineraryRequest struct {
	Destination     string     `json:"destination" binding:"required"`
	StartDate       string     `json:"start_date" binding:"required"`
	EndDate         string     `json:"end_date" binding:"required"`
	Transportation  []string   `json:"transportation"`
	Days            []DayInput `json:"days"`
	IsAIRecommended bool       `json:"is_ai_recommended"`
}

// RegenerateRequest replaces every day of an itinerary.
type RegenerateRequest struct {
	Days []DayInput `json:"days" binding:"required"`
}

// ItineraryDTO is the response representation of an itinerary.
type ItineraryDTO struct {
	ID              uuid.UUID             `json:"id"`
	Destination     string                `json:"destination"`
	StartDate       string                `json:"start_date"`
	EndDate         string                `json:"end_date"`
	Transportation  []string              `json:"transportation"`
	TransportMode   string                `json:"transport_mode"`
	Days            []itineraryDomain.Day `json:"days"`
	TotalCost       int64                 `json:"total_cost"`
	IsAIRecommended bool                  `json:"is_ai_recommended"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ItineraryService is the application service orchestrating itinerary use cases.
type ItineraryService struct {
	repo      itineraryDomain.ItineraryRepository
	geocoder  Geocoder
	publisher EventPublisher
	sessions  SessionReloader
	metrics   GeocodeRecorder
	logger    *zap.Logger
}

// NewItineraryService creates a new ItineraryService. publisher, sessions and
// metrics may be nil.
func NewItineraryService(
	repo itineraryDomain.ItineraryRepository,
	geocoder Geocoder,
	publisher EventPublisher,
	sessions SessionReloader,
	metrics GeocodeRecorder,
	logger *zap.Logger,
) *ItineraryService {
	return &ItineraryService{
		repo:      repo,
		geocoder:  geocoder,
		publisher: publisher,
		sessions:  sessions,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateItinerary geocodes, validates and stores a new itinerary.
func (s *ItineraryService) CreateItinerary(ctx context.Context, req CreateItineraryRequest) (*ItineraryDTO, error) {
	days := s.buildDays(ctx, req.Days)

	it, err := itineraryDomain.NewItinerary(
		req.Destination,
		req.StartDate,
		req.EndDate,
		req.Transportation,
		days,
		req.IsAIRecommended,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to save itinerary: %w", err)
	}

	places := 0
	for _, d := range it.Days() {
		places += len(d.Places)
	}
	s.logger.Info("itinerary created",
		zap.String("itinerary_id", it.ID().String()),
		zap.String("destination", it.Destination()),
		zap.Int("places", places),
	)

	s.publishEvent(ctx, events.ItineraryCreated, it.ID(), events.ItineraryCreatedEvent{
		ItineraryID: it.ID(),
		Destination: it.Destination(),
		StartDate:   it.StartDate(),
		EndDate:     it.EndDate(),
		Days:        len(it.Days()),
		Places:      places,
		TotalCost:   it.TotalCost(),
		OccurredAt:  time.Now().UTC(),
	})

	return toItineraryDTO(it), nil
}

// GetItinerary returns a single itinerary.
func (s *ItineraryService) GetItinerary(ctx context.Context, id uuid.UUID) (*ItineraryDTO, error) {
	it, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toItineraryDTO(it), nil
}

// RegenerateDays replaces the itinerary's days wholesale and refreshes every
// map showing it.
func (s *ItineraryService) RegenerateDays(ctx context.Context, id uuid.UUID, req RegenerateRequest) (*ItineraryDTO, error) {
	it, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := it.Regenerate(s.buildDays(ctx, req.Days)); err != nil {
		return nil, err
	}

	it.IncrementVersion()
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}

	s.logger.Info("itinerary regenerated",
		zap.String("itinerary_id", id.String()),
		zap.Int64("version", it.Version()),
	)

	s.publishEvent(ctx, events.ItineraryRegenerated, id, events.ItineraryRegeneratedEvent{
		ItineraryID: id,
		Version:     it.Version(),
		TotalCost:   it.TotalCost(),
		OccurredAt:  time.Now().UTC(),
	})
	s.reloadSessions(ctx, id)

	return toItineraryDTO(it), nil
}

// RemovePlace deletes one place; the remaining places of that day are
// renumbered and all totals recomputed.
func (s *ItineraryService) RemovePlace(ctx context.Context, id uuid.UUID, date string, order int) (*ItineraryDTO, error) {
	it, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	removed, err := it.RemovePlace(date, order)
	if err != nil {
		return nil, err
	}

	it.IncrementVersion()
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}

	s.logger.Info("place removed from itinerary",
		zap.String("itinerary_id", id.String()),
		zap.String("date", date),
		zap.Int("order", order),
		zap.String("title", removed.Title),
	)

	s.publishEvent(ctx, events.ItineraryPlaceRemoved, id, events.PlaceRemovedEvent{
		ItineraryID: id,
		Date:        date,
		Order:       order,
		Title:       removed.Title,
		Version:     it.Version(),
		OccurredAt:  time.Now().UTC(),
	})
	s.reloadSessions(ctx, id)

	return toItineraryDTO(it), nil
}

// buildDays converts request days, geocoding places that arrived without a
// usable coordinate. Places that cannot be located keep (0,0) and are left
// off the map.
func (s *ItineraryService) buildDays(ctx context.Context, in []DayInput) []itineraryDomain.Day {
	days := make([]itineraryDomain.Day, len(in))
	for d, day := range in {
		places := make([]itineraryDomain.Place, len(day.Places))
		for p, pi := range day.Places {
			places[p] = itineraryDomain.Place{
				Order:           pi.Order,
				Title:           strings.TrimSpace(pi.Title),
				Address:         strings.TrimSpace(pi.Address),
				Coordinate:      s.locate(ctx, pi),
				Cost:            pi.Cost,
				DurationMinutes: pi.DurationMinutes,
			}
		}
		days[d] = itineraryDomain.Day{Date: day.Date, Places: places}
	}
	return days
}

func (s *ItineraryService) locate(ctx context.Context, pi PlaceInput) geo.LatLng {
	if pi.Lat != nil && pi.Lng != nil {
		given := geo.LatLng{Lat: *pi.Lat, Lng: *pi.Lng}
		if given.Geocoded() {
			return given
		}
	}
	if s.geocoder == nil {
		return geo.LatLng{}
	}

	// Address first, then the title.
	var tried []string
	for _, keyword := range []string{strings.TrimSpace(pi.Address), strings.TrimSpace(pi.Title)} {
		if keyword == "" || slices.Contains(tried, keyword) {
			continue
		}
		tried = append(tried, keyword)
		if at := s.geocoder.Geocode(ctx, keyword); at.Geocoded() {
			return at
		}
	}

	if s.metrics != nil {
		s.metrics.GeocodeFailure()
	}
	s.logger.Warn("place could not be geocoded", zap.Strings("keywords", tried))
	return geo.LatLng{}
}

func (s *ItineraryService) reloadSessions(ctx context.Context, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if n := s.sessions.Reload(ctx, id); n > 0 {
		s.logger.Debug("map sessions reloaded", zap.String("itinerary_id", id.String()), zap.Int("sessions", n))
	}
}

func (s *ItineraryService) publishEvent(ctx context.Context, eventType string, id uuid.UUID, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TopicItineraryEvents, eventType, id.String(), data); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", events.TopicItineraryEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toItineraryDTO(it *itineraryDomain.Itinerary) *ItineraryDTO {
	days := it.Days()
	for d := range days {
		if days[d].Places == nil {
			days[d].Places = []itineraryDomain.Place{}
		}
	}
	transportation := it.Transportation()
	if transportation == nil {
		transportation = []string{}
	}
	return &ItineraryDTO{
		ID:              it.ID(),
		Destination:     it.Destination(),
		StartDate:       it.StartDate(),
		EndDate:         it.EndDate(),
		Transportation:  transportation,
		TransportMode:   it.TransportMode().String(),
		Days:            days,
		TotalCost:       it.TotalCost(),
		IsAIRecommended: it.IsAIRecommended(),
		Version:         it.Version(),
		CreatedAt:       it.CreatedAt(),
		UpdatedAt:       it.UpdatedAt(),
	}
}
