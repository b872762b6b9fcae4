package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/bridge"
	"github.com/tripmate/service-routemap/internal/common/domain"
	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

// OpenSessionRequest mounts a map for a schedule, optionally filtered to one day.
type OpenSessionRequest struct {
	ScheduleID   string  `json:"schedule_id" binding:"required"`
	SelectedDate *string `json:"selected_date"`
}

// SelectionRequest changes what a mounted map shows. A nil schedule keeps the
// current one; a nil date shows every day. Mode overrides the routing mode
// derived from the itinerary; an empty mode drops the override.
type SelectionRequest struct {
	ScheduleID   *string `json:"schedule_id"`
	SelectedDate *string `json:"selected_date"`
	Mode         *string `json:"mode"`
}

// ClickRequest taps the marker at a 0-based display index.
type ClickRequest struct {
	Index *int `json:"index" binding:"required"`
}

// LocationRequest is a device location report from the host app.
type LocationRequest struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	PermissionGranted bool    `json:"permission_granted"`
}

// MapSessionDTO combines controller status with what the renderer has drawn.
type MapSessionDTO struct {
	bridge.Status
	OpenedAt time.Time               `json:"opened_at"`
	Renderer bridge.RendererSnapshot `json:"renderer"`
}

// MapService exposes bridge sessions to the API.
type MapService struct {
	hub    *bridge.Hub
	logger *zap.Logger
}

// NewMapService creates a new MapService.
func NewMapService(hub *bridge.Hub, logger *zap.Logger) *MapService {
	return &MapService{hub: hub, logger: logger}
}

// OpenSession mounts a map and performs its first load. A schedule that does
// not exist still opens, showing an empty map.
func (s *MapService) OpenSession(ctx context.Context, req OpenSessionRequest) (*MapSessionDTO, error) {
	scheduleID, err := parseScheduleID(req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if err := validateDate(req.SelectedDate); err != nil {
		return nil, err
	}

	session, err := s.hub.Open(ctx, scheduleID, req.SelectedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to open map session: %w", err)
	}
	return s.describe(ctx, session)
}

// ChangeSelection reloads a session for a new schedule or day.
func (s *MapService) ChangeSelection(ctx context.Context, sessionID string, req SelectionRequest) (*MapSessionDTO, error) {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateDate(req.SelectedDate); err != nil {
		return nil, err
	}

	scheduleID := session.Controller.ScheduleID()
	if req.ScheduleID != nil {
		if scheduleID, err = parseScheduleID(*req.ScheduleID); err != nil {
			return nil, err
		}
	}

	if req.Mode != nil {
		var mode itineraryDomain.TransportMode
		if *req.Mode != "" {
			if mode, err = itineraryDomain.ParseTransportMode(*req.Mode); err != nil {
				return nil, domain.NewValidationError(err.Error())
			}
		}
		session.Controller.OverrideMode(mode)
	}

	session.Controller.LoadItinerary(ctx, scheduleID, req.SelectedDate)
	return s.describe(ctx, session)
}

// GetSession returns a session's status and renderer snapshot.
func (s *MapService) GetSession(ctx context.Context, sessionID string) (*MapSessionDTO, error) {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, session)
}

// GeoJSON exports what the session's renderer has drawn.
func (s *MapService) GeoJSON(ctx context.Context, sessionID string) (json.RawMessage, error) {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := session.Renderer.GeoJSON(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export map: %w", err)
	}
	return raw, nil
}

// Click taps a marker as the user would.
func (s *MapService) Click(ctx context.Context, sessionID string, req ClickRequest) error {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return err
	}
	if req.Index == nil {
		return domain.NewValidationError("index is required")
	}
	if err := session.Renderer.Click(ctx, *req.Index); err != nil {
		if errors.Is(err, bridge.ErrRendererStopped) {
			return domain.NewNotFoundError("MapSession", sessionID)
		}
		return domain.NewValidationError(err.Error())
	}
	return nil
}

// IngestEvent delivers a renderer event sent by an out-of-process page.
// Unknown event types are accepted and ignored by the controller.
func (s *MapService) IngestEvent(ctx context.Context, sessionID string, ev bridge.Event) error {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return err
	}
	if ev.Type == "" {
		return domain.NewValidationError("event type is required")
	}
	return s.inject(ctx, session, ev)
}

// ReportLocation records the device location and asks the controller to
// show it, as the page would after its own location request.
func (s *MapService) ReportLocation(ctx context.Context, sessionID string, req LocationRequest) error {
	session, err := s.hub.Get(sessionID)
	if err != nil {
		return err
	}
	at := geo.LatLng{Lat: req.Lat, Lng: req.Lng}
	if req.PermissionGranted && !at.InRange() {
		return domain.NewValidationError("location is out of range")
	}

	session.Location.Report(at, req.PermissionGranted)
	return s.inject(ctx, session, bridge.Event{Type: bridge.EventGetCurrentLocation})
}

// CloseSession unmounts a session.
func (s *MapService) CloseSession(sessionID string) error {
	return s.hub.Close(sessionID)
}

func (s *MapService) inject(ctx context.Context, session *bridge.Session, ev bridge.Event) error {
	if err := session.Inject(ctx, ev); err != nil {
		switch {
		case errors.Is(err, bridge.ErrEventDropped):
			return domain.NewConflictError("map session is busy, retry the event")
		case errors.Is(err, bridge.ErrTransportClosed):
			return domain.NewNotFoundError("MapSession", session.ID)
		}
		return err
	}
	return nil
}

func (s *MapService) describe(ctx context.Context, session *bridge.Session) (*MapSessionDTO, error) {
	snap, err := session.Renderer.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read renderer state: %w", err)
	}
	return &MapSessionDTO{
		Status:   session.Controller.Status(),
		OpenedAt: session.OpenedAt,
		Renderer: snap,
	}, nil
}

func parseScheduleID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("invalid schedule ID")
	}
	return id, nil
}

func validateDate(date *string) error {
	if date == nil {
		return nil
	}
	if _, err := time.Parse(itineraryDomain.DateLayout, *date); err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid selected date: %s", *date))
	}
	return nil
}
