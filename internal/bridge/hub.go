package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/common/domain"
)

// TransportFactory opens the transport for a new session.
type TransportFactory func(sessionID string) (Transport, error)

// MemoryTransports returns a factory for in-process pipes.
func MemoryTransports(buffer int) TransportFactory {
	return func(string) (Transport, error) { return NewMemoryTransport(buffer), nil }
}

// HubConfig tunes every session a hub opens.
type HubConfig struct {
	Conversion  ConversionSite
	RedrawDelay time.Duration
}

// Session is one mounted map: a controller, its renderer and the pipe
// between them.
type Session struct {
	ID         string
	Controller *Controller
	Renderer   *Renderer
	Surface    *HeadlessSurface
	Location   *DeviceLocation
	OpenedAt   time.Time

	transport Transport
	cancel    context.CancelFunc
	pumpDone  chan struct{}
}

// Hub owns all mounted sessions.
type Hub struct {
	deps       ControllerDeps
	cfg        HubConfig
	transports TransportFactory
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates a hub. deps.Location is ignored; each session gets its own
// DeviceLocation.
func NewHub(deps ControllerDeps, cfg HubConfig, transports TransportFactory, logger *zap.Logger) *Hub {
	if deps.Metrics == nil {
		deps.Metrics = NopRecorder{}
	}
	if transports == nil {
		transports = MemoryTransports(0)
	}
	return &Hub{
		deps:       deps,
		cfg:        cfg,
		transports: transports,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

// Open mounts a session and performs its first load before returning.
func (h *Hub) Open(ctx context.Context, scheduleID uuid.UUID, selectedDate *string) (*Session, error) {
	id := uuid.NewString()
	transport, err := h.transports(id)
	if err != nil {
		return nil, err
	}

	location := &DeviceLocation{}
	deps := h.deps
	deps.Location = location

	surface := NewHeadlessSurface()
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		Controller: NewController(id, deps, transport, h.cfg.Conversion, h.logger),
		Renderer:   NewRenderer(transport, surface, h.cfg.RedrawDelay, h.deps.Metrics, h.logger.With(zap.String("session_id", id))),
		Surface:    surface,
		Location:   location,
		OpenedAt:   time.Now().UTC(),
		transport:  transport,
		cancel:     cancel,
		pumpDone:   make(chan struct{}),
	}

	go s.Renderer.Run(runCtx)
	go s.pump(runCtx)

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	h.deps.Metrics.SessionOpened()

	h.logger.Info("map session opened", zap.String("session_id", id), zap.String("schedule_id", scheduleID.String()))
	s.Controller.LoadItinerary(ctx, scheduleID, selectedDate)
	return s, nil
}

// pump feeds renderer events to the controller in arrival order.
func (s *Session) pump(ctx context.Context) {
	defer close(s.pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.transport.Done():
			return
		case ev := <-s.transport.Events():
			s.Controller.OnRendererEvent(ctx, ev)
		}
	}
}

// Inject delivers an event as if the renderer had sent it.
func (s *Session) Inject(ctx context.Context, ev Event) error {
	return s.transport.SendEvent(ctx, ev)
}

// Get returns a mounted session.
func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("MapSession", id)
	}
	return s, nil
}

// Close unmounts a session.
func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return domain.NewNotFoundError("MapSession", id)
	}
	h.teardown(s)
	return nil
}

// CloseAll unmounts every session.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		h.teardown(s)
	}
}

func (h *Hub) teardown(s *Session) {
	s.cancel()
	<-s.Renderer.Done()
	<-s.pumpDone
	if err := s.transport.Close(); err != nil {
		h.logger.Warn("failed to close bridge transport", zap.String("session_id", s.ID), zap.Error(err))
	}
	h.deps.Metrics.SessionClosed()
	h.logger.Info("map session closed", zap.String("session_id", s.ID))
}

// Reload re-runs the load for every session showing scheduleID and returns
// how many were refreshed.
func (h *Hub) Reload(ctx context.Context, scheduleID uuid.UUID) int {
	h.mu.RLock()
	var targets []*Session
	for _, s := range h.sessions {
		if s.Controller.ScheduleID() == scheduleID {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Controller.LoadItinerary(ctx, scheduleID, s.Controller.SelectedDate())
	}
	return len(targets)
}

// Len returns the number of mounted sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
