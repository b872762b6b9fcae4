package application

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tripmate/service-routemap/internal/common/domain"
	feedbackDomain "github.com/tripmate/service-routemap/internal/domain/feedback"
	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

// memItineraryRepo stores copies so callers never share an aggregate.
type memItineraryRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*itineraryDomain.Itinerary
}

func newMemItineraryRepo() *memItineraryRepo {
	return &memItineraryRepo{items: make(map[uuid.UUID]*itineraryDomain.Itinerary)}
}

func clone(it *itineraryDomain.Itinerary) *itineraryDomain.Itinerary {
	return itineraryDomain.ReconstructItinerary(
		it.ID(), it.Destination(), it.StartDate(), it.EndDate(), it.Transportation(), it.Days(),
		it.TotalCost(), it.IsAIRecommended(), it.Version(), it.CreatedAt(), it.UpdatedAt(),
	)
}

func (r *memItineraryRepo) FindByID(_ context.Context, id uuid.UUID) (*itineraryDomain.Itinerary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("Itinerary", id.String())
	}
	return clone(it), nil
}

func (r *memItineraryRepo) Save(_ context.Context, it *itineraryDomain.Itinerary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID()] = clone(it)
	return nil
}

func (r *memItineraryRepo) Update(_ context.Context, it *itineraryDomain.Itinerary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[it.ID()]
	if !ok || cur.Version() != it.Version()-1 {
		return domain.NewConflictError("itinerary was modified by another transaction")
	}
	r.items[it.ID()] = clone(it)
	return nil
}

type memFeedbackRepo struct {
	mu      sync.Mutex
	entries []*feedbackDomain.Feedback
}

func (r *memFeedbackRepo) Save(_ context.Context, f *feedbackDomain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, f)
	return nil
}

func (r *memFeedbackRepo) FindByItineraryID(_ context.Context, id uuid.UUID) ([]*feedbackDomain.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*feedbackDomain.Feedback
	for _, f := range r.entries {
		if f.ItineraryID() == id {
			out = append(out, f)
		}
	}
	return out, nil
}

// mapGeocoder knows a fixed set of keywords.
type mapGeocoder struct {
	mu      sync.Mutex
	known   map[string]geo.LatLng
	queries []string
}

func (g *mapGeocoder) Geocode(_ context.Context, keyword string) geo.LatLng {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, keyword)
	return g.known[keyword]
}

type published struct {
	topic, eventType, key string
	data                  interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic, eventType, key string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, eventType: eventType, key: key, data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.eventType
	}
	return out
}

type countingReloader struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *countingReloader) Reload(_ context.Context, id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return 1
}

type geocodeCounter struct{ n int }

func (c *geocodeCounter) GeocodeFailure() { c.n++ }

func ptr[T any](v T) *T { return &v }
