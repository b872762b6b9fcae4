package itinerary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tripmate/service-routemap/internal/common/domain"
	"github.com/tripmate/service-routemap/internal/geo"
)

// DateLayout is the calendar date format used for days.
const DateLayout = "2006-01-02"

// Place is one stop within a day.
type Place struct {
	Order           int        `json:"order"`
	Title           string     `json:"title"`
	Address         string     `json:"address"`
	Coordinate      geo.LatLng `json:"coordinate"`
	Cost            int64      `json:"cost"`
	DurationMinutes int        `json:"duration_minutes"`
}

// Geocoded reports whether the place has a usable location.
func (p Place) Geocoded() bool { return p.Coordinate.Geocoded() }

// Day is a calendar date with its ordered places.
type Day struct {
	Date      string  `json:"date"`
	Places    []Place `json:"places"`
	TotalCost int64   `json:"total_cost"`
}

// Waypoint is the routing view of a geocoded place.
type Waypoint struct {
	geo.LatLng
	Title string `json:"title"`
}

// Itinerary is the aggregate root for a generated trip plan.
type Itinerary struct {
	id              uuid.UUID
	destination     string
	startDate       string
	endDate         string
	transportation  []string
	days            []Day
	totalCost       int64
	isAIRecommended bool

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewItinerary creates an itinerary. Places are renumbered 1..n per day in
// their given order and all cost totals are computed.
func NewItinerary(
	destination string,
	startDate string,
	endDate string,
	transportation []string,
	days []Day,
	isAIRecommended bool,
) (*Itinerary, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, domain.NewValidationError("destination is required")
	}
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid start date: %s", startDate))
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid end date: %s", endDate))
	}
	if end.Before(start) {
		return nil, domain.NewValidationError("end date must not be before start date")
	}

	normalized, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	it := &Itinerary{
		id:              uuid.New(),
		destination:     destination,
		startDate:       startDate,
		endDate:         endDate,
		transportation:  append([]string(nil), transportation...),
		days:            normalized,
		isAIRecommended: isAIRecommended,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}
	it.recomputeTotal()
	return it, nil
}

// ReconstructItinerary rebuilds an Itinerary from persistence data (no validation).
func ReconstructItinerary(
	id uuid.UUID,
	destination string,
	startDate string,
	endDate string,
	transportation []string,
	days []Day,
	totalCost int64,
	isAIRecommended bool,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Itinerary {
	return &Itinerary{
		id:              id,
		destination:     destination,
		startDate:       startDate,
		endDate:         endDate,
		transportation:  transportation,
		days:            days,
		totalCost:       totalCost,
		isAIRecommended: isAIRecommended,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

// ID returns the itinerary's unique identifier.
func (i *Itinerary) ID() uuid.UUID { return i.id }

// Destination returns the trip destination.
func (i *Itinerary) Destination() string { return i.destination }

// StartDate returns the first trip date.
func (i *Itinerary) StartDate() string { return i.startDate }

// EndDate returns the last trip date.
func (i *Itinerary) EndDate() string { return i.endDate }

// Transportation returns the traveller's transport preferences.
func (i *Itinerary) Transportation() []string { return append([]string(nil), i.transportation...) }

// Days returns a copy of the ordered days.
func (i *Itinerary) Days() []Day {
	out := make([]Day, len(i.days))
	for d, day := range i.days {
		out[d] = Day{Date: day.Date, TotalCost: day.TotalCost, Places: append([]Place(nil), day.Places...)}
	}
	return out
}

// TotalCost returns the sum of all day costs.
func (i *Itinerary) TotalCost() int64 { return i.totalCost }

// IsAIRecommended reports whether the plan came from the generation flow.
func (i *Itinerary) IsAIRecommended() bool { return i.isAIRecommended }

// Version returns the entity version for optimistic locking.
func (i *Itinerary) Version() int64 { return i.version }

// CreatedAt returns the creation timestamp.
func (i *Itinerary) CreatedAt() time.Time { return i.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (i *Itinerary) UpdatedAt() time.Time { return i.updatedAt }

// TransportMode derives the routing mode from the transport preferences.
func (i *Itinerary) TransportMode() TransportMode {
	return DeriveTransportMode(i.transportation)
}

// --- Behavior ---

// Regenerate replaces every day wholesale.
func (i *Itinerary) Regenerate(days []Day) error {
	normalized, err := normalizeDays(days)
	if err != nil {
		return err
	}
	i.days = normalized
	i.recomputeTotal()
	i.updatedAt = time.Now().UTC()
	return nil
}

// RemovePlace deletes the place with the given order from a day, then
// renumbers the remaining places 1..n and recomputes the day and trip totals.
func (i *Itinerary) RemovePlace(date string, order int) (Place, error) {
	d := i.dayIndex(date)
	if d < 0 {
		return Place{}, domain.NewNotFoundError("Day", date)
	}
	day := &i.days[d]

	idx := -1
	for p, place := range day.Places {
		if place.Order == order {
			idx = p
			break
		}
	}
	if idx < 0 {
		return Place{}, domain.NewNotFoundError("Place", fmt.Sprintf("%s#%d", date, order))
	}

	removed := day.Places[idx]
	places := make([]Place, 0, len(day.Places)-1)
	places = append(places, day.Places[:idx]...)
	places = append(places, day.Places[idx+1:]...)
	day.Places = places
	renumber(day)

	i.recomputeTotal()
	i.updatedAt = time.Now().UTC()
	return removed, nil
}

// Waypoints returns geocoded places in day order then place order. A
// non-nil date restricts the result to that day; an unknown date yields none.
func (i *Itinerary) Waypoints(date *string) []Waypoint {
	var out []Waypoint
	for _, day := range i.days {
		if date != nil && day.Date != *date {
			continue
		}
		for _, p := range day.Places {
			if !p.Geocoded() {
				continue
			}
			out = append(out, Waypoint{LatLng: p.Coordinate, Title: p.Title})
		}
	}
	return out
}


// IncrementVersion bumps the version for optimistic locking.
func (i *Itinerary) IncrementVersion() {
	i.version++
	i.updatedAt = time.Now().UTC()
}

func (i *Itinerary) dayIndex(date string) int {
	for d := range i.days {
		if i.days[d].Date == date {
			return d
		}
	}
	return -1
}

func (i *Itinerary) recomputeTotal() {
	var total int64
	for _, day := range i.days {
		total += day.TotalCost
	}
	i.totalCost = total
}

// renumber assigns contiguous 1-based orders and recomputes the day total.
func renumber(day *Day) {
	var total int64
	for p := range day.Places {
		day.Places[p].Order = p + 1
		total += day.Places[p].Cost
	}
	day.TotalCost = total
}

// normalizeDays validates input days, sorts them by date and places by their
// given order, and renumbers.
func normalizeDays(days []Day) ([]Day, error) {
	seen := make(map[string]bool, len(days))
	out := make([]Day, 0, len(days))
	for _, day := range days {
		if _, err := time.Parse(DateLayout, day.Date); err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid day date: %s", day.Date))
		}
		if seen[day.Date] {
			return nil, domain.NewValidationError(fmt.Sprintf("duplicate day: %s", day.Date))
		}
		seen[day.Date] = true

		places := append([]Place(nil), day.Places...)
		for _, p := range places {
			if strings.TrimSpace(p.Title) == "" {
				return nil, domain.NewValidationError(fmt.Sprintf("place title is required on %s", day.Date))
			}
			if p.Cost < 0 {
				return nil, domain.NewValidationError(fmt.Sprintf("place cost must not be negative: %s", p.Title))
			}
			if p.DurationMinutes < 0 {
				return nil, domain.NewValidationError(fmt.Sprintf("place duration must not be negative: %s", p.Title))
			}
		}
		sort.SliceStable(places, func(a, b int) bool { return places[a].Order < places[b].Order })

		d := Day{Date: day.Date, Places: places}
		renumber(&d)
		out = append(out, d)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out, nil
}
