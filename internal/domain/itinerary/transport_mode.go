package itinerary

import (
	"fmt"
	"strings"
)

// TransportMode is how the traveller moves between places.
type TransportMode string

const (
	ModeCar        TransportMode = "car"
	ModeTaxi       TransportMode = "taxi"
	ModeTransit    TransportMode = "transit"
	ModePedestrian TransportMode = "pedestrian"
)

// modePriority is the order in which preferences win when several match.
var modePriority = []TransportMode{ModeCar, ModeTaxi, ModeTransit, ModePedestrian}

// modeVocabulary lists the preference words, Korean and English, naming each mode.
var modeVocabulary = map[TransportMode][]string{
	ModeCar:        {"자가용", "자동차", "차", "car"},
	ModeTaxi:       {"택시", "taxi"},
	ModeTransit:    {"대중교통", "버스", "지하철", "transit", "public"},
	ModePedestrian: {"걷기", "도보", "walk", "walking", "pedestrian"},
}

// IsValid returns true if the mode is recognized.
func (m TransportMode) IsValid() bool {
	for _, known := range modePriority {
		if m == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the mode.
func (m TransportMode) String() string {
	return string(m)
}

// ParseTransportMode converts a string to a TransportMode, returning an error if invalid.
func ParseTransportMode(s string) (TransportMode, error) {
	mode := TransportMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid transport mode: %s", s)
	}
	return mode, nil
}

// DeriveTransportMode picks the highest-priority mode named in prefs:
// car, then taxi, then transit, then pedestrian. Unmatched or empty
// preferences resolve to car.
func DeriveTransportMode(prefs []string) TransportMode {
	words := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		words[strings.ToLower(strings.TrimSpace(p))] = true
	}
	for _, mode := range modePriority {
		for _, w := range modeVocabulary[mode] {
			if words[w] {
				return mode
			}
		}
	}
	return ModeCar
}
