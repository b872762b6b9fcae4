// Package geo converts routing provider coordinates into geographic ones.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// LatLng is a WGS84 geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinate in GeoJSON axis order.
func (l LatLng) Point() orb.Point { return orb.Point{l.Lng, l.Lat} }

// InRange reports whether the coordinate is finite and within geographic bounds.
func (l LatLng) InRange() bool {
	return finite(l.Lat) && finite(l.Lng) &&
		l.Lat >= -90 && l.Lat <= 90 &&
		l.Lng >= -180 && l.Lng <= 180
}

// Geocoded reports whether the coordinate carries a real location. The
// zero coordinate is what failed lookups produce, so it does not count.
func (l LatLng) Geocoded() bool {
	return l.InRange() && !(l.Lat == 0 && l.Lng == 0)
}

// Projected is a Web Mercator (EPSG:3857) coordinate in meters.
type Projected struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FromPoint reads an orb point in (x, y) order.
func FromPoint(p orb.Point) Projected { return Projected{X: p[0], Y: p[1]} }

// ToLatLng converts a single point. When the input is not finite or the
// result falls outside geographic bounds, the original values are returned
// unconverted (x as lng, y as lat) and ok is false.
func ToLatLng(p Projected) (ll LatLng, ok bool) {
	raw := LatLng{Lat: p.Y, Lng: p.X}
	if !finite(p.X) || !finite(p.Y) {
		return raw, false
	}

	w := project.Mercator.ToWGS84(orb.Point{p.X, p.Y})
	ll = LatLng{Lat: w.Lat(), Lng: w.Lon()}
	if !ll.InRange() {
		return raw, false
	}
	return ll, true
}

// ConvertPath converts every point, keeping unconvertible points in place so
// the path stays continuous. It returns the number of points that fell back.
func ConvertPath(points []Projected) ([]LatLng, int) {
	out := make([]LatLng, 0, len(points))
	fallbacks := 0
	for _, p := range points {
		ll, ok := ToLatLng(p)
		if !ok {
			fallbacks++
		}
		out = append(out, ll)
	}
	return out, fallbacks
}

// ToProjected is the inverse of ToLatLng.
func ToProjected(l LatLng) Projected {
	return FromPoint(project.WGS84.ToMercator(l.Point()))
}

// EqualPaths compares two paths point by point.
func EqualPaths(a, b []LatLng) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
