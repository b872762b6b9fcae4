package bridge

import (
	"sort"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tripmate/service-routemap/internal/geo"
)

// ShapeID identifies something drawn on a surface. Zero means none.
type ShapeID int

// MarkerSize is a marker's size tier.
type MarkerSize string

const (
	SizeSmall  MarkerSize = "small"
	SizeMedium MarkerSize = "medium"
	SizeLarge  MarkerSize = "large"
)

// SizeForZoom maps a zoom level onto a marker size tier.
func SizeForZoom(zoom int) MarkerSize {
	switch {
	case zoom < 12:
		return SizeSmall
	case zoom < 15:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// MarkerSpec describes a marker to draw.
type MarkerSpec struct {
	Position geo.LatLng
	Label    string
	Title    string
	Size     MarkerSize
	User     bool
}

// MapSurface is the map engine the renderer draws on. Implementations are
// only called from the renderer goroutine.
type MapSurface interface {
	AddMarker(spec MarkerSpec) ShapeID
	AddPolyline(path []geo.LatLng) ShapeID
	AddCircle(center geo.LatLng, radiusMeters float64) ShapeID
	Remove(id ShapeID)
	SetPopup(id ShapeID, open bool)
	SetMarkerSize(id ShapeID, size MarkerSize)
	SetCenter(center geo.LatLng)
	SetZoom(zoom int)
}

// Exporter is implemented by surfaces that can render their contents as GeoJSON.
type Exporter interface {
	Export() *geojson.FeatureCollection
}

type shapeKind string

const (
	kindMarker   shapeKind = "marker"
	kindPolyline shapeKind = "polyline"
	kindCircle   shapeKind = "circle"
)

type shape struct {
	kind      shapeKind
	marker    MarkerSpec
	path      []geo.LatLng
	center    geo.LatLng
	radius    float64
	popupOpen bool
}

// HeadlessSurface records drawing calls in memory so a thin client can
// mirror them. It is safe to read from other goroutines.
type HeadlessSurface struct {
	mu     sync.Mutex
	next   ShapeID
	shapes map[ShapeID]*shape
	center geo.LatLng
	zoom   int

	polylineDraws int
}

// NewHeadlessSurface creates an empty surface.
func NewHeadlessSurface() *HeadlessSurface {
	return &HeadlessSurface{shapes: make(map[ShapeID]*shape)}
}

func (s *HeadlessSurface) add(sh *shape) ShapeID {
	s.next++
	s.shapes[s.next] = sh
	return s.next
}

func (s *HeadlessSurface) AddMarker(spec MarkerSpec) ShapeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(&shape{kind: kindMarker, marker: spec})
}

func (s *HeadlessSurface) AddPolyline(path []geo.LatLng) ShapeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polylineDraws++
	return s.add(&shape{kind: kindPolyline, path: append([]geo.LatLng(nil), path...)})
}

func (s *HeadlessSurface) AddCircle(center geo.LatLng, radiusMeters float64) ShapeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(&shape{kind: kindCircle, center: center, radius: radiusMeters})
}

func (s *HeadlessSurface) Remove(id ShapeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shapes, id)
}

func (s *HeadlessSurface) SetPopup(id ShapeID, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.shapes[id]; ok {
		sh.popupOpen = open
	}
}

func (s *HeadlessSurface) SetMarkerSize(id ShapeID, size MarkerSize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.shapes[id]; ok && sh.kind == kindMarker {
		sh.marker.Size = size
	}
}

func (s *HeadlessSurface) SetCenter(center geo.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = center
}

func (s *HeadlessSurface) SetZoom(zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = zoom
}

// PolylineDraws counts every polyline ever added.
func (s *HeadlessSurface) PolylineDraws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polylineDraws
}

// Counts returns how many shapes of each kind are on the surface.
func (s *HeadlessSurface) Counts() (markers, polylines, circles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shapes {
		switch sh.kind {
		case kindMarker:
			markers++
		case kindPolyline:
			polylines++
		case kindCircle:
			circles++
		}
	}
	return
}

// Export renders the surface as a FeatureCollection in draw order.
func (s *HeadlessSurface) Export() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.shapes))
	for id := range s.shapes {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		sh := s.shapes[ShapeID(id)]
		var f *geojson.Feature
		switch sh.kind {
		case kindMarker:
			f = geojson.NewFeature(sh.marker.Position.Point())
			f.Properties["label"] = sh.marker.Label
			f.Properties["title"] = sh.marker.Title
			f.Properties["size"] = string(sh.marker.Size)
			f.Properties["user"] = sh.marker.User
			f.Properties["popup_open"] = sh.popupOpen
		case kindPolyline:
			line := make(orb.LineString, len(sh.path))
			for i, p := range sh.path {
				line[i] = p.Point()
			}
			f = geojson.NewFeature(line)
		case kindCircle:
			f = geojson.NewFeature(sh.center.Point())
			f.Properties["radius_m"] = sh.radius
		}
		f.ID = strconv.Itoa(id)
		f.Properties["kind"] = string(sh.kind)
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"center": []float64{s.center.Lng, s.center.Lat},
		"zoom":   s.zoom,
	}
	return fc
}
