// Package routing talks to the TMap routing and POI search APIs.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/geo"
)

// ConnectorMarker appears in the description of route segments that only
// bridge two stops and carry no travel geometry.
const ConnectorMarker = "경유지와 연결된 가상의 라인"

const (
	carPath        = "/tmap/routes?version=1"
	pedestrianPath = "/tmap/routes/pedestrian?version=1"
	poiPath        = "/tmap/pois"

	maxResponseBytes = 8 << 20
)

var (
	// ErrTooFewWaypoints is returned when a route is requested for fewer than two stops.
	ErrTooFewWaypoints = errors.New("route needs at least two waypoints")
	// ErrEmptyRoute is returned when the provider answers without usable geometry.
	ErrEmptyRoute = errors.New("route response has no path geometry")
)

// Config holds TMap client settings.
type Config struct {
	BaseURL string
	AppKey  string
	Timeout time.Duration
}

// Client calls the TMap HTTP APIs.
type Client struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a TMap client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		appKey:     cfg.AppKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// routeRequest is the TMap route search body. Coordinates are sent as strings.
type routeRequest struct {
	StartX       string `json:"startX"`
	StartY       string `json:"startY"`
	EndX         string `json:"endX"`
	EndY         string `json:"endY"`
	PassList     string `json:"passList,omitempty"`
	ReqCoordType string `json:"reqCoordType"`
	ResCoordType string `json:"resCoordType"`
	SearchOption string `json:"searchOption"`
	StartName    string `json:"startName"`
	EndName      string `json:"endName"`
}

// endpointFor maps a mode onto the TMap API path. TMap's transit API returns
// itineraries rather than GeoJSON, so transit is drawn as a walking path.
func endpointFor(mode itinerary.TransportMode) string {
	switch mode {
	case itinerary.ModeTransit, itinerary.ModePedestrian:
		return pedestrianPath
	default:
		return carPath
	}
}

// buildRouteRequest makes the first waypoint the origin, the last the
// destination, and every other one a fixed-order pass-through stop.
func buildRouteRequest(waypoints []itinerary.Waypoint) routeRequest {
	start, end := waypoints[0], waypoints[len(waypoints)-1]

	via := make([]string, 0, len(waypoints)-2)
	for _, w := range waypoints[1 : len(waypoints)-1] {
		via = append(via, formatCoord(w.Lng)+","+formatCoord(w.Lat))
	}

	return routeRequest{
		StartX:       formatCoord(start.Lng),
		StartY:       formatCoord(start.Lat),
		EndX:         formatCoord(end.Lng),
		EndY:         formatCoord(end.Lat),
		PassList:     strings.Join(via, "_"),
		ReqCoordType: "WGS84GEO",
		ResCoordType: "EPSG3857",
		SearchOption: "0",
		StartName:    nameOr(start.Title, "출발지"),
		EndName:      nameOr(end.Title, "도착지"),
	}
}

// Route requests a path through waypoints in order and returns the raw
// EPSG:3857 geometry with connector segments removed.
func (c *Client) Route(ctx context.Context, mode itinerary.TransportMode, waypoints []itinerary.Waypoint) ([]geo.Projected, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	body, err := json.Marshal(buildRouteRequest(waypoints))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointFor(mode), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create route request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("appKey", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call routing API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read route response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("routing API returned status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	path, err := ExtractPath(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("route received",
		zap.String("mode", mode.String()),
		zap.Int("waypoints", len(waypoints)),
		zap.Int("points", len(path)),
	)
	return path, nil
}

// ExtractPath parses a TMap GeoJSON response and concatenates the points of
// every LineString feature, in order, skipping synthetic connectors.
func ExtractPath(raw []byte) ([]geo.Projected, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse route response: %w", err)
	}

	var path []geo.Projected
	for _, f := range fc.Features {
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if IsConnector(f) {
			continue
		}
		for _, p := range line {
			path = append(path, geo.FromPoint(p))
		}
	}
	if len(path) == 0 {
		return nil, ErrEmptyRoute
	}
	return path, nil
}

// IsConnector reports whether a feature is a synthetic connector segment.
func IsConnector(f *geojson.Feature) bool {
	desc, _ := f.Properties["description"].(string)
	return strings.Contains(desc, ConnectorMarker)
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func nameOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// truncate cuts b to at most n bytes without splitting a rune.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + "..."
}
