package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/tripmate/service-routemap/internal/geo"
)

type poiResponse struct {
	SearchPoiInfo struct {
		Pois struct {
			Poi []struct {
				Name     string `json:"name"`
				FrontLat string `json:"frontLat"`
				FrontLon string `json:"frontLon"`
				NoorLat  string `json:"noorLat"`
				NoorLon  string `json:"noorLon"`
			} `json:"poi"`
		} `json:"pois"`
	} `json:"searchPoiInfo"`
}

// Lookup searches POIs by keyword and returns the first hit's coordinate.
func (c *Client) Lookup(ctx context.Context, keyword string) (geo.LatLng, error) {
	q := url.Values{}
	q.Set("version", "1")
	q.Set("format", "json")
	q.Set("searchKeyword", keyword)
	q.Set("searchType", "all")
	q.Set("reqCoordType", "WGS84GEO")
	q.Set("resCoordType", "WGS84GEO")
	q.Set("count", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+poiPath+"?"+q.Encode(), nil)
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("failed to create poi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("appKey", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("failed to call poi API: %w", err)
	}
	defer resp.Body.Close()

	// TMap answers 204 when nothing matches.
	if resp.StatusCode == http.StatusNoContent {
		return geo.LatLng{}, fmt.Errorf("no poi found for %q", keyword)
	}
	if resp.StatusCode != http.StatusOK {
		return geo.LatLng{}, fmt.Errorf("poi API returned status %d", resp.StatusCode)
	}

	var body poiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geo.LatLng{}, fmt.Errorf("failed to decode poi response: %w", err)
	}
	pois := body.SearchPoiInfo.Pois.Poi
	if len(pois) == 0 {
		return geo.LatLng{}, fmt.Errorf("no poi found for %q", keyword)
	}

	lat, lng := parseCoord(pois[0].FrontLat), parseCoord(pois[0].FrontLon)
	if lat == 0 && lng == 0 {
		lat, lng = parseCoord(pois[0].NoorLat), parseCoord(pois[0].NoorLon)
	}
	return geo.LatLng{Lat: lat, Lng: lng}, nil
}

// Geocode resolves a place name, falling back to the zero coordinate on any
// failure. Callers treat the zero coordinate as not geocoded.
func (c *Client) Geocode(ctx context.Context, keyword string) geo.LatLng {
	ll, err := c.Lookup(ctx, keyword)
	if err != nil {
		c.logger.Warn("geocode failed", zap.String("keyword", keyword), zap.Error(err))
		return geo.LatLng{}
	}
	if !ll.InRange() {
		c.logger.Warn("geocode returned invalid coordinate", zap.String("keyword", keyword))
		return geo.LatLng{}
	}
	return ll
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
