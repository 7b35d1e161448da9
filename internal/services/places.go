package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
)

const placesUserAgent = "WhoBuiltMyRoad/1.0"

// Place is a single geocoding result.
type Place struct {
	DisplayName string            `json:"display_name"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	Type        string            `json:"type"`
	Importance  float64           `json:"importance"`
	Address     map[string]string `json:"address,omitempty"`
}

// PlacesService proxies free-text location search to a Nominatim
// instance so the frontend never talks to it directly.
type PlacesService struct {
	baseURL string
	client  *http.Client
}

func NewPlacesService(baseURL string) *PlacesService {
	return &PlacesService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Search geocodes a free-text query. Upstream failures are reported as
// upstream errors so callers map them to 502, never 500.
func (s *PlacesService) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Search service temporarily unavailable", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", placesUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Search service temporarily unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(apperr.Upstream, "Search service temporarily unavailable",
			fmt.Errorf("nominatim returned status %d", resp.StatusCode))
	}

	var raw []struct {
		DisplayName string            `json:"display_name"`
		Lat         string            `json:"lat"`
		Lon         string            `json:"lon"`
		Type        string            `json:"type"`
		Importance  float64           `json:"importance"`
		Address     map[string]string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Search service temporarily unavailable", err)
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		places = append(places, Place{
			DisplayName: r.DisplayName,
			Lat:         lat,
			Lng:         lng,
			Type:        r.Type,
			Importance:  r.Importance,
			Address:     r.Address,
		})
	}
	return places, nil
}
