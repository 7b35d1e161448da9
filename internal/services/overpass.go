package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"

	log "github.com/sirupsen/logrus"
)

// OSMRoad is a road way fetched from OpenStreetMap via Overpass.
type OSMRoad struct {
	OSMWayID string            `json:"osm_way_id"`
	Name     string            `json:"name"`
	Geometry GeoJSONGeometry   `json:"geometry"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// OverpassService looks up named highway ways around a point and
// resolves way geometries by id.
type OverpassService struct {
	endpoint string
	client   *http.Client
}

func NewOverpassService(endpoint string) *OverpassService {
	return &OverpassService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type overpassResponse struct {
	Elements []struct {
		ID       int64             `json:"id"`
		Tags     map[string]string `json:"tags"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"elements"`
}

// SearchRoads finds highway ways whose name matches the query within
// radius meters of the given point.
func (s *OverpassService) SearchRoads(ctx context.Context, name string, lat, lng float64, radius int) ([]OSMRoad, error) {
	if radius <= 0 {
		radius = 1000
	}
	if radius > 50000 {
		radius = 50000
	}
	// Overpass regex values live inside double quotes in the query.
	escaped := strings.ReplaceAll(name, `"`, `\"`)
	query := fmt.Sprintf(`[out:json][timeout:25];(way["highway"]["name"~"%s",i](around:%d,%f,%f););out geom;`,
		escaped, radius, lat, lng)

	resp, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetWay resolves a single OSM way by id.
func (s *OverpassService) GetWay(ctx context.Context, wayID int64) (OSMRoad, error) {
	query := fmt.Sprintf(`[out:json][timeout:25];way(%d);out geom;`, wayID)

	roads, err := s.query(ctx, query)
	if err != nil {
		return OSMRoad{}, err
	}
	if len(roads) == 0 {
		return OSMRoad{}, apperr.New(apperr.NotFound, "OSM way not found")
	}
	return roads[0], nil
}

func (s *OverpassService) query(ctx context.Context, query string) ([]OSMRoad, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Map data service temporarily unavailable", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", placesUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Overpass request failed")
		return nil, apperr.Wrap(apperr.Upstream, "Map data service temporarily unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(apperr.Upstream, "Map data service temporarily unavailable",
			fmt.Errorf("overpass returned status %d", resp.StatusCode))
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Map data service temporarily unavailable", err)
	}

	roads := make([]OSMRoad, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		if len(el.Geometry) == 0 {
			continue
		}
		coords := make([][]float64, 0, len(el.Geometry))
		for _, pt := range el.Geometry {
			coords = append(coords, []float64{pt.Lon, pt.Lat})
		}
		name := el.Tags["name"]
		if name == "" {
			name = "Unnamed Road"
		}
		roads = append(roads, OSMRoad{
			OSMWayID: strconv.FormatInt(el.ID, 10),
			Name:     name,
			Geometry: GeoJSONGeometry{Type: "LineString", Coordinates: coords},
			Tags:     el.Tags,
		})
	}
	return roads, nil
}
