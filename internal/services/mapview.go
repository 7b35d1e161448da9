package services

import (
	"context"
	"errors"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/store"
)

// GeoJSONFeature is one road on the public map.
type GeoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   GeoJSONGeometry        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type GeoJSONGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type GeoJSONCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// MapService is the read-only public projection over the store: only
// approved roads are ever surfaced, in created-at descending order with
// id descending as tiebreak. The ordering is total and stable, so
// clients can page and cache against it.
type MapService struct {
	store store.RoadStore
}

func NewMapService(st store.RoadStore) *MapService {
	return &MapService{store: st}
}

// ListApproved returns a page of approved roads plus the total count.
func (s *MapService) ListApproved(ctx context.Context, skip, limit int) ([]models.Road, int64, error) {
	roads, total, err := s.store.ListRoads(ctx, models.StatusApproved, skip, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "Failed to fetch roads", err)
	}
	return roads, total, nil
}

// ProjectApproved builds the GeoJSON FeatureCollection for the map.
func (s *MapService) ProjectApproved(ctx context.Context) (*GeoJSONCollection, error) {
	roads, _, err := s.store.ListRoads(ctx, models.StatusApproved, 0, 0)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Failed to fetch roads", err)
	}

	features := make([]GeoJSONFeature, 0, len(roads))
	for _, road := range roads {
		coords := make([][]float64, len(road.Geometry))
		for i, c := range road.Geometry {
			coords[i] = []float64{c.Lng(), c.Lat()}
		}
		features = append(features, GeoJSONFeature{
			Type:     "Feature",
			Geometry: GeoJSONGeometry{Type: "LineString", Coordinates: coords},
			Properties: map[string]interface{}{
				"id":                  road.ID.Hex(),
				"road_name":           road.RoadName,
				"contractor":          road.Contractor,
				"construction_status": road.ConstructionStatus,
				"total_cost":          road.TotalCost,
			},
		})
	}

	return &GeoJSONCollection{Type: "FeatureCollection", Features: features}, nil
}

// Detail returns the full record for an approved road, or for any road
// when the caller is its submitter or an admin. Everyone else gets
// not_found rather than authorization_error, so the existence of
// pending submissions is not leaked.
func (s *MapService) Detail(ctx context.Context, caller *Identity, id string) (*models.Road, error) {
	if err := ValidateRoadID(id); err != nil {
		return nil, err
	}

	road, err := s.store.GetRoad(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}

	if road.Moderation == models.StatusApproved {
		return road, nil
	}
	if caller != nil && caller.CanEdit(road.AddedBy) {
		return road, nil
	}
	return nil, apperr.New(apperr.NotFound, "Road not found")
}
