package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/whobuiltmyroad/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process Store. A single mutex serializes all writes,
// which gives the same conditional-update semantics as the Mongo
// implementation's filtered UpdateOne.
type Memory struct {
	mu       sync.Mutex
	roads    map[string]models.Road
	feedback map[string][]models.Feedback // keyed by road id
}

func NewMemory() *Memory {
	return &Memory{
		roads:    make(map[string]models.Road),
		feedback: make(map[string][]models.Feedback),
	}
}

func (m *Memory) InsertRoad(_ context.Context, road *models.Road) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if road.ID.IsZero() {
		road.ID = primitive.NewObjectID()
	}
	id := road.ID.Hex()
	m.roads[id] = *road
	return id, nil
}

func (m *Memory) GetRoad(_ context.Context, id string) (*models.Road, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	road, ok := m.roads[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := road
	return &out, nil
}

func (m *Memory) ListRoads(_ context.Context, status models.ModerationStatus, skip, limit int) ([]models.Road, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Road
	for _, road := range m.roads {
		if status == "" || road.Moderation == status {
			matched = append(matched, road)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.Hex() > matched[j].ID.Hex()
	})

	total := int64(len(matched))
	if skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *Memory) UpdateRoad(_ context.Context, id string, patch RoadPatch, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	road, ok := m.roads[id]
	if !ok {
		return ErrNotFound
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&road.RoadName, patch.RoadName)
	applyString(&road.Contractor, patch.Contractor)
	applyString(&road.ApprovedBy, patch.ApprovedBy)
	applyString(&road.TotalCost, patch.TotalCost)
	applyString(&road.PromisedCompletionDate, patch.PromisedCompletionDate)
	applyString(&road.ActualCompletionDate, patch.ActualCompletionDate)
	applyString(&road.MaintenanceFirm, patch.MaintenanceFirm)
	applyString(&road.ConstructionStatus, patch.ConstructionStatus)
	applyString(&road.OSMWayID, patch.OSMWayID)
	applyString(&road.ImageURL, patch.ImageURL)

	if patch.Geometry != nil {
		road.Geometry = patch.Geometry
	}
	if patch.ExtraFields != nil {
		road.ExtraFields = patch.ExtraFields
	}
	if patch.ForceStatus != nil {
		road.Moderation = *patch.ForceStatus
	}
	road.UpdatedAt = now

	m.roads[id] = road
	return nil
}

func (m *Memory) TransitionStatus(_ context.Context, id string, from, to models.ModerationStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	road, ok := m.roads[id]
	if !ok {
		return ErrNotFound
	}
	if road.Moderation != from {
		return ErrConflict
	}

	road.Moderation = to
	road.UpdatedAt = now
	m.roads[id] = road
	return nil
}

func (m *Memory) DeleteRoad(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roads[id]; !ok {
		return ErrNotFound
	}
	delete(m.roads, id)
	return nil
}

func (m *Memory) FindRoadByOSMWay(_ context.Context, osmWayID string, status models.ModerationStatus) (*models.Road, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, road := range m.roads {
		if road.OSMWayID == osmWayID && (status == "" || road.Moderation == status) {
			out := road
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) InsertFeedback(_ context.Context, fb *models.Feedback) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fb.ID.IsZero() {
		fb.ID = primitive.NewObjectID()
	}
	m.feedback[fb.RoadID] = append(m.feedback[fb.RoadID], *fb)
	return fb.ID.Hex(), nil
}

func (m *Memory) ListFeedback(_ context.Context, roadID string, skip, limit int) ([]models.Feedback, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.feedback[roadID]
	total := int64(len(entries))

	if skip >= len(entries) {
		return nil, total, nil
	}
	out := make([]models.Feedback, len(entries)-skip)
	copy(out, entries[skip:])
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *Memory) DeleteFeedbackForRoad(_ context.Context, roadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.feedback, roadID)
	return nil
}
