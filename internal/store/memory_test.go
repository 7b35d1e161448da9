package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/whobuiltmyroad/backend/internal/models"
)

func seedRoad(t *testing.T, m *Memory, name string, status models.ModerationStatus, createdAt time.Time) string {
	t.Helper()
	id, err := m.InsertRoad(context.Background(), &models.Road{
		RoadName:   name,
		Geometry:   []models.Coordinate{{77.59, 12.97}, {77.60, 12.98}},
		AddedBy:    "asha",
		Moderation: status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	})
	if err != nil {
		t.Fatalf("seed road: %v", err)
	}
	return id
}

func TestTransitionStatusHappyPath(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusPending, time.Now())

	if err := m.TransitionStatus(context.Background(), id, models.StatusPending, models.StatusApproved, time.Now()); err != nil {
		t.Fatalf("pending -> approved failed: %v", err)
	}

	road, _ := m.GetRoad(context.Background(), id)
	if road.Moderation != models.StatusApproved {
		t.Errorf("status = %s, want approved", road.Moderation)
	}
}

func TestTransitionStatusConflictAndNotFound(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusApproved, time.Now())

	err := m.TransitionStatus(context.Background(), id, models.StatusPending, models.StatusApproved, time.Now())
	if !errors.Is(err, ErrConflict) {
		t.Errorf("transition from wrong state: got %v, want ErrConflict", err)
	}

	err = m.TransitionStatus(context.Background(), "65f000000000000000000000", models.StatusPending, models.StatusApproved, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("transition of unknown id: got %v, want ErrNotFound", err)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusPending, time.Now())

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for _, to := range []models.ModerationStatus{models.StatusApproved, models.StatusRejected} {
		wg.Add(1)
		go func(to models.ModerationStatus) {
			defer wg.Done()
			results <- m.TransitionStatus(context.Background(), id, models.StatusPending, to, time.Now())
		}(to)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected transition error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("got %d winners and %d conflicts, want exactly 1 of each", wins, conflicts)
	}
}

func TestListRoadsOrderingIsStable(t *testing.T) {
	m := NewMemory()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedRoad(t, m, fmt.Sprintf("Road %d", i), models.StatusApproved, base.Add(time.Duration(i)*time.Minute))
	}

	first, total, err := m.ListRoads(context.Background(), models.StatusApproved, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	// Newest first, and a repeat read sees the identical order.
	for i := 1; i < len(first); i++ {
		if first[i].CreatedAt.After(first[i-1].CreatedAt) {
			t.Fatal("list not ordered newest first")
		}
	}
	second, _, _ := m.ListRoads(context.Background(), models.StatusApproved, 0, 0)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatal("ordering changed between reads")
		}
	}
}

func TestListRoadsPagination(t *testing.T) {
	m := NewMemory()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		seedRoad(t, m, fmt.Sprintf("Road %d", i), models.StatusPending, base.Add(time.Duration(i)*time.Minute))
	}

	page, total, err := m.ListRoads(context.Background(), models.StatusPending, 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if total != 7 || len(page) != 2 {
		t.Errorf("skip=5 limit=5: got %d of %d, want 2 of 7", len(page), total)
	}

	empty, _, _ := m.ListRoads(context.Background(), models.StatusPending, 10, 5)
	if len(empty) != 0 {
		t.Errorf("page past the end returned %d roads", len(empty))
	}
}

func TestUpdateRoadPatchesOnlyGivenFields(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "Old Name", models.StatusApproved, time.Now())

	name := "New Name"
	contractor := "Sharma Infra"
	now := time.Now()
	err := m.UpdateRoad(context.Background(), id, RoadPatch{RoadName: &name, Contractor: &contractor}, now)
	if err != nil {
		t.Fatal(err)
	}

	road, _ := m.GetRoad(context.Background(), id)
	if road.RoadName != "New Name" || road.Contractor != "Sharma Infra" {
		t.Errorf("patched fields not applied: %+v", road)
	}
	if road.Moderation != models.StatusApproved {
		t.Errorf("edit changed status to %s", road.Moderation)
	}
	if road.AddedBy != "asha" {
		t.Errorf("untouched field changed: %q", road.AddedBy)
	}
	if !road.UpdatedAt.Equal(now) {
		t.Error("updated_at not refreshed")
	}
}

func TestUpdateRoadForceStatus(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusApproved, time.Now())

	name := "MG Road Extension"
	pending := models.StatusPending
	if err := m.UpdateRoad(context.Background(), id, RoadPatch{RoadName: &name, ForceStatus: &pending}, time.Now()); err != nil {
		t.Fatal(err)
	}

	road, _ := m.GetRoad(context.Background(), id)
	if road.Moderation != models.StatusPending {
		t.Errorf("status = %s, want pending after re-moderation edit", road.Moderation)
	}
}

func TestFeedbackCreationOrderAndWeakReference(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusApproved, time.Now())

	for i := 0; i < 3; i++ {
		_, err := m.InsertFeedback(context.Background(), &models.Feedback{
			RoadID:    id,
			Author:    "ravi",
			Comment:   fmt.Sprintf("comment %d", i),
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := m.ListFeedback(context.Background(), id, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	for i, e := range entries {
		if e.Comment != fmt.Sprintf("comment %d", i) {
			t.Errorf("entry %d out of creation order: %q", i, e.Comment)
		}
	}

	// Deleting the road does not cascade; feedback cleanup is explicit.
	if err := m.DeleteRoad(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	_, total, _ = m.ListFeedback(context.Background(), id, 0, 0)
	if total != 3 {
		t.Errorf("feedback removed implicitly with road, total = %d", total)
	}

	m.DeleteFeedbackForRoad(context.Background(), id)
	_, total, _ = m.ListFeedback(context.Background(), id, 0, 0)
	if total != 0 {
		t.Errorf("explicit cleanup left %d entries", total)
	}
}

func TestFindRoadByOSMWay(t *testing.T) {
	m := NewMemory()
	id := seedRoad(t, m, "MG Road", models.StatusApproved, time.Now())
	way := "way/123456"
	if err := m.UpdateRoad(context.Background(), id, RoadPatch{OSMWayID: &way}, time.Now()); err != nil {
		t.Fatal(err)
	}

	road, err := m.FindRoadByOSMWay(context.Background(), way, models.StatusApproved)
	if err != nil {
		t.Fatalf("linked road not found: %v", err)
	}
	if road.ID.Hex() != id {
		t.Error("wrong road returned for OSM way")
	}

	if _, err := m.FindRoadByOSMWay(context.Background(), way, models.StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("status filter ignored: %v", err)
	}
}
