package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whobuiltmyroad/backend/internal/config"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
	"github.com/whobuiltmyroad/backend/internal/store"
)

type noLimit struct{}

func (noLimit) Admit(ctx context.Context, key string, class ratelimit.Class, now time.Time) error {
	return nil
}

func testRouter(t *testing.T) (*chi.Mux, *store.Memory, *services.ModerationService) {
	t.Helper()
	st := store.NewMemory()
	cfg := &config.Config{
		MaxImageSizeMB:    10,
		AllowedImageTypes: []string{"image/jpeg", "image/png", "image/webp"},
	}
	moderation := services.NewModerationService(st, nil)
	submission := services.NewSubmissionService(moderation, noLimit{}, nil, st, cfg)
	feedback := services.NewFeedbackService(st, noLimit{})
	mapview := services.NewMapService(st)
	h := NewRoadsHandler(submission, feedback, mapview, cfg)

	r := chi.NewRouter()
	r.Get("/roads", h.List)
	r.Get("/roads/map", h.Map)
	r.Get("/roads/{id}", h.Detail)
	r.Get("/roads/{id}/feedback", h.ListFeedback)
	return r, st, moderation
}

func seedRoad(t *testing.T, st *store.Memory, status models.ModerationStatus) *models.Road {
	t.Helper()
	road := &models.Road{
		RoadName:           "MG Road",
		Geometry:           []models.Coordinate{{77.59, 12.97}, {77.60, 12.98}},
		Contractor:         "Acme Infra",
		ConstructionStatus: "completed",
		AddedBy:            "asha",
		Moderation:         status,
		CreatedAt:          time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
	}
	if _, err := st.InsertRoad(context.Background(), road); err != nil {
		t.Fatal(err)
	}
	return road
}

func TestListEnvelope(t *testing.T) {
	r, st, _ := testRouter(t)
	seedRoad(t, st, models.StatusApproved)
	seedRoad(t, st, models.StatusPending)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roads", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Roads []models.Road `json:"roads"`
			Total int64         `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Fatalf("envelope status = %q", resp.Status)
	}
	if resp.Data.Total != 1 || len(resp.Data.Roads) != 1 {
		t.Fatalf("approved roads = %d, total %d", len(resp.Data.Roads), resp.Data.Total)
	}
}

func TestMapGeoJSON(t *testing.T) {
	r, st, _ := testRouter(t)
	seedRoad(t, st, models.StatusApproved)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roads/map", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	var fc services.GeoJSONCollection
	if err := json.Unmarshal(rec.Body.Bytes(), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("collection %q with %d features", fc.Type, len(fc.Features))
	}
}

func TestDetailHidesPendingFromAnonymous(t *testing.T) {
	r, st, _ := testRouter(t)
	road := seedRoad(t, st, models.StatusPending)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roads/"+road.ID.Hex(), nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "error" || resp.Message != "Road not found" {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestDetailBadIDIsValidationError(t *testing.T) {
	r, _, _ := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roads/not-hex", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFeedbackListUnknownRoad(t *testing.T) {
	r, _, _ := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roads/0123456789abcdef01234567/feedback", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
