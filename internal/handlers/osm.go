package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
	"github.com/whobuiltmyroad/backend/internal/store"
)

// OSMHandler finds roads on OpenStreetMap so submitters can link their
// record to an existing way instead of drawing geometry by hand.
type OSMHandler struct {
	overpass *services.OverpassService
	roads    store.RoadStore
	limiter  ratelimit.Limiter
}

func NewOSMHandler(overpass *services.OverpassService, roads store.RoadStore, limiter ratelimit.Limiter) *OSMHandler {
	return &OSMHandler{overpass: overpass, roads: roads, limiter: limiter}
}

// Search finds named highway ways near a point. Each result notes
// whether an approved road already claims that way.
func (h *OSMHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassRead, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		writeError(w, r, apperr.New(apperr.Validation, "name is required"))
		return
	}
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, r, apperr.New(apperr.Validation, "lat and lng must be valid coordinates"))
		return
	}
	radius, _ := strconv.Atoi(q.Get("radius"))

	ways, err := h.overpass.SearchRoads(r.Context(), name, lat, lng, radius)
	if err != nil {
		writeError(w, r, err)
		return
	}

	type result struct {
		services.OSMRoad
		ExistingRoadID string `json:"existing_road_id,omitempty"`
	}
	results := make([]result, 0, len(ways))
	for _, way := range ways {
		res := result{OSMRoad: way}
		if existing, err := h.roads.FindRoadByOSMWay(r.Context(), way.OSMWayID, models.StatusApproved); err == nil {
			res.ExistingRoadID = existing.ID.Hex()
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, "OK", map[string]interface{}{"ways": results})
}

// Way resolves one OSM way by id.
func (h *OSMHandler) Way(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassRead, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	wayID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || wayID <= 0 {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid way ID"))
		return
	}

	way, err := h.overpass.GetWay(r.Context(), wayID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK", way)
}
