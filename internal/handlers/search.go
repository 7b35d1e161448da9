package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
)

// SearchHandler proxies free-text location search.
type SearchHandler struct {
	places  *services.PlacesService
	limiter ratelimit.Limiter
}

func NewSearchHandler(places *services.PlacesService, limiter ratelimit.Limiter) *SearchHandler {
	return &SearchHandler{places: places, limiter: limiter}
}

// Search geocodes a place name.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassRead, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		writeError(w, r, apperr.New(apperr.Validation, "q must be at least 2 characters"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.places.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK", map[string]interface{}{"results": results})
}
