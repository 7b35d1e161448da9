package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
)

// AdminHandler is the moderation surface. Every route is behind the
// admin token middleware.
type AdminHandler struct {
	moderation *services.ModerationService
	limiter    ratelimit.Limiter
}

func NewAdminHandler(moderation *services.ModerationService, limiter ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{moderation: moderation, limiter: limiter}
}

func (h *AdminHandler) admit(w http.ResponseWriter, r *http.Request) bool {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassAdmin, time.Now()); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// Pending lists roads awaiting a decision, newest first.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r) {
		return
	}
	skip, limit := pagination(r)
	roads, total, err := h.moderation.Pending(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK", map[string]interface{}{
		"roads": roads,
		"total": total,
		"skip":  skip,
		"limit": limit,
	})
}

// Approve publishes a pending road.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r) {
		return
	}
	road, err := h.moderation.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Road approved", road)
}

// Reject declines a pending road. The record is kept.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r) {
		return
	}
	road, err := h.moderation.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Road rejected", road)
}

// Delete removes a road along with its image and feedback.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r) {
		return
	}
	if err := h.moderation.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Road deleted", nil)
}
