package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/config"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/services"
)

// RoadRequest is the JSON body for road submissions and edits.
// Geometry is a list of [longitude, latitude] pairs.
type RoadRequest struct {
	RoadName               *string                `json:"road_name"`
	Geometry               []models.Coordinate    `json:"geometry"`
	Contractor             *string                `json:"contractor"`
	ApprovedBy             *string                `json:"approved_by"`
	TotalCost              *string                `json:"total_cost"`
	PromisedCompletionDate *string                `json:"promised_completion_date"`
	ActualCompletionDate   *string                `json:"actual_completion_date"`
	MaintenanceFirm        *string                `json:"maintenance_firm"`
	ConstructionStatus     *string                `json:"construction_status"`
	ExtraFields            map[string]interface{} `json:"extra_fields"`
	OSMWayID               *string                `json:"osm_way_id"`
}

type FeedbackRequest struct {
	Comment string `json:"comment"`
}

// RoadsHandler is the public road surface: browse the approved map,
// submit new roads, edit and illustrate your own, and leave feedback.
type RoadsHandler struct {
	submission *services.SubmissionService
	feedback   *services.FeedbackService
	mapview    *services.MapService
	cfg        *config.Config
}

func NewRoadsHandler(submission *services.SubmissionService, feedback *services.FeedbackService, mapview *services.MapService, cfg *config.Config) *RoadsHandler {
	return &RoadsHandler{submission: submission, feedback: feedback, mapview: mapview, cfg: cfg}
}

// List returns approved roads, paginated, newest first.
func (h *RoadsHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	roads, total, err := h.mapview.ListApproved(r.Context(), skip, limit)
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

// Map returns every approved road as a GeoJSON FeatureCollection.
func (h *RoadsHandler) Map(w http.ResponseWriter, r *http.Request) {
	fc, err := h.mapview.ProjectApproved(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(fc)
}

// Detail returns one road. Pending and rejected roads are only visible
// to their submitter and to admins.
func (h *RoadsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	var caller *services.Identity
	if id, ok := middleware.IdentityFrom(r); ok {
		caller = &id
	}

	road, err := h.mapview.Detail(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK", road)
}

// Create accepts a new road submission. It enters the moderation queue
// as pending.
func (h *RoadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r)
	if !ok {
		writeError(w, r, apperr.New(apperr.Authorization, "Authentication required"))
		return
	}

	var req RoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	road, err := h.submission.Create(r.Context(), caller, middleware.RateKey(r), SubmissionInputFrom(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Road submitted for moderation", road)
}

// Update applies a partial edit to a road.
func (h *RoadsHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r)
	if !ok {
		writeError(w, r, apperr.New(apperr.Authorization, "Authentication required"))
		return
	}

	var req RoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	err := h.submission.Update(r.Context(), caller, middleware.RateKey(r), chi.URLParam(r, "id"), services.SubmissionUpdate{
		RoadName:               req.RoadName,
		Geometry:               req.Geometry,
		Contractor:             req.Contractor,
		ApprovedBy:             req.ApprovedBy,
		TotalCost:              req.TotalCost,
		PromisedCompletionDate: req.PromisedCompletionDate,
		ActualCompletionDate:   req.ActualCompletionDate,
		MaintenanceFirm:        req.MaintenanceFirm,
		ConstructionStatus:     req.ConstructionStatus,
		ExtraFields:            req.ExtraFields,
		OSMWayID:               req.OSMWayID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Road updated", nil)
}

// AttachImage accepts a multipart upload and stores it as the road's
// illustration, replacing any previous one.
func (h *RoadsHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r)
	if !ok {
		writeError(w, r, apperr.New(apperr.Authorization, "Authentication required"))
		return
	}

	// One byte over the cap so the service can reject at the boundary.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxImageSizeBytes()+1024*1024)
	if err := r.ParseMultipartForm(h.cfg.MaxImageSizeBytes() + 1); err != nil {
		writeError(w, r, apperr.New(apperr.InvalidImage, "Could not parse upload"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "image file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.New(apperr.InvalidImage, "Could not read upload"))
		return
	}

	url, err := h.submission.AttachImage(r.Context(), caller, middleware.RateKey(r),
		chi.URLParam(r, "id"), header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Image uploaded", map[string]interface{}{"image_url": url})
}

// AddFeedback appends a comment to an approved road.
func (h *RoadsHandler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r)
	if !ok {
		writeError(w, r, apperr.New(apperr.Authorization, "Authentication required"))
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	fb, err := h.feedback.Add(r.Context(), caller, middleware.RateKey(r), chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Feedback added", fb)
}

// ListFeedback returns a road's feedback, oldest first.
func (h *RoadsHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	entries, total, err := h.feedback.List(r.Context(), chi.URLParam(r, "id"), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK", map[string]interface{}{
		"feedback": entries,
		"total":    total,
		"skip":     skip,
		"limit":    limit,
	})
}

// SubmissionInputFrom builds a full submission from the request body.
// Missing string fields become empty and fail required-field checks.
func SubmissionInputFrom(req RoadRequest) services.SubmissionInput {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return services.SubmissionInput{
		RoadName:               str(req.RoadName),
		Geometry:               req.Geometry,
		Contractor:             str(req.Contractor),
		ApprovedBy:             str(req.ApprovedBy),
		TotalCost:              str(req.TotalCost),
		PromisedCompletionDate: str(req.PromisedCompletionDate),
		ActualCompletionDate:   str(req.ActualCompletionDate),
		MaintenanceFirm:        str(req.MaintenanceFirm),
		ConstructionStatus:     str(req.ConstructionStatus),
		ExtraFields:            req.ExtraFields,
		OSMWayID:               str(req.OSMWayID),
	}
}
