package services

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/config"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/store"
)

const (
	maxNameLen  = 200
	maxShortLen = 100
	minGeometry = 2
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// sanitizeText strips HTML tags and surrounding whitespace from
// free-text fields before they reach the store.
func sanitizeText(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// SubmissionInput is a full road submission.
type SubmissionInput struct {
	RoadName               string
	Geometry               []models.Coordinate
	Contractor             string
	ApprovedBy             string
	TotalCost              string
	PromisedCompletionDate string
	ActualCompletionDate   string
	MaintenanceFirm        string
	ConstructionStatus     string
	ExtraFields            map[string]interface{}
	OSMWayID               string
}

// SubmissionUpdate is a partial edit; nil fields are untouched.
type SubmissionUpdate struct {
	RoadName               *string
	Geometry               []models.Coordinate
	Contractor             *string
	ApprovedBy             *string
	TotalCost              *string
	PromisedCompletionDate *string
	ActualCompletionDate   *string
	MaintenanceFirm        *string
	ConstructionStatus     *string
	ExtraFields            map[string]interface{}
	OSMWayID               *string
}

// SubmissionService validates and normalizes untrusted public writes.
// Every operation checks the rate limiter before any other work, so
// abusive traffic is turned away as cheaply as possible.
type SubmissionService struct {
	moderation *ModerationService
	limiter    ratelimit.Limiter
	storage    ObjectStorage
	roads      store.RoadStore
	cfg        *config.Config
}

func NewSubmissionService(moderation *ModerationService, limiter ratelimit.Limiter, storage ObjectStorage, roads store.RoadStore, cfg *config.Config) *SubmissionService {
	return &SubmissionService{
		moderation: moderation,
		limiter:    limiter,
		storage:    storage,
		roads:      roads,
		cfg:        cfg,
	}
}

// Create validates a submission and stores it as a pending road.
// limitKey is the rate-limit bucket key for the caller (identity or IP).
func (s *SubmissionService) Create(ctx context.Context, caller Identity, limitKey string, in SubmissionInput) (*models.Road, error) {
	if err := s.limiter.Admit(ctx, limitKey, ratelimit.ClassSubmit, time.Now()); err != nil {
		return nil, err
	}

	road, err := buildRoad(caller, in)
	if err != nil {
		return nil, err
	}

	if _, err := s.moderation.Submit(ctx, road); err != nil {
		return nil, err
	}
	return road, nil
}

// Update applies a partial edit to an existing road on behalf of its
// submitter or an editor.
func (s *SubmissionService) Update(ctx context.Context, caller Identity, limitKey, id string, upd SubmissionUpdate) error {
	if err := s.limiter.Admit(ctx, limitKey, ratelimit.ClassEdit, time.Now()); err != nil {
		return err
	}

	patch, err := buildPatch(upd)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return apperr.New(apperr.Validation, "No fields to update")
	}

	return s.moderation.Edit(ctx, caller, id, patch, s.cfg.RemoderateOnEdit)
}

// AttachImage validates and stores an image for a road, then commits
// the public URL onto the record. The upload happens first so a failure
// between the two steps can only orphan an unreferenced object, never
// leave a road pointing at missing bytes.
func (s *SubmissionService) AttachImage(ctx context.Context, caller Identity, limitKey, id, filename string, data []byte, declaredType string) (string, error) {
	if err := s.limiter.Admit(ctx, limitKey, ratelimit.ClassImage, time.Now()); err != nil {
		return "", err
	}
	if err := ValidateRoadID(id); err != nil {
		return "", err
	}

	road, err := s.roads.GetRoad(ctx, id)
	if err == store.ErrNotFound {
		return "", apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}
	if !caller.CanEdit(road.AddedBy) {
		return "", apperr.New(apperr.Authorization, "Only the submitter or an editor may attach images")
	}

	if s.storage == nil {
		return "", apperr.New(apperr.Upstream, "Image uploads are not available")
	}
	if err := s.validateImage(data, declaredType); err != nil {
		return "", err
	}

	url, err := s.storage.Upload(ctx, data, filename, declaredType)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "Failed to upload image", err)
	}

	if err := s.moderation.Edit(ctx, caller, id, store.RoadPatch{ImageURL: &url}, false); err != nil {
		return "", err
	}

	// The new reference is committed; the replaced object is now orphaned.
	if road.ImageURL != "" && road.ImageURL != url {
		_ = s.storage.Delete(ctx, road.ImageURL)
	}
	return url, nil
}

func (s *SubmissionService) validateImage(data []byte, declaredType string) error {
	if int64(len(data)) > s.cfg.MaxImageSizeBytes() {
		return apperr.Newf(apperr.InvalidImage, "File size too large. Maximum size is %dMB", s.cfg.MaxImageSizeMB)
	}
	if !s.cfg.ImageTypeAllowed(declaredType) {
		return apperr.Newf(apperr.InvalidImage, "Invalid file type. Only %s are allowed", strings.Join(s.cfg.AllowedImageTypes, ", "))
	}
	// Sniff the actual bytes; the declared type is client-controlled.
	if sniffed := http.DetectContentType(data); !s.cfg.ImageTypeAllowed(sniffed) {
		return apperr.New(apperr.InvalidImage, "File content does not match an allowed image type")
	}
	return nil
}

func buildRoad(caller Identity, in SubmissionInput) (*models.Road, error) {
	road := &models.Road{
		RoadName:               sanitizeText(in.RoadName),
		Geometry:               in.Geometry,
		Contractor:             sanitizeText(in.Contractor),
		ApprovedBy:             sanitizeText(in.ApprovedBy),
		TotalCost:              strings.TrimSpace(in.TotalCost),
		PromisedCompletionDate: strings.TrimSpace(in.PromisedCompletionDate),
		ActualCompletionDate:   strings.TrimSpace(in.ActualCompletionDate),
		MaintenanceFirm:        sanitizeText(in.MaintenanceFirm),
		ConstructionStatus:     sanitizeText(in.ConstructionStatus),
		ExtraFields:            in.ExtraFields,
		OSMWayID:               strings.TrimSpace(in.OSMWayID),
		AddedBy:                caller.Username,
	}

	required := []struct {
		name  string
		value string
		max   int
	}{
		{"road_name", road.RoadName, maxNameLen},
		{"contractor", road.Contractor, maxNameLen},
		{"approved_by", road.ApprovedBy, maxNameLen},
		{"total_cost", road.TotalCost, maxShortLen},
		{"promised_completion_date", road.PromisedCompletionDate, maxShortLen},
		{"actual_completion_date", road.ActualCompletionDate, maxShortLen},
		{"maintenance_firm", road.MaintenanceFirm, maxNameLen},
		{"construction_status", road.ConstructionStatus, maxShortLen},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, apperr.Newf(apperr.Validation, "%s is required", f.name)
		}
		if len(f.value) > f.max {
			return nil, apperr.Newf(apperr.Validation, "%s must be at most %d characters", f.name, f.max)
		}
	}

	if err := validateGeometry(road.Geometry); err != nil {
		return nil, err
	}
	return road, nil
}

func buildPatch(upd SubmissionUpdate) (store.RoadPatch, error) {
	sanitizePtr := func(p *string, max int, name string) (*string, error) {
		if p == nil {
			return nil, nil
		}
		v := sanitizeText(*p)
		if v == "" {
			return nil, apperr.Newf(apperr.Validation, "%s must not be empty", name)
		}
		if len(v) > max {
			return nil, apperr.Newf(apperr.Validation, "%s must be at most %d characters", name, max)
		}
		return &v, nil
	}

	var patch store.RoadPatch
	var err error
	if patch.RoadName, err = sanitizePtr(upd.RoadName, maxNameLen, "road_name"); err != nil {
		return patch, err
	}
	if patch.Contractor, err = sanitizePtr(upd.Contractor, maxNameLen, "contractor"); err != nil {
		return patch, err
	}
	if patch.ApprovedBy, err = sanitizePtr(upd.ApprovedBy, maxNameLen, "approved_by"); err != nil {
		return patch, err
	}
	if patch.TotalCost, err = sanitizePtr(upd.TotalCost, maxShortLen, "total_cost"); err != nil {
		return patch, err
	}
	if patch.PromisedCompletionDate, err = sanitizePtr(upd.PromisedCompletionDate, maxShortLen, "promised_completion_date"); err != nil {
		return patch, err
	}
	if patch.ActualCompletionDate, err = sanitizePtr(upd.ActualCompletionDate, maxShortLen, "actual_completion_date"); err != nil {
		return patch, err
	}
	if patch.MaintenanceFirm, err = sanitizePtr(upd.MaintenanceFirm, maxNameLen, "maintenance_firm"); err != nil {
		return patch, err
	}
	if patch.ConstructionStatus, err = sanitizePtr(upd.ConstructionStatus, maxShortLen, "construction_status"); err != nil {
		return patch, err
	}
	if patch.OSMWayID, err = sanitizePtr(upd.OSMWayID, maxShortLen, "osm_way_id"); err != nil {
		return patch, err
	}

	if upd.Geometry != nil {
		if err := validateGeometry(upd.Geometry); err != nil {
			return patch, err
		}
		patch.Geometry = upd.Geometry
	}
	if upd.ExtraFields != nil {
		patch.ExtraFields = upd.ExtraFields
	}
	return patch, nil
}

func validateGeometry(geometry []models.Coordinate) error {
	if len(geometry) < minGeometry {
		return apperr.New(apperr.Validation, "geometry must contain at least two coordinate pairs")
	}
	for _, c := range geometry {
		if c.Lat() < -90 || c.Lat() > 90 {
			return apperr.New(apperr.Validation, "latitude must be between -90 and 90")
		}
		if c.Lng() < -180 || c.Lng() > 180 {
			return apperr.New(apperr.Validation, "longitude must be between -180 and 180")
		}
	}
	return nil
}
