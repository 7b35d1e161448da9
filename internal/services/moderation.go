package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/store"
)

// ModerationService owns the road lifecycle: pending -> approved or
// rejected, decided over the admin channel. Transitions go through the
// store's conditional update, so two concurrent decisions on the same
// road produce exactly one winner.
type ModerationService struct {
	store   store.Store
	storage ObjectStorage
}

func NewModerationService(st store.Store, storage ObjectStorage) *ModerationService {
	return &ModerationService{store: st, storage: storage}
}

// ValidateRoadID rejects ids that cannot name a document before any
// store round trip.
func ValidateRoadID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return apperr.New(apperr.Validation, "Invalid road ID")
	}
	return nil
}

// Submit stores a new road in pending state. The caller has already
// validated and sanitized the record.
func (s *ModerationService) Submit(ctx context.Context, road *models.Road) (string, error) {
	now := time.Now().UTC()
	road.CreatedAt = now
	road.UpdatedAt = now
	road.Moderation = models.StatusPending
	road.ImageURL = ""

	id, err := s.store.InsertRoad(ctx, road)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "Failed to submit road", err)
	}
	return id, nil
}

// Approve moves a pending road to approved and returns the updated record.
func (s *ModerationService) Approve(ctx context.Context, id string) (*models.Road, error) {
	return s.decide(ctx, id, models.StatusApproved)
}

// Reject moves a pending road to rejected. The record is retained for
// audit; removal is a separate, explicit Delete.
func (s *ModerationService) Reject(ctx context.Context, id string) (*models.Road, error) {
	return s.decide(ctx, id, models.StatusRejected)
}

func (s *ModerationService) decide(ctx context.Context, id string, to models.ModerationStatus) (*models.Road, error) {
	if err := ValidateRoadID(id); err != nil {
		return nil, err
	}

	err := s.store.TransitionStatus(ctx, id, models.StatusPending, to, time.Now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.New(apperr.NotFound, "Road not found")
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.New(apperr.InvalidTransition, "Road is not pending moderation")
	case err != nil:
		return nil, apperr.Wrap(apperr.Upstream, "Failed to update road", err)
	}

	road, err := s.store.GetRoad(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}
	return road, nil
}

// Edit applies an in-place change to a road in any state, restricted to
// the original submitter or an admin. When remoderate is set, editing an
// approved road sends it back to pending in the same write.
func (s *ModerationService) Edit(ctx context.Context, caller Identity, id string, patch store.RoadPatch, remoderate bool) error {
	if err := ValidateRoadID(id); err != nil {
		return err
	}

	road, err := s.store.GetRoad(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}

	if !caller.CanEdit(road.AddedBy) {
		return apperr.New(apperr.Authorization, "Only the submitter or an editor may modify this road")
	}

	if remoderate && road.Moderation == models.StatusApproved {
		pending := models.StatusPending
		patch.ForceStatus = &pending
	}

	err = s.store.UpdateRoad(ctx, id, patch, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "Failed to update road", err)
	}
	return nil
}

// Delete irreversibly removes a road, its stored image, and its
// feedback. Image and feedback cleanup are best effort; the road
// document itself is the commit point.
func (s *ModerationService) Delete(ctx context.Context, id string) error {
	if err := ValidateRoadID(id); err != nil {
		return err
	}

	road, err := s.store.GetRoad(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}

	if err := s.store.DeleteRoad(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Road not found")
		}
		return apperr.Wrap(apperr.Upstream, "Failed to delete road", err)
	}

	if road.ImageURL != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, road.ImageURL); err != nil {
			log.WithError(err).WithField("road_id", id).Warn("failed to delete road image from storage")
		}
	}
	if err := s.store.DeleteFeedbackForRoad(ctx, id); err != nil {
		log.WithError(err).WithField("road_id", id).Warn("failed to delete road feedback")
	}
	return nil
}

// Pending returns a page of roads awaiting moderation, newest first.
func (s *ModerationService) Pending(ctx context.Context, skip, limit int) ([]models.Road, int64, error) {
	roads, total, err := s.store.ListRoads(ctx, models.StatusPending, skip, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "Failed to fetch pending roads", err)
	}
	return roads, total, nil
}
