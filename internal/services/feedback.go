package services

import (
	"context"
	"errors"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/store"
)

const maxCommentLen = 1000

// FeedbackService appends comments to approved roads. Feedback has no
// moderation lifecycle of its own, and once written it stays visible
// even if the road later leaves the approved state.
type FeedbackService struct {
	store   store.Store
	limiter ratelimit.Limiter
}

func NewFeedbackService(st store.Store, limiter ratelimit.Limiter) *FeedbackService {
	return &FeedbackService{store: st, limiter: limiter}
}

// Add appends a comment to an approved road.
func (s *FeedbackService) Add(ctx context.Context, caller Identity, limitKey, roadID, comment string) (*models.Feedback, error) {
	if err := s.limiter.Admit(ctx, limitKey, ratelimit.ClassFeedback, time.Now()); err != nil {
		return nil, err
	}
	if err := ValidateRoadID(roadID); err != nil {
		return nil, err
	}

	comment = sanitizeText(comment)
	if comment == "" {
		return nil, apperr.New(apperr.Validation, "comment is required")
	}
	if len(comment) > maxCommentLen {
		return nil, apperr.Newf(apperr.Validation, "comment must be at most %d characters", maxCommentLen)
	}

	road, err := s.store.GetRoad(ctx, roadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "Road not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}
	if road.Moderation != models.StatusApproved {
		return nil, apperr.New(apperr.InvalidState, "Feedback is only accepted on approved roads")
	}

	fb := &models.Feedback{
		RoadID:    roadID,
		Author:    caller.Username,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.store.InsertFeedback(ctx, fb); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Failed to add feedback", err)
	}
	return fb, nil
}

// List returns a road's feedback in creation order. The road must
// exist, but need not currently be approved: historical feedback
// remains visible after a re-moderation or rejection.
func (s *FeedbackService) List(ctx context.Context, roadID string, skip, limit int) ([]models.Feedback, int64, error) {
	if err := ValidateRoadID(roadID); err != nil {
		return nil, 0, err
	}

	if _, err := s.store.GetRoad(ctx, roadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, apperr.New(apperr.NotFound, "Road not found")
		}
		return nil, 0, apperr.Wrap(apperr.Upstream, "Failed to load road", err)
	}

	entries, total, err := s.store.ListFeedback(ctx, roadID, skip, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "Failed to fetch feedback", err)
	}
	return entries, total, nil
}
