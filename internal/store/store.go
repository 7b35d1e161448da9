// Package store is the document-store capability behind the moderation
// lifecycle. The Mongo implementation is the production store; the
// memory implementation backs tests and local development. Both
// serialize status transitions with a conditional update keyed on the
// expected current status.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/whobuiltmyroad/backend/internal/models"
)

var (
	// ErrNotFound means no document matched the id.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a conditional update found the document in a
	// different state than the caller expected.
	ErrConflict = errors.New("store: state conflict")
)

// RoadPatch is an in-place edit. Nil pointer fields are left unchanged.
type RoadPatch struct {
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
	ImageURL               *string

	// ForceStatus resets the lifecycle state together with the edit, in
	// one write. Used when edits require re-moderation.
	ForceStatus *models.ModerationStatus
}

// Empty reports whether the patch changes nothing.
func (p RoadPatch) Empty() bool {
	return p.RoadName == nil && p.Geometry == nil && p.Contractor == nil &&
		p.ApprovedBy == nil && p.TotalCost == nil && p.PromisedCompletionDate == nil &&
		p.ActualCompletionDate == nil && p.MaintenanceFirm == nil &&
		p.ConstructionStatus == nil && p.ExtraFields == nil && p.OSMWayID == nil &&
		p.ImageURL == nil && p.ForceStatus == nil
}

// RoadStore owns road documents. Listing is ordered by created-at
// descending with id descending as tiebreak; the ordering is stable
// across calls so pages and caches stay consistent.
type RoadStore interface {
	InsertRoad(ctx context.Context, road *models.Road) (string, error)
	GetRoad(ctx context.Context, id string) (*models.Road, error)

	// ListRoads returns a page of roads with the given status (empty
	// status means all) plus the total match count.
	ListRoads(ctx context.Context, status models.ModerationStatus, skip, limit int) ([]models.Road, int64, error)

	UpdateRoad(ctx context.Context, id string, patch RoadPatch, now time.Time) error

	// TransitionStatus atomically moves a road from one lifecycle state
	// to another. Returns ErrNotFound for an unknown id and ErrConflict
	// when the road is not currently in the from state; of two
	// concurrent transitions on the same road, exactly one succeeds.
	TransitionStatus(ctx context.Context, id string, from, to models.ModerationStatus, now time.Time) error

	DeleteRoad(ctx context.Context, id string) error

	// FindRoadByOSMWay returns a road linked to the given OSM way in the
	// given status, or ErrNotFound.
	FindRoadByOSMWay(ctx context.Context, osmWayID string, status models.ModerationStatus) (*models.Road, error)
}

// FeedbackStore owns feedback documents. RoadID is a weak reference:
// feedback is only removed by an explicit delete of its road.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, fb *models.Feedback) (string, error)

	// ListFeedback returns a page of a road's feedback in creation order
	// (oldest first) plus the total count.
	ListFeedback(ctx context.Context, roadID string, skip, limit int) ([]models.Feedback, int64, error)

	DeleteFeedbackForRoad(ctx context.Context, roadID string) error
}

// Store combines both document collections.
type Store interface {
	RoadStore
	FeedbackStore
}
