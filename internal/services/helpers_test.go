package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whobuiltmyroad/backend/internal/config"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/store"
)

// allowAll admits every request.
type allowAll struct{}

func (allowAll) Admit(ctx context.Context, key string, class ratelimit.Class, now time.Time) error {
	return nil
}

// countingLimiter delegates to a real memory limiter so denial
// behavior is exercised end to end.
func countingLimiter() ratelimit.Limiter {
	return ratelimit.NewMemory(ratelimit.DefaultRules())
}

// fakeStorage records uploads and deletes in memory.
type fakeStorage struct {
	mu       sync.Mutex
	uploads  int
	deleted  []string
	uploadFn func() (string, error)
}

func (f *fakeStorage) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadFn != nil {
		return f.uploadFn()
	}
	return fmt.Sprintf("https://img.example/upload/v1/roads/u%d.png", f.uploads), nil
}

func (f *fakeStorage) Delete(ctx context.Context, publicURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicURL)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxImageSizeMB:    10,
		AllowedImageTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
	}
}

func validInput() SubmissionInput {
	return SubmissionInput{
		RoadName:               "MG Road",
		Geometry:               []models.Coordinate{{77.59, 12.97}, {77.60, 12.98}},
		Contractor:             "Acme Infra Pvt Ltd",
		ApprovedBy:             "City Works Department",
		TotalCost:              "12.5 crore",
		PromisedCompletionDate: "2025-06-30",
		ActualCompletionDate:   "2025-09-15",
		MaintenanceFirm:        "Acme Maintenance",
		ConstructionStatus:     "completed",
	}
}

// fixture wires the service stack over the in-memory store.
type fixture struct {
	store      *store.Memory
	storage    *fakeStorage
	moderation *ModerationService
	submission *SubmissionService
	feedback   *FeedbackService
	mapview    *MapService
	cfg        *config.Config
}

func newFixture() *fixture {
	st := store.NewMemory()
	storage := &fakeStorage{}
	cfg := testConfig()
	moderation := NewModerationService(st, storage)
	return &fixture{
		store:      st,
		storage:    storage,
		moderation: moderation,
		submission: NewSubmissionService(moderation, allowAll{}, storage, st, cfg),
		feedback:   NewFeedbackService(st, allowAll{}),
		mapview:    NewMapService(st),
		cfg:        cfg,
	}
}

func (f *fixture) mustSubmit(caller Identity) *models.Road {
	road, err := f.submission.Create(context.Background(), caller, "key", validInput())
	if err != nil {
		panic(err)
	}
	return road
}
