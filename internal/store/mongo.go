package store

import (
	"context"
	"errors"
	"time"

	"github.com/whobuiltmyroad/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roadsCollection    = "roads"
	feedbackCollection = "feedback"
)

// Mongo implements Store on a MongoDB database. Status transitions use
// a filtered UpdateOne so the store itself serializes concurrent
// moderation decisions.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (s *Mongo) roads() *mongo.Collection    { return s.db.Collection(roadsCollection) }
func (s *Mongo) feedback() *mongo.Collection { return s.db.Collection(feedbackCollection) }

func (s *Mongo) InsertRoad(ctx context.Context, road *models.Road) (string, error) {
	if road.ID.IsZero() {
		road.ID = primitive.NewObjectID()
	}
	if _, err := s.roads().InsertOne(ctx, road); err != nil {
		return "", err
	}
	return road.ID.Hex(), nil
}

func (s *Mongo) GetRoad(ctx context.Context, id string) (*models.Road, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var road models.Road
	err = s.roads().FindOne(ctx, bson.M{"_id": objectID}).Decode(&road)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &road, nil
}

func (s *Mongo) ListRoads(ctx context.Context, status models.ModerationStatus, skip, limit int) ([]models.Road, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["moderation_status"] = status
	}

	total, err := s.roads().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.roads().Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var roads []models.Road
	if err = cursor.All(ctx, &roads); err != nil {
		return nil, 0, err
	}
	return roads, total, nil
}

func (s *Mongo) UpdateRoad(ctx context.Context, id string, patch RoadPatch, now time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set := bson.M{"updated_at": now}
	setString := func(field string, v *string) {
		if v != nil {
			set[field] = *v
		}
	}
	setString("road_name", patch.RoadName)
	setString("contractor", patch.Contractor)
	setString("approved_by", patch.ApprovedBy)
	setString("total_cost", patch.TotalCost)
	setString("promised_completion_date", patch.PromisedCompletionDate)
	setString("actual_completion_date", patch.ActualCompletionDate)
	setString("maintenance_firm", patch.MaintenanceFirm)
	setString("construction_status", patch.ConstructionStatus)
	setString("osm_way_id", patch.OSMWayID)
	setString("image_url", patch.ImageURL)

	if patch.Geometry != nil {
		set["geometry"] = patch.Geometry
	}
	if patch.ExtraFields != nil {
		set["extra_fields"] = patch.ExtraFields
	}
	if patch.ForceStatus != nil {
		set["moderation_status"] = *patch.ForceStatus
	}

	result, err := s.roads().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) TransitionStatus(ctx context.Context, id string, from, to models.ModerationStatus, now time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	// Compare-and-swap on the current status: of two concurrent
	// transitions, only one matches this filter.
	result, err := s.roads().UpdateOne(ctx,
		bson.M{"_id": objectID, "moderation_status": from},
		bson.M{"$set": bson.M{"moderation_status": to, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: unknown id, or the road is in another state.
	count, err := s.roads().CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *Mongo) DeleteRoad(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.roads().DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) FindRoadByOSMWay(ctx context.Context, osmWayID string, status models.ModerationStatus) (*models.Road, error) {
	filter := bson.M{"osm_way_id": osmWayID}
	if status != "" {
		filter["moderation_status"] = status
	}

	var road models.Road
	err := s.roads().FindOne(ctx, filter).Decode(&road)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &road, nil
}

func (s *Mongo) InsertFeedback(ctx context.Context, fb *models.Feedback) (string, error) {
	if fb.ID.IsZero() {
		fb.ID = primitive.NewObjectID()
	}
	if _, err := s.feedback().InsertOne(ctx, fb); err != nil {
		return "", err
	}
	return fb.ID.Hex(), nil
}

func (s *Mongo) ListFeedback(ctx context.Context, roadID string, skip, limit int) ([]models.Feedback, int64, error) {
	filter := bson.M{"road_id": roadID}

	total, err := s.feedback().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.feedback().Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []models.Feedback
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Mongo) DeleteFeedbackForRoad(ctx context.Context, roadID string) error {
	_, err := s.feedback().DeleteMany(ctx, bson.M{"road_id": roadID})
	return err
}
