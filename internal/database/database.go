package database

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

// Connect establishes the MongoDB connection and ensures the indexes the
// road and feedback collections rely on.
func Connect(mongoURI, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(dbName)

	if err := ensureIndexes(); err != nil {
		return err
	}

	log.Println("Connected to MongoDB")
	return nil
}

func ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roadIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "moderation_status", Value: 1}}},
		{Keys: bson.D{{Key: "added_by", Value: 1}}},
		{Keys: bson.D{{Key: "osm_way_id", Value: 1}}},
	}
	if _, err := DB.Collection("roads").Indexes().CreateMany(ctx, roadIndexes); err != nil {
		return err
	}

	feedbackIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "road_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
	}
	if _, err := DB.Collection("feedback").Indexes().CreateMany(ctx, feedbackIndexes); err != nil {
		return err
	}

	return nil
}

func Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
