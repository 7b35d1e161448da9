package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback is a comment attached to an approved road. RoadID is a weak
// back-reference; feedback outlives changes to the road's moderation state.
type Feedback struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	RoadID  string `bson:"road_id" json:"road_id"`
	Author  string `bson:"author" json:"author"` // username
	Comment string `bson:"comment" json:"comment"`
}
