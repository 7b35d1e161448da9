package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationStatus is the lifecycle state of a road record.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ModerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Coordinate is a [longitude, latitude] pair (GeoJSON axis order).
type Coordinate [2]float64

func (c Coordinate) Lng() float64 { return c[0] }
func (c Coordinate) Lat() float64 { return c[1] }

// Road is a citizen-submitted road record. Geometry is a LineString with
// at least two coordinate pairs. ImageURL is empty until an upload commits.
type Road struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	RoadName string       `bson:"road_name" json:"road_name"`
	Geometry []Coordinate `bson:"geometry" json:"geometry"`

	// Attribution fields (free text, sanitized at the service boundary)
	Contractor             string `bson:"contractor" json:"contractor"`
	ApprovedBy             string `bson:"approved_by" json:"approved_by"`
	TotalCost              string `bson:"total_cost" json:"total_cost"`
	PromisedCompletionDate string `bson:"promised_completion_date" json:"promised_completion_date"`
	ActualCompletionDate   string `bson:"actual_completion_date" json:"actual_completion_date"`
	MaintenanceFirm        string `bson:"maintenance_firm" json:"maintenance_firm"`
	ConstructionStatus     string `bson:"construction_status" json:"construction_status"`

	ExtraFields map[string]interface{} `bson:"extra_fields,omitempty" json:"extra_fields,omitempty"`

	// OpenStreetMap way this record is linked to, if any
	OSMWayID string `bson:"osm_way_id,omitempty" json:"osm_way_id,omitempty"`

	ImageURL string `bson:"image_url,omitempty" json:"image_url,omitempty"`

	AddedBy    string           `bson:"added_by" json:"added_by"` // submitter username
	Moderation ModerationStatus `bson:"moderation_status" json:"moderation_status"`
}
