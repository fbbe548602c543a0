package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BaselineRun is a pre-plan performance data point. The recalculation engine
// falls back to these when the plan has no completed workouts yet.
type BaselineRun struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID          primitive.ObjectID `bson:"planId" json:"planId"`
	Date            time.Time          `bson:"date" json:"date"`
	DistanceKm      float64            `bson:"distanceKm" json:"distanceKm"`
	DurationSeconds int                `bson:"durationSeconds" json:"durationSeconds"`
	RPE             *int               `bson:"rpe,omitempty" json:"rpe,omitempty"`
	AvgHeartRate    *int               `bson:"avgHeartRate,omitempty" json:"avgHeartRate,omitempty"`
	ElevationGainM  *int               `bson:"elevationGainM,omitempty" json:"elevationGainM,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
