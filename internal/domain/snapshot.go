package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusCode is the coarse on-track classification of a plan.
type StatusCode string

const (
	StatusOnTrack  StatusCode = "on_track"
	StatusAtRisk   StatusCode = "at_risk"
	StatusOffTrack StatusCode = "off_track"
)

// Label returns the human-readable dashboard label for a status code.
func (s StatusCode) Label() string {
	switch s {
	case StatusOnTrack:
		return "On Track"
	case StatusAtRisk:
		return "Getting There"
	case StatusOffTrack:
		return "Needs Attention"
	}
	return string(s)
}

// StatusSnapshot is a point-in-time attainability evaluation of a plan.
// Snapshots are append-only; re-evaluating the same date adds a new row and
// the latest one wins for "current" queries.
type StatusSnapshot struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID       primitive.ObjectID `bson:"planId" json:"planId"`
	SnapshotDate time.Time          `bson:"snapshotDate" json:"snapshotDate"`
	WeekNumber   int                `bson:"weekNumber" json:"weekNumber"`

	Attainability float64    `bson:"attainability" json:"attainability"`
	StatusCode    StatusCode `bson:"statusCode" json:"statusCode"`
	StatusLabel   string     `bson:"statusLabel" json:"statusLabel"`

	ActualWeeklyKm float64 `bson:"actualWeeklyKm" json:"actualWeeklyKm"`
	TargetWeeklyKm float64 `bson:"targetWeeklyKm" json:"targetWeeklyKm"`
	ActualLoad     float64 `bson:"actualLoad" json:"actualLoad"`
	TargetLoad     float64 `bson:"targetLoad" json:"targetLoad"`

	// Free text filled in by the external coach collaborator, best-effort.
	CoachNotes      string `bson:"coachNotes,omitempty" json:"coachNotes,omitempty"`
	Recommendations string `bson:"recommendations,omitempty" json:"recommendations,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
