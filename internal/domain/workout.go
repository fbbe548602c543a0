package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutType enumerates the kinds of sessions the planner schedules.
type WorkoutType string

const (
	WorkoutEasy       WorkoutType = "easy"
	WorkoutTempo      WorkoutType = "tempo"
	WorkoutIntervals  WorkoutType = "intervals"
	WorkoutLong       WorkoutType = "long"
	WorkoutRecovery   WorkoutType = "recovery"
	WorkoutRest       WorkoutType = "rest"
	WorkoutCrosstrain WorkoutType = "crosstrain"
)

// ValidWorkoutType reports whether wt is one of the known workout types.
func ValidWorkoutType(wt WorkoutType) bool {
	switch wt {
	case WorkoutEasy, WorkoutTempo, WorkoutIntervals, WorkoutLong,
		WorkoutRecovery, WorkoutRest, WorkoutCrosstrain:
		return true
	}
	return false
}

// Provenance of a workout version: which actor produced it.
const (
	ModifiedByInitialGen = "initial_gen"
	ModifiedByRecalc     = "recalc"
	ModifiedByUserEdit   = "user_edit"
)

// Split is one recorded segment of a completed workout.
type Split struct {
	DistanceKm      float64 `bson:"distanceKm" json:"distanceKm"`
	DurationSeconds int     `bson:"durationSeconds" json:"durationSeconds"`
}

// WorkoutVersion is one revision of the schedule for a single calendar day
// within a plan. Exactly one version per (plan, date) is current; superseded
// versions are retained as immutable history.
type WorkoutVersion struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID    primitive.ObjectID `bson:"planId" json:"planId"`
	Date      time.Time          `bson:"date" json:"date"`
	Version   int                `bson:"version" json:"version"`
	IsCurrent bool               `bson:"isCurrent" json:"isCurrent"`

	Type              WorkoutType `bson:"workoutType" json:"workoutType"`
	PlannedDistanceKm float64     `bson:"plannedDistanceKm" json:"plannedDistanceKm"`
	PlannedIntensity  string      `bson:"plannedIntensity,omitempty" json:"plannedIntensity,omitempty"`
	Description       string      `bson:"description,omitempty" json:"description,omitempty"`
	ModifiedBy        string      `bson:"modifiedBy" json:"modifiedBy"`

	// Actuals, present once the workout is performed.
	ActualDistanceKm      *float64   `bson:"actualDistanceKm,omitempty" json:"actualDistanceKm,omitempty"`
	ActualDurationSeconds *int       `bson:"actualDurationSeconds,omitempty" json:"actualDurationSeconds,omitempty"`
	ActualRPE             *int       `bson:"actualRpe,omitempty" json:"actualRpe,omitempty"`
	AvgHeartRate          *int       `bson:"avgHeartRate,omitempty" json:"avgHeartRate,omitempty"`
	ElevationGainM        *int       `bson:"elevationGainM,omitempty" json:"elevationGainM,omitempty"`
	Splits                []Split    `bson:"splits,omitempty" json:"splits,omitempty"`
	Equipment             string     `bson:"equipment,omitempty" json:"equipment,omitempty"`
	CompletionNotes       string     `bson:"completionNotes,omitempty" json:"completionNotes,omitempty"`
	CompletedAt           *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Completed reports whether actuals have been recorded for this version.
func (w *WorkoutVersion) Completed() bool {
	return w.CompletedAt != nil
}

// WorkoutDraft carries the planned fields for a new version. The store fills
// in identity, version number and the current flag.
type WorkoutDraft struct {
	Type              WorkoutType
	PlannedDistanceKm float64
	PlannedIntensity  string
	Description       string
	ModifiedBy        string
}

// DatedDraft pairs a draft with the day it is scheduled on; the recalculation
// engine emits one per future date.
type DatedDraft struct {
	Date  time.Time
	Draft WorkoutDraft
}

// CompletionActuals carries the performed-workout fields recorded against the
// current version of a day.
type CompletionActuals struct {
	DistanceKm      *float64
	DurationSeconds *int
	RPE             *int
	AvgHeartRate    *int
	ElevationGainM  *int
	Splits          []Split
	Equipment       string
	Notes           string
}
