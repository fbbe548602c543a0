package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoalType enumerates the supported training goals.
type GoalType string

const (
	Goal5K          GoalType = "5k"
	Goal10K         GoalType = "10k"
	GoalHalf        GoalType = "half"
	GoalMarathon    GoalType = "marathon"
	GoalFitness     GoalType = "fitness"
	GoalMaintenance GoalType = "maintenance"
)

// ValidGoalType reports whether gt is one of the known goal types.
func ValidGoalType(gt GoalType) bool {
	switch gt {
	case Goal5K, Goal10K, GoalHalf, GoalMarathon, GoalFitness, GoalMaintenance:
		return true
	}
	return false
}

// Plan is a time-bounded training program with its guardrail parameters.
// Caps and schedule fields are editable after creation; identity, goal and
// dates define the plan. All distances everywhere are kilometers.
type Plan struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	GoalType          GoalType           `bson:"goalType" json:"goalType"`
	StartDate         time.Time          `bson:"startDate" json:"startDate"`
	RaceDate          *time.Time         `bson:"raceDate,omitempty" json:"raceDate,omitempty"`
	DurationWeeks     int                `bson:"durationWeeks" json:"durationWeeks"`
	MaxDaysPerWeek    int                `bson:"maxDaysPerWeek" json:"maxDaysPerWeek"`
	LongRunDay        time.Weekday       `bson:"longRunDay" json:"longRunDay"`
	WeeklyIncreaseCap float64            `bson:"weeklyIncreaseCap" json:"weeklyIncreaseCap"`
	LongRunCap        float64            `bson:"longRunCap" json:"longRunCap"`
	GuardrailsEnabled bool               `bson:"guardrailsEnabled" json:"guardrailsEnabled"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Default guardrail values applied when a plan is created without them.
const (
	DefaultWeeklyIncreaseCap = 0.10
	DefaultLongRunCap        = 0.30
	DefaultMaxDaysPerWeek    = 5
)

var (
	ErrPlanNameRequired   = errors.New("plan name is required")
	ErrPlanBadGoalType    = errors.New("unknown goal type")
	ErrPlanBadDuration    = errors.New("duration must be at least one week")
	ErrPlanBadCap         = errors.New("caps must be in (0, 1]")
	ErrPlanRaceTooEarly   = errors.New("race date must not precede start date")
	ErrPlanBadDaysPerWeek = errors.New("max days per week must be between 0 and 7")
)

// Validate checks the plan invariants. A zero MaxDaysPerWeek is allowed here;
// the recalculation engine rejects it as unsatisfiable instead, so that a
// temporarily paused plan can still be stored.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ErrPlanNameRequired
	}
	if !ValidGoalType(p.GoalType) {
		return fmt.Errorf("%w: %q", ErrPlanBadGoalType, p.GoalType)
	}
	if p.DurationWeeks <= 0 {
		return ErrPlanBadDuration
	}
	if p.MaxDaysPerWeek < 0 || p.MaxDaysPerWeek > 7 {
		return ErrPlanBadDaysPerWeek
	}
	if p.WeeklyIncreaseCap <= 0 || p.WeeklyIncreaseCap > 1 {
		return ErrPlanBadCap
	}
	if p.LongRunCap <= 0 || p.LongRunCap > 1 {
		return ErrPlanBadCap
	}
	if p.RaceDate != nil && p.RaceDate.Before(p.StartDate) {
		return ErrPlanRaceTooEarly
	}
	return nil
}

// EndDate returns the exclusive end of the plan's scheduling window.
func (p *Plan) EndDate() time.Time {
	return p.StartDate.AddDate(0, 0, p.DurationWeeks*7)
}

// WeekOf returns the 1-based plan week containing date, or 0 when the date
// falls outside the plan window.
func (p *Plan) WeekOf(date time.Time) int {
	d := NormalizeDate(date)
	start := NormalizeDate(p.StartDate)
	if d.Before(start) || !d.Before(p.EndDate()) {
		return 0
	}
	return int(d.Sub(start).Hours()/24)/7 + 1
}

// NormalizeDate truncates a timestamp to its UTC calendar day. Every date
// stored on workout versions and baseline runs goes through this, so that
// (plan, date) comparisons are plain equality.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
