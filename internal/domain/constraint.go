package domain

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConstraintType identifies the rule a PlanConstraint encodes.
type ConstraintType string

const (
	// ConstraintNoRunWeekday forbids scheduling runs on a weekday.
	// Value is the weekday number, 0 (Sunday) through 6 (Saturday).
	ConstraintNoRunWeekday ConstraintType = "no_run_weekday"
	// ConstraintMinRestGapDays requires at least N rest days between
	// quality sessions (tempo, intervals, long). Value is N.
	ConstraintMinRestGapDays ConstraintType = "min_rest_gap_days"
)

// PlanConstraint is a typed key/value rule scoped to a plan. The engine
// consults constraints during day allocation and never mutates them.
type PlanConstraint struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID    primitive.ObjectID `bson:"planId" json:"planId"`
	Type      ConstraintType     `bson:"constraintType" json:"constraintType"`
	Value     string             `bson:"value" json:"value"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ValidConstraintType reports whether ct is one of the known constraint types.
func ValidConstraintType(ct ConstraintType) bool {
	switch ct {
	case ConstraintNoRunWeekday, ConstraintMinRestGapDays:
		return true
	}
	return false
}

// ForbiddenWeekdays extracts the set of weekdays excluded by no_run_weekday
// constraints. Unparseable values are skipped.
func ForbiddenWeekdays(constraints []PlanConstraint) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool)
	for _, c := range constraints {
		if c.Type != ConstraintNoRunWeekday {
			continue
		}
		n, err := strconv.Atoi(c.Value)
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out[time.Weekday(n)] = true
	}
	return out
}

// MinRestGapDays returns the largest min_rest_gap_days value present, or 0.
func MinRestGapDays(constraints []PlanConstraint) int {
	gap := 0
	for _, c := range constraints {
		if c.Type != ConstraintMinRestGapDays {
			continue
		}
		if n, err := strconv.Atoi(c.Value); err == nil && n > gap {
			gap = n
		}
	}
	return gap
}
