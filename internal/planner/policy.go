package planner

import "github.com/skrivenk/runcoach/internal/domain"

// Policy bundles the tunable scheduling constants. The values carried by
// DefaultPolicy are deliberate choices, not contracts; config may override
// the recovery cadence.
type Policy struct {
	// FitnessWindowWeeks is how many trailing weeks of completed workouts
	// feed the rolling fitness signal.
	FitnessWindowWeeks int
	// RecoveryWeekPeriod makes every Nth plan week a recovery week.
	RecoveryWeekPeriod int
	// RecoveryFactor scales a recovery week's target relative to the
	// previous week instead of growing it.
	RecoveryFactor float64
	// TaperFactor scales each taper week relative to the previous one.
	TaperFactor float64
	// AssumedRunsPerWeek converts a per-run baseline average into a weekly
	// volume estimate when no completed weeks exist.
	AssumedRunsPerWeek float64
	// MinRunKm is the smallest distance worth scheduling as its own run.
	MinRunKm float64
	// DefaultRPE stands in for missing effort ratings in load estimates.
	DefaultRPE int
}

// DefaultPolicy returns the stock scheduling policy.
func DefaultPolicy() Policy {
	return Policy{
		FitnessWindowWeeks: 3,
		RecoveryWeekPeriod: 4,
		RecoveryFactor:     0.75,
		TaperFactor:        0.70,
		AssumedRunsPerWeek: 3,
		MinRunKm:           2.0,
		DefaultRPE:         5,
	}
}

// peakWeeklyKm is the per-goal ceiling on a weekly mileage target while
// guardrails are enabled.
var peakWeeklyKm = map[domain.GoalType]float64{
	domain.Goal5K:          45,
	domain.Goal10K:         60,
	domain.GoalHalf:        75,
	domain.GoalMarathon:    95,
	domain.GoalFitness:     50,
	domain.GoalMaintenance: 40,
}

// taperWeeks is how many final pre-race weeks wind volume down per goal.
// Goals without a race distance do not taper.
var taperWeeks = map[domain.GoalType]int{
	domain.Goal5K:       1,
	domain.Goal10K:      2,
	domain.GoalHalf:     2,
	domain.GoalMarathon: 3,
}
