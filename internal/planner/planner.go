// Package planner contains the guardrail-constrained recalculation
// algorithm. It is pure: all inputs are passed in, no I/O happens here, and
// identical inputs always produce identical output, which is what makes a
// recalculation pass idempotent.
package planner

import (
	"errors"
	"math"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
)

// ErrUnsatisfiableConstraints is returned when no allocation can satisfy the
// plan's scheduling constraints for the remaining weeks.
var ErrUnsatisfiableConstraints = errors.New("unsatisfiable constraints")

// Inputs is everything a recalculation pass reads.
type Inputs struct {
	Plan        domain.Plan
	Constraints []domain.PlanConstraint
	Baselines   []domain.BaselineRun
	// History holds the current workout versions for dates up to and
	// including AsOf. Future versions are never an input; they are what the
	// pass replaces.
	History []domain.WorkoutVersion
	AsOf    time.Time
}

// Phase of the plan a week falls into.
type Phase string

const (
	PhaseBase  Phase = "base"
	PhaseBuild Phase = "build"
	PhaseTaper Phase = "taper"
)

// WeekTarget is the computed mileage target for one plan week.
type WeekTarget struct {
	Week     int
	TargetKm float64
	Recovery bool
	Phase    Phase
}

// FitnessSignal is the rolling estimate of the runner's recent volume.
type FitnessSignal struct {
	WeeklyKm     float64
	WeeklyLoad   float64
	FromBaseline bool
}

// Result of a recalculation pass: one draft per future date of the plan.
type Result struct {
	Drafts  []domain.DatedDraft
	Targets []WeekTarget
	Signal  FitnessSignal
}

// Recalculate computes new current versions for every date strictly after
// in.AsOf up to the end of the plan. It never emits a draft for a past date;
// protecting completed days is the store's job (ReplaceFuture re-checks).
func Recalculate(in Inputs, pol Policy) (Result, error) {
	plan := in.Plan
	asOf := domain.NormalizeDate(in.AsOf)
	start := domain.NormalizeDate(plan.StartDate)
	end := plan.EndDate() // exclusive

	signal := fitnessSignal(in, pol)

	// Nothing left to schedule.
	firstFuture := asOf.AddDate(0, 0, 1)
	if firstFuture.Before(start) {
		firstFuture = start
	}
	if !firstFuture.Before(end) {
		return Result{Signal: signal}, nil
	}

	forbidden := domain.ForbiddenWeekdays(in.Constraints)
	availableWeekdays := 7 - len(forbidden)
	trainingDays := plan.MaxDaysPerWeek
	if trainingDays > availableWeekdays {
		trainingDays = availableWeekdays
	}
	if trainingDays <= 0 {
		return Result{}, ErrUnsatisfiableConstraints
	}
	restGap := domain.MinRestGapDays(in.Constraints)

	weekActual, weekCompleted := weeklyActuals(plan, in.History)
	targets := weeklyTargets(plan, pol, signal, weekActual, weekCompleted)

	var result Result
	result.Signal = signal

	firstWeek := plan.WeekOf(firstFuture)
	for w := firstWeek; w <= plan.DurationWeeks; w++ {
		t := targets[w-1]
		weekStart := start.AddDate(0, 0, (w-1)*7)

		// Dates of this week still open for scheduling.
		var dates []time.Time
		for i := 0; i < 7; i++ {
			d := weekStart.AddDate(0, 0, i)
			if d.Before(firstFuture) || !d.Before(end) {
				continue
			}
			dates = append(dates, d)
		}
		if len(dates) == 0 {
			continue
		}

		// Budget for the current (partially elapsed) week accounts for what
		// already happened; full future weeks start fresh.
		budgetKm := t.TargetKm
		budgetDays := trainingDays
		for _, wv := range in.History {
			if plan.WeekOf(wv.Date) != w || !wv.Date.Before(firstFuture) {
				continue
			}
			if wv.Type != domain.WorkoutRest && wv.Type != domain.WorkoutCrosstrain {
				budgetDays--
			}
			if wv.Completed() && wv.ActualDistanceKm != nil {
				budgetKm -= *wv.ActualDistanceKm
			}
		}
		if budgetKm < 0 {
			budgetKm = 0
		}
		if budgetDays < 0 {
			budgetDays = 0
		}

		drafts := allocateWeek(weekAllocation{
			plan:       plan,
			policy:     pol,
			dates:      dates,
			targetKm:   budgetKm,
			maxDays:    budgetDays,
			forbidden:  forbidden,
			restGap:    restGap,
			phase:      t.Phase,
			recovery:   t.Recovery,
		})
		result.Drafts = append(result.Drafts, drafts...)
		result.Targets = append(result.Targets, t)
	}
	return result, nil
}

// fitnessSignal derives rolling weekly mileage and load over the trailing
// window of completed workouts, falling back to baseline runs when the plan
// has no completions yet.
func fitnessSignal(in Inputs, pol Policy) FitnessSignal {
	asOf := domain.NormalizeDate(in.AsOf)
	windowStart := asOf.AddDate(0, 0, -7*pol.FitnessWindowWeeks)

	var km, load float64
	completions := 0
	for _, wv := range in.History {
		if !wv.Completed() || wv.ActualDistanceKm == nil {
			continue
		}
		if wv.Date.Before(windowStart) || wv.Date.After(asOf) {
			continue
		}
		completions++
		d := *wv.ActualDistanceKm
		km += d
		load += d * float64(effortOrDefault(wv.ActualRPE, pol))
	}
	if completions > 0 {
		weeks := float64(pol.FitnessWindowWeeks)
		return FitnessSignal{WeeklyKm: km / weeks, WeeklyLoad: load / weeks}
	}

	// Baseline fallback: per-run average scaled to an assumed week.
	var sum float64
	var n int
	var rpeSum, rpeN int
	for _, b := range in.Baselines {
		sum += b.DistanceKm
		n++
		if b.RPE != nil {
			rpeSum += *b.RPE
			rpeN++
		}
	}
	if n == 0 {
		return FitnessSignal{FromBaseline: true}
	}
	avg := sum / float64(n)
	rpe := pol.DefaultRPE
	if rpeN > 0 {
		rpe = rpeSum / rpeN
	}
	weekly := avg * pol.AssumedRunsPerWeek
	return FitnessSignal{
		WeeklyKm:     weekly,
		WeeklyLoad:   weekly * float64(rpe),
		FromBaseline: true,
	}
}

// weeklyActuals sums completed mileage per plan week.
func weeklyActuals(plan domain.Plan, history []domain.WorkoutVersion) (map[int]float64, map[int]bool) {
	actual := make(map[int]float64)
	completed := make(map[int]bool)
	for _, wv := range history {
		w := plan.WeekOf(wv.Date)
		if w == 0 || !wv.Completed() || wv.ActualDistanceKm == nil {
			continue
		}
		actual[w] += *wv.ActualDistanceKm
		completed[w] = true
	}
	return actual, completed
}

// weeklyTargets chains the target trajectory across all plan weeks: each
// week grows from the previous week's actual (when one exists) or its
// target, capped by the goal-type ceiling while guardrails are on. Recovery
// and taper weeks shrink instead of growing.
func weeklyTargets(plan domain.Plan, pol Policy, signal FitnessSignal, weekActual map[int]float64, weekCompleted map[int]bool) []WeekTarget {
	targets := make([]WeekTarget, plan.DurationWeeks)
	ceiling := peakWeeklyKm[plan.GoalType]

	base := signal.WeeklyKm
	if base <= 0 {
		base = pol.MinRunKm * pol.AssumedRunsPerWeek
	}

	prev := base
	for w := 1; w <= plan.DurationWeeks; w++ {
		phase := weekPhase(plan, w)
		recovery := pol.RecoveryWeekPeriod > 0 && w%pol.RecoveryWeekPeriod == 0 && phase != PhaseTaper

		var t float64
		switch {
		case w == 1:
			t = base
		case recovery:
			t = prev * pol.RecoveryFactor
		case phase == PhaseTaper:
			t = prev * pol.TaperFactor
		case plan.GoalType == domain.GoalMaintenance:
			t = prev
		default:
			t = prev * (1 + plan.WeeklyIncreaseCap)
		}
		if plan.GuardrailsEnabled && ceiling > 0 && t > ceiling {
			t = ceiling
		}
		t = roundKm(t)
		targets[w-1] = WeekTarget{Week: w, TargetKm: t, Recovery: recovery, Phase: phase}

		// The next week's growth starts from what actually happened when the
		// week has completions; a missed week simply carries its lower
		// actual forward and future weeks absorb the adjustment.
		if weekCompleted[w] {
			prev = weekActual[w]
		} else {
			prev = t
		}
	}
	return targets
}

// weekPhase classifies a plan week as base, build or taper.
func weekPhase(plan domain.Plan, week int) Phase {
	if tw, ok := taperWeeks[plan.GoalType]; ok && plan.RaceDate != nil {
		raceWeek := plan.WeekOf(*plan.RaceDate)
		if raceWeek == 0 {
			raceWeek = plan.DurationWeeks
		}
		until := raceWeek - week
		if until >= 0 && until < tw {
			return PhaseTaper
		}
	}
	if week*3 <= plan.DurationWeeks {
		return PhaseBase
	}
	return PhaseBuild
}

func effortOrDefault(rpe *int, pol Policy) int {
	if rpe != nil {
		return *rpe
	}
	return pol.DefaultRPE
}

func roundKm(v float64) float64 {
	return math.Round(v*10) / 10
}
