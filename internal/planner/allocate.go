package planner

import (
	"sort"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
)

// weekAllocation carries everything needed to lay out one week's sessions.
type weekAllocation struct {
	plan      domain.Plan
	policy    Policy
	dates     []time.Time // open dates of the week, ascending
	targetKm  float64
	maxDays   int
	forbidden map[time.Weekday]bool
	restGap   int
	phase     Phase
	recovery  bool
}

// Preferred weekdays for non-long sessions; quality days first, mirroring
// the classic Tue/Thu/Sat pattern. Equally eligible days resolve by this
// order, then by earliest date.
var preferredWeekdays = map[time.Weekday]int{
	time.Tuesday:   0,
	time.Thursday:  1,
	time.Saturday:  2,
	time.Monday:    3,
	time.Wednesday: 4,
	time.Friday:    5,
	time.Sunday:    6,
}

func qualityType(t domain.WorkoutType) bool {
	return t == domain.WorkoutLong || t == domain.WorkoutTempo || t == domain.WorkoutIntervals
}

// allocateWeek distributes the week's mileage budget across its open dates.
// Every open date gets a draft; days that do not receive a session become
// rest days.
func allocateWeek(a weekAllocation) []domain.DatedDraft {
	assigned := make(map[time.Time]domain.WorkoutDraft, len(a.dates))

	var eligible []time.Time
	for _, d := range a.dates {
		if !a.forbidden[d.Weekday()] {
			eligible = append(eligible, d)
		}
	}

	runDays := a.maxDays
	if runDays > len(eligible) {
		runDays = len(eligible)
	}

	if runDays > 0 && a.targetKm > 0 {
		// Long run first, on the configured day when it is open.
		longDate := eligible[0]
		for _, d := range eligible {
			if d.Weekday() == a.plan.LongRunDay {
				longDate = d
				break
			}
		}
		longKm := roundKm(a.plan.LongRunCap * a.targetKm)
		if longKm >= a.policy.MinRunKm {
			assigned[longDate] = longRunDraft(longKm, a.recovery)
		}

		// Remaining sessions by weekday preference.
		var rest []time.Time
		for _, d := range eligible {
			if _, taken := assigned[d]; !taken {
				rest = append(rest, d)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool {
			pi, pj := preferredWeekdays[rest[i].Weekday()], preferredWeekdays[rest[j].Weekday()]
			if pi != pj {
				return pi < pj
			}
			return rest[i].Before(rest[j])
		})
		n := runDays - len(assigned)
		if n > len(rest) {
			n = len(rest)
		}
		chosen := append([]time.Time(nil), rest[:n]...)
		sort.Slice(chosen, func(i, j int) bool { return chosen[i].Before(chosen[j]) })

		template := phaseTemplate(a.phase, a.plan.GoalType, a.recovery)
		remaining := a.targetKm - longKm
		if remaining < 0 {
			remaining = 0
		}

		var weightSum float64
		types := make([]domain.WorkoutType, len(chosen))
		for i := range chosen {
			types[i] = template[i%len(template)]
			weightSum += typeWeight(types[i])
		}
		for i, d := range chosen {
			km := 0.0
			if weightSum > 0 {
				km = roundKm(remaining * typeWeight(types[i]) / weightSum)
			}
			if types[i] != domain.WorkoutCrosstrain && km < a.policy.MinRunKm {
				continue // too short to be worth a session, stays a rest day
			}
			assigned[d] = sessionDraft(types[i], km)
		}

		enforceRestGap(a, assigned)
	}

	out := make([]domain.DatedDraft, 0, len(a.dates))
	for _, d := range a.dates {
		draft, ok := assigned[d]
		if !ok {
			draft = domain.WorkoutDraft{Type: domain.WorkoutRest, ModifiedBy: domain.ModifiedByRecalc}
		}
		out = append(out, domain.DatedDraft{Date: d, Draft: draft})
	}
	return out
}

// enforceRestGap downgrades quality sessions scheduled too close together to
// easy runs. The long run always keeps its slot.
func enforceRestGap(a weekAllocation, assigned map[time.Time]domain.WorkoutDraft) {
	if a.restGap <= 0 {
		return
	}
	var days []time.Time
	for d := range assigned {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var lastQuality *time.Time
	for _, d := range days {
		draft := assigned[d]
		if !qualityType(draft.Type) {
			continue
		}
		if lastQuality != nil {
			gap := int(d.Sub(*lastQuality).Hours() / 24)
			if gap <= a.restGap && draft.Type != domain.WorkoutLong {
				draft.Type = domain.WorkoutEasy
				draft.PlannedIntensity = intensityFor(domain.WorkoutEasy)
				draft.Description = descriptionFor(domain.WorkoutEasy)
				assigned[d] = draft
				continue
			}
		}
		day := d
		lastQuality = &day
	}
}

func longRunDraft(km float64, recovery bool) domain.WorkoutDraft {
	desc := "Comfortable long run; keep it conversational."
	if recovery {
		desc = "Shorter long run this week; recovery volume."
	}
	return domain.WorkoutDraft{
		Type:              domain.WorkoutLong,
		PlannedDistanceKm: km,
		PlannedIntensity:  "Z2-3",
		Description:       desc,
		ModifiedBy:        domain.ModifiedByRecalc,
	}
}

func sessionDraft(t domain.WorkoutType, km float64) domain.WorkoutDraft {
	return domain.WorkoutDraft{
		Type:              t,
		PlannedDistanceKm: km,
		PlannedIntensity:  intensityFor(t),
		Description:       descriptionFor(t),
		ModifiedBy:        domain.ModifiedByRecalc,
	}
}
