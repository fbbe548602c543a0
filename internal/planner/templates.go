package planner

import "github.com/skrivenk/runcoach/internal/domain"

// phaseTemplate returns the ordered session types for a week's non-long run
// days. Recovery weeks keep everything easy regardless of phase.
func phaseTemplate(phase Phase, goal domain.GoalType, recovery bool) []domain.WorkoutType {
	if recovery {
		return []domain.WorkoutType{
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
		}
	}

	switch phase {
	case PhaseBase:
		if goal == domain.GoalFitness || goal == domain.GoalMaintenance {
			return []domain.WorkoutType{
				domain.WorkoutEasy,
				domain.WorkoutCrosstrain,
				domain.WorkoutEasy,
				domain.WorkoutRecovery,
			}
		}
		return []domain.WorkoutType{
			domain.WorkoutEasy,
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
			domain.WorkoutEasy,
		}
	case PhaseTaper:
		return []domain.WorkoutType{
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
			domain.WorkoutEasy,
		}
	}

	// Build phase: shorter goals lean on intervals, longer ones on tempo.
	switch goal {
	case domain.Goal5K, domain.Goal10K:
		return []domain.WorkoutType{
			domain.WorkoutIntervals,
			domain.WorkoutEasy,
			domain.WorkoutTempo,
			domain.WorkoutRecovery,
		}
	case domain.GoalHalf, domain.GoalMarathon:
		return []domain.WorkoutType{
			domain.WorkoutTempo,
			domain.WorkoutEasy,
			domain.WorkoutIntervals,
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
		}
	default:
		return []domain.WorkoutType{
			domain.WorkoutEasy,
			domain.WorkoutCrosstrain,
			domain.WorkoutEasy,
			domain.WorkoutRecovery,
		}
	}
}

// typeWeight biases the mileage split across a week's non-long sessions.
// Crosstrain carries no running distance.
func typeWeight(t domain.WorkoutType) float64 {
	switch t {
	case domain.WorkoutTempo:
		return 1.1
	case domain.WorkoutRecovery:
		return 0.6
	case domain.WorkoutCrosstrain:
		return 0
	default:
		return 1.0
	}
}

func intensityFor(t domain.WorkoutType) string {
	switch t {
	case domain.WorkoutEasy:
		return "Z1-2"
	case domain.WorkoutTempo:
		return "20-25min comfortably hard"
	case domain.WorkoutIntervals:
		return "5x(3min hard / 2min easy)"
	case domain.WorkoutRecovery:
		return "Z1"
	case domain.WorkoutCrosstrain:
		return "30-45min non-impact"
	}
	return ""
}

func descriptionFor(t domain.WorkoutType) string {
	switch t {
	case domain.WorkoutEasy:
		return "Easy run; relaxed form."
	case domain.WorkoutTempo:
		return "Steady tempo; smooth effort."
	case domain.WorkoutIntervals:
		return "Quality intervals; warmup/cooldown included."
	case domain.WorkoutRecovery:
		return "Very easy recovery jog."
	case domain.WorkoutCrosstrain:
		return "Bike, swim or elliptical; keep the effort easy."
	}
	return ""
}
