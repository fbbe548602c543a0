package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/skrivenk/runcoach/internal/coach"
	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/planner"
	"github.com/skrivenk/runcoach/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNothingToEvaluate = errors.New("plan has no week to evaluate yet")

// Attainability score weights and classification thresholds.
const (
	weightMileage     = 0.4
	weightLongRun     = 0.3
	weightConsistency = 0.3

	thresholdOnTrack = 0.85
	thresholdAtRisk  = 0.60
)

// StatusService scores how attainable a plan's goal currently looks and
// records the result as an append-only snapshot. Coach commentary is
// attached when the collaborator is reachable and skipped otherwise.
type StatusService interface {
	// Evaluate scores the most recently concluded training week as of the
	// given date and appends a snapshot.
	Evaluate(ctx context.Context, planID primitive.ObjectID, asOf time.Time) (*domain.StatusSnapshot, error)
	Latest(ctx context.Context, planID primitive.ObjectID) (*domain.StatusSnapshot, error)
	List(ctx context.Context, planID primitive.ObjectID) ([]domain.StatusSnapshot, error)
}

type statusService struct {
	planRepo     repository.PlanRepository
	workoutRepo  repository.WorkoutVersionRepository
	snapshotRepo repository.SnapshotRepository
	usageRepo    repository.UsageLogRepository
	coachClient  coach.Client
	policy       planner.Policy
}

// NewStatusService creates a new instance of statusService.
func NewStatusService(
	planRepo repository.PlanRepository,
	workoutRepo repository.WorkoutVersionRepository,
	snapshotRepo repository.SnapshotRepository,
	usageRepo repository.UsageLogRepository,
	coachClient coach.Client,
	policy planner.Policy,
) StatusService {
	return &statusService{
		planRepo:     planRepo,
		workoutRepo:  workoutRepo,
		snapshotRepo: snapshotRepo,
		usageRepo:    usageRepo,
		coachClient:  coachClient,
		policy:       policy,
	}
}

func (s *statusService) Evaluate(ctx context.Context, planID primitive.ObjectID, asOf time.Time) (*domain.StatusSnapshot, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	evalWeek, err := evaluationWeek(plan, asOf)
	if err != nil {
		return nil, err
	}

	weekStart := domain.NormalizeDate(plan.StartDate).AddDate(0, 0, (evalWeek-1)*7)
	weekEnd := weekStart.AddDate(0, 0, 6)
	workouts, err := s.workoutRepo.GetCurrentRange(ctx, planID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	snap := s.score(plan, evalWeek, workouts)
	snap.SnapshotDate = domain.NormalizeDate(asOf)

	// The numeric snapshot is durable before the collaborator is consulted;
	// commentary arrives as an after-the-fact attachment.
	if _, err := s.snapshotRepo.Append(ctx, snap); err != nil {
		return nil, err
	}
	s.attachCommentary(ctx, plan, snap)
	return snap, nil
}

func (s *statusService) Latest(ctx context.Context, planID primitive.ObjectID) (*domain.StatusSnapshot, error) {
	snap, err := s.snapshotRepo.Latest(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNothingToEvaluate
		}
		return nil, err
	}
	return snap, nil
}

func (s *statusService) List(ctx context.Context, planID primitive.ObjectID) ([]domain.StatusSnapshot, error) {
	return s.snapshotRepo.GetByPlanID(ctx, planID)
}

// evaluationWeek picks the most recently concluded week: the one before the
// week asOf falls in, clamped to the plan window. During week one the week
// itself is scored, partial as it may be.
func evaluationWeek(plan *domain.Plan, asOf time.Time) (int, error) {
	day := domain.NormalizeDate(asOf)
	if day.Before(domain.NormalizeDate(plan.StartDate)) {
		return 0, ErrNothingToEvaluate
	}
	week := plan.WeekOf(day)
	switch {
	case week == 0:
		// Past the end of the plan; score the final week.
		return plan.DurationWeeks, nil
	case week > 1:
		return week - 1, nil
	default:
		return 1, nil
	}
}

func (s *statusService) score(plan *domain.Plan, week int, workouts []domain.WorkoutVersion) *domain.StatusSnapshot {
	var (
		actualKm, targetKm     float64
		actualLoad, targetLoad float64
		longPlanned, longDone  float64
		longScheduled          bool
		scheduled, completed   int
	)

	for i := range workouts {
		w := &workouts[i]
		if w.Type == domain.WorkoutRest {
			continue
		}
		scheduled++
		targetKm += w.PlannedDistanceKm
		targetLoad += w.PlannedDistanceKm * float64(s.policy.DefaultRPE)

		if w.Type == domain.WorkoutLong {
			longScheduled = true
			longPlanned += w.PlannedDistanceKm
		}

		if !w.Completed() {
			continue
		}
		completed++
		km := w.PlannedDistanceKm
		if w.ActualDistanceKm != nil {
			km = *w.ActualDistanceKm
		}
		rpe := s.policy.DefaultRPE
		if w.ActualRPE != nil {
			rpe = *w.ActualRPE
		}
		actualKm += km
		actualLoad += km * float64(rpe)
		if w.Type == domain.WorkoutLong {
			longDone += km
		}
	}

	mileage := adherence(actualKm, targetKm)
	longRun := 1.0
	if longScheduled {
		longRun = adherence(longDone, longPlanned)
	}
	consistency := 1.0
	if scheduled > 0 {
		consistency = float64(completed) / float64(scheduled)
	}

	attainability := weightMileage*mileage + weightLongRun*longRun + weightConsistency*consistency
	attainability = math.Round(attainability*100) / 100

	code := domain.StatusOffTrack
	switch {
	case attainability >= thresholdOnTrack:
		code = domain.StatusOnTrack
	case attainability >= thresholdAtRisk:
		code = domain.StatusAtRisk
	}

	return &domain.StatusSnapshot{
		PlanID:         plan.ID,
		WeekNumber:     week,
		Attainability:  attainability,
		StatusCode:     code,
		StatusLabel:    code.Label(),
		ActualWeeklyKm: math.Round(actualKm*10) / 10,
		TargetWeeklyKm: math.Round(targetKm*10) / 10,
		ActualLoad:     math.Round(actualLoad*10) / 10,
		TargetLoad:     math.Round(targetLoad*10) / 10,
	}
}

func adherence(actual, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return math.Min(1, actual/target)
}

// attachCommentary asks the coach collaborator to annotate the snapshot.
// Failures are logged and the snapshot keeps its numerics only.
func (s *statusService) attachCommentary(ctx context.Context, plan *domain.Plan, snap *domain.StatusSnapshot) {
	commentary, usage, err := s.coachClient.Commentary(ctx, coach.Request{
		PlanName:       plan.Name,
		GoalType:       plan.GoalType,
		WeekNumber:     snap.WeekNumber,
		Attainability:  snap.Attainability,
		StatusLabel:    snap.StatusLabel,
		ActualWeeklyKm: snap.ActualWeeklyKm,
		TargetWeeklyKm: snap.TargetWeeklyKm,
		ActualLoad:     snap.ActualLoad,
		TargetLoad:     snap.TargetLoad,
	})
	if err != nil {
		if !errors.Is(err, coach.ErrDisabled) {
			log.WithError(err).WithField("planId", plan.ID.Hex()).Warn("coach commentary unavailable")
		}
		return
	}
	snap.CoachNotes = commentary.Notes
	snap.Recommendations = commentary.Recommendations
	if err := s.snapshotRepo.AttachCommentary(ctx, snap.ID, commentary.Notes, commentary.Recommendations); err != nil {
		log.WithError(err).WithField("planId", plan.ID.Hex()).Warn("failed to persist coach commentary")
	}

	if _, err := s.usageRepo.Log(ctx, &domain.GenerationUsage{
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          usage.CostUSD,
		Purpose:          "status_commentary",
	}); err != nil {
		log.WithError(err).Warn("failed to record generation usage")
	}
}
