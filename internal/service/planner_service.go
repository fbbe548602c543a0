package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/planner"
	"github.com/skrivenk/runcoach/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrUnsatisfiableConstraints = errors.New("recalculation cannot satisfy plan constraints")
	ErrConcurrencyConflict      = errors.New("write lost a race on the plan; retry")
)

// PlannerService runs guardrail-constrained recalculation passes against the
// versioned workout store.
type PlannerService interface {
	// GenerateInitial lays out the whole schedule of a freshly created plan.
	GenerateInitial(ctx context.Context, planID primitive.ObjectID) ([]domain.WorkoutVersion, error)
	// Recalculate replaces the current versions of every date after asOf.
	// All-or-nothing: on error the store is untouched.
	Recalculate(ctx context.Context, planID primitive.ObjectID, asOf time.Time) ([]domain.WorkoutVersion, error)
}

type plannerService struct {
	planRepo       repository.PlanRepository
	baselineRepo   repository.BaselineRunRepository
	workoutRepo    repository.WorkoutVersionRepository
	constraintRepo repository.ConstraintRepository
	policy         planner.Policy
	locks          *PlanLocker
}

// NewPlannerService creates a new instance of plannerService.
func NewPlannerService(
	planRepo repository.PlanRepository,
	baselineRepo repository.BaselineRunRepository,
	workoutRepo repository.WorkoutVersionRepository,
	constraintRepo repository.ConstraintRepository,
	policy planner.Policy,
	locks *PlanLocker,
) PlannerService {
	return &plannerService{
		planRepo:       planRepo,
		baselineRepo:   baselineRepo,
		workoutRepo:    workoutRepo,
		constraintRepo: constraintRepo,
		policy:         policy,
		locks:          locks,
	}
}

func (s *plannerService) GenerateInitial(ctx context.Context, planID primitive.ObjectID) ([]domain.WorkoutVersion, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	// Evaluating from the eve of the start date schedules every plan day.
	eve := domain.NormalizeDate(plan.StartDate).AddDate(0, 0, -1)
	return s.recalculate(ctx, plan, eve, domain.ModifiedByInitialGen)
}

func (s *plannerService) Recalculate(ctx context.Context, planID primitive.ObjectID, asOf time.Time) ([]domain.WorkoutVersion, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return s.recalculate(ctx, plan, asOf, domain.ModifiedByRecalc)
}

func (s *plannerService) recalculate(ctx context.Context, plan *domain.Plan, asOf time.Time, provenance string) ([]domain.WorkoutVersion, error) {
	unlock := s.locks.Lock(plan.ID)
	defer unlock()

	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"runId":  runID,
		"planId": plan.ID.Hex(),
		"asOf":   domain.NormalizeDate(asOf).Format("2006-01-02"),
	})

	constraints, err := s.constraintRepo.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}
	baselines, err := s.baselineRepo.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load baseline runs: %w", err)
	}
	history, err := s.workoutRepo.GetCurrentRange(ctx, plan.ID, plan.StartDate, asOf)
	if err != nil {
		return nil, fmt.Errorf("load workout history: %w", err)
	}

	if !plan.GuardrailsEnabled {
		logger.Warn("guardrails disabled: weekly increases are unconstrained")
	}

	result, err := planner.Recalculate(planner.Inputs{
		Plan:        *plan,
		Constraints: constraints,
		Baselines:   baselines,
		History:     history,
		AsOf:        asOf,
	}, s.policy)
	if err != nil {
		if errors.Is(err, planner.ErrUnsatisfiableConstraints) {
			logger.WithError(err).Warn("recalculation aborted, store unchanged")
			return nil, fmt.Errorf("%w: %v", ErrUnsatisfiableConstraints, err)
		}
		return nil, err
	}
	if len(result.Drafts) == 0 {
		logger.Info("no future dates to schedule")
		return nil, nil
	}

	for i := range result.Drafts {
		result.Drafts[i].Draft.ModifiedBy = provenance
	}

	// Days completed ahead of the evaluation date are immutable history just
	// like past completions. Their drafts are dropped; the rest of the pass
	// still goes through.
	future, err := s.workoutRepo.GetCurrentRange(ctx, plan.ID, domain.NormalizeDate(asOf).AddDate(0, 0, 1), plan.EndDate())
	if err != nil {
		return nil, fmt.Errorf("load future schedule: %w", err)
	}
	completedAhead := make(map[time.Time]struct{})
	for i := range future {
		if future[i].Completed() {
			completedAhead[domain.NormalizeDate(future[i].Date)] = struct{}{}
		}
	}
	if len(completedAhead) > 0 {
		kept := result.Drafts[:0]
		for _, d := range result.Drafts {
			if _, done := completedAhead[domain.NormalizeDate(d.Date)]; done {
				continue
			}
			kept = append(kept, d)
		}
		logger.WithField("completedDays", len(result.Drafts)-len(kept)).Info("skipped days already completed ahead of the evaluation date")
		result.Drafts = kept
	}
	if len(result.Drafts) == 0 {
		logger.Info("no open future dates to schedule")
		return nil, nil
	}

	written, err := s.workoutRepo.ReplaceFuture(ctx, plan.ID, domain.NormalizeDate(asOf), result.Drafts)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("write recalculated schedule: %w", err)
	}

	logger.WithFields(log.Fields{
		"days":         len(written),
		"weeklyKm":     result.Signal.WeeklyKm,
		"fromBaseline": result.Signal.FromBaseline,
	}).Info("recalculation pass committed")
	return written, nil
}
