package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrWorkoutNotFound     = errors.New("no workout scheduled for that day")
	ErrDateOutsidePlan     = errors.New("date falls outside the plan window")
	ErrInvalidWorkoutInput = errors.New("invalid workout input")
)

// recalcDivergenceThreshold is the fraction by which a completed distance
// must differ from plan before a completion automatically triggers
// recalculation.
const recalcDivergenceThreshold = 0.15

// ScheduleService is the calendar-facing surface of the versioned workout
// store: reads, user edits and completion recording. Completions whose
// actuals diverge materially from plan trigger a recalculation pass.
type ScheduleService interface {
	GetCurrent(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error)
	GetCurrentRange(ctx context.Context, planID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutVersion, error)
	History(ctx context.Context, planID primitive.ObjectID, date time.Time) ([]domain.WorkoutVersion, error)
	// EditWorkout records a user revision of a day as a new current version.
	EditWorkout(ctx context.Context, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error)
	// RecordCompletion stores actuals against the day's current version and
	// reports whether a recalculation was triggered as a consequence.
	RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, actuals domain.CompletionActuals, asOf time.Time) (*domain.WorkoutVersion, bool, error)
	// MarkMissed acknowledges a skipped day and recalculates the future
	// schedule around it. The day itself stays uncompleted; the lowered
	// weekly actuals flow into the new targets.
	MarkMissed(ctx context.Context, planID primitive.ObjectID, date time.Time, asOf time.Time) error
}

type scheduleService struct {
	planRepo       repository.PlanRepository
	workoutRepo    repository.WorkoutVersionRepository
	plannerService PlannerService
	locks          *PlanLocker
}

// NewScheduleService creates a new instance of scheduleService.
func NewScheduleService(
	planRepo repository.PlanRepository,
	workoutRepo repository.WorkoutVersionRepository,
	plannerService PlannerService,
	locks *PlanLocker,
) ScheduleService {
	return &scheduleService{
		planRepo:       planRepo,
		workoutRepo:    workoutRepo,
		plannerService: plannerService,
		locks:          locks,
	}
}

func (s *scheduleService) GetCurrent(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error) {
	wv, err := s.workoutRepo.GetCurrent(ctx, planID, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return wv, nil
}

func (s *scheduleService) GetCurrentRange(ctx context.Context, planID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutVersion, error) {
	return s.workoutRepo.GetCurrentRange(ctx, planID, from, to)
}

func (s *scheduleService) History(ctx context.Context, planID primitive.ObjectID, date time.Time) ([]domain.WorkoutVersion, error) {
	return s.workoutRepo.History(ctx, planID, date)
}

func (s *scheduleService) EditWorkout(ctx context.Context, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	day := domain.NormalizeDate(date)
	if day.Before(domain.NormalizeDate(plan.StartDate)) || !day.Before(plan.EndDate()) {
		return nil, ErrDateOutsidePlan
	}
	if !domain.ValidWorkoutType(draft.Type) {
		return nil, fmt.Errorf("%w: workout type %q", ErrInvalidWorkoutInput, draft.Type)
	}
	if draft.PlannedDistanceKm < 0 {
		return nil, fmt.Errorf("%w: negative planned distance", ErrInvalidWorkoutInput)
	}
	draft.ModifiedBy = domain.ModifiedByUserEdit

	unlock := s.locks.Lock(planID)
	defer unlock()

	wv, err := s.workoutRepo.PutNewVersion(ctx, planID, day, draft)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrPlanNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConcurrencyConflict
		case errors.Is(err, repository.ErrInvalidInput):
			return nil, fmt.Errorf("%w: %v", ErrInvalidWorkoutInput, err)
		}
		return nil, err
	}
	return wv, nil
}

func (s *scheduleService) RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, actuals domain.CompletionActuals, asOf time.Time) (*domain.WorkoutVersion, bool, error) {
	unlock := s.locks.Lock(planID)
	wv, err := s.workoutRepo.RecordCompletion(ctx, planID, date, actuals)
	unlock()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, false, ErrWorkoutNotFound
		case errors.Is(err, repository.ErrInvalidInput):
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidWorkoutInput, err)
		}
		return nil, false, err
	}

	if !s.materialDivergence(wv) {
		return wv, false, nil
	}

	// The completion is already durable; a failed recalculation must not
	// undo it, so errors are logged and swallowed here.
	if _, err := s.plannerService.Recalculate(ctx, planID, asOf); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"planId": planID.Hex(),
			"date":   domain.NormalizeDate(date).Format("2006-01-02"),
		}).Warn("post-completion recalculation failed")
		return wv, false, nil
	}
	return wv, true, nil
}

func (s *scheduleService) MarkMissed(ctx context.Context, planID primitive.ObjectID, date time.Time, asOf time.Time) error {
	wv, err := s.workoutRepo.GetCurrent(ctx, planID, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkoutNotFound
		}
		return err
	}
	if wv.Completed() {
		return fmt.Errorf("%w: day already has a completed workout", ErrInvalidWorkoutInput)
	}
	if _, err := s.plannerService.Recalculate(ctx, planID, asOf); err != nil {
		return err
	}
	return nil
}

// materialDivergence reports whether completed actuals differ enough from
// plan to warrant regenerating the future schedule.
func (s *scheduleService) materialDivergence(wv *domain.WorkoutVersion) bool {
	if wv.ActualDistanceKm == nil || wv.PlannedDistanceKm <= 0 {
		return false
	}
	delta := math.Abs(*wv.ActualDistanceKm-wv.PlannedDistanceKm) / wv.PlannedDistanceKm
	return delta > recalcDivergenceThreshold
}
