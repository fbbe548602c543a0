package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidPlanInput   = errors.New("invalid plan input")
	ErrConstraintNotValid = errors.New("invalid plan constraint")
)

// CreatePlanInput carries the user-facing plan parameters. Zero caps and
// days-per-week take the documented defaults.
type CreatePlanInput struct {
	Name              string
	GoalType          domain.GoalType
	StartDate         time.Time
	RaceDate          *time.Time
	DurationWeeks     int
	MaxDaysPerWeek    int
	LongRunDay        time.Weekday
	WeeklyIncreaseCap float64
	LongRunCap        float64
	GuardrailsEnabled bool

	// Optional baseline recorded together with the plan, the way the intake
	// wizard submits it.
	Baseline *BaselineRunInput
}

// BaselineRunInput is a pre-plan run to seed the fitness signal.
type BaselineRunInput struct {
	Date            time.Time
	DistanceKm      float64
	DurationSeconds int
	RPE             *int
	AvgHeartRate    *int
	ElevationGainM  *int
	Notes           string
}

// UpdatePlanInput lists the editable plan fields; nil means unchanged.
type UpdatePlanInput struct {
	Name              *string
	RaceDate          *time.Time
	MaxDaysPerWeek    *int
	LongRunDay        *time.Weekday
	WeeklyIncreaseCap *float64
	LongRunCap        *float64
	GuardrailsEnabled *bool
}

// PlanService owns the plan lifecycle: creation with initial schedule
// generation, edits that retrigger recalculation, and cascade deletion.
type PlanService interface {
	CreatePlan(ctx context.Context, input CreatePlanInput) (*domain.Plan, error)
	GetPlan(ctx context.Context, planID primitive.ObjectID) (*domain.Plan, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	UpdatePlan(ctx context.Context, planID primitive.ObjectID, input UpdatePlanInput, asOf time.Time) (*domain.Plan, error)
	DeletePlan(ctx context.Context, planID primitive.ObjectID) error

	AddBaselineRun(ctx context.Context, planID primitive.ObjectID, input BaselineRunInput) (*domain.BaselineRun, error)
	ListBaselineRuns(ctx context.Context, planID primitive.ObjectID) ([]domain.BaselineRun, error)

	AddConstraint(ctx context.Context, planID primitive.ObjectID, ctype domain.ConstraintType, value string, asOf time.Time) (*domain.PlanConstraint, error)
	ListConstraints(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanConstraint, error)
}

type planService struct {
	planRepo       repository.PlanRepository
	baselineRepo   repository.BaselineRunRepository
	constraintRepo repository.ConstraintRepository
	plannerService PlannerService
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.PlanRepository,
	baselineRepo repository.BaselineRunRepository,
	constraintRepo repository.ConstraintRepository,
	plannerService PlannerService,
) PlanService {
	return &planService{
		planRepo:       planRepo,
		baselineRepo:   baselineRepo,
		constraintRepo: constraintRepo,
		plannerService: plannerService,
	}
}

func (s *planService) CreatePlan(ctx context.Context, input CreatePlanInput) (*domain.Plan, error) {
	plan := &domain.Plan{
		Name:              input.Name,
		GoalType:          input.GoalType,
		StartDate:         domain.NormalizeDate(input.StartDate),
		RaceDate:          input.RaceDate,
		DurationWeeks:     input.DurationWeeks,
		MaxDaysPerWeek:    input.MaxDaysPerWeek,
		LongRunDay:        input.LongRunDay,
		WeeklyIncreaseCap: input.WeeklyIncreaseCap,
		LongRunCap:        input.LongRunCap,
		GuardrailsEnabled: input.GuardrailsEnabled,
	}
	if plan.MaxDaysPerWeek == 0 {
		plan.MaxDaysPerWeek = domain.DefaultMaxDaysPerWeek
	}
	if plan.WeeklyIncreaseCap == 0 {
		plan.WeeklyIncreaseCap = domain.DefaultWeeklyIncreaseCap
	}
	if plan.LongRunCap == 0 {
		plan.LongRunCap = domain.DefaultLongRunCap
	}
	if plan.RaceDate != nil {
		normalized := domain.NormalizeDate(*plan.RaceDate)
		plan.RaceDate = &normalized
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanInput, err)
	}

	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = planID

	if input.Baseline != nil {
		if _, err := s.AddBaselineRun(ctx, planID, *input.Baseline); err != nil {
			s.rollbackPlan(ctx, planID)
			return nil, err
		}
	}

	if _, err := s.plannerService.GenerateInitial(ctx, planID); err != nil {
		s.rollbackPlan(ctx, planID)
		return nil, err
	}

	return s.planRepo.GetByID(ctx, planID)
}

// rollbackPlan removes a half-created plan so a failed creation leaves no
// orphaned record behind.
func (s *planService) rollbackPlan(ctx context.Context, planID primitive.ObjectID) {
	if err := s.planRepo.Delete(ctx, planID); err != nil {
		log.WithError(err).WithField("planId", planID.Hex()).
			Error("failed to roll back plan after creation error")
	}
}

func (s *planService) GetPlan(ctx context.Context, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.planRepo.GetAll(ctx)
}

// UpdatePlan persists the edited parameters and then recalculates the future
// schedule. The plan update survives even when the subsequent recalculation
// fails; the error tells the caller which constraint could not be satisfied.
func (s *planService) UpdatePlan(ctx context.Context, planID primitive.ObjectID, input UpdatePlanInput, asOf time.Time) (*domain.Plan, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		plan.Name = *input.Name
	}
	if input.RaceDate != nil {
		normalized := domain.NormalizeDate(*input.RaceDate)
		plan.RaceDate = &normalized
	}
	if input.MaxDaysPerWeek != nil {
		plan.MaxDaysPerWeek = *input.MaxDaysPerWeek
	}
	if input.LongRunDay != nil {
		plan.LongRunDay = *input.LongRunDay
	}
	if input.WeeklyIncreaseCap != nil {
		plan.WeeklyIncreaseCap = *input.WeeklyIncreaseCap
	}
	if input.LongRunCap != nil {
		plan.LongRunCap = *input.LongRunCap
	}
	if input.GuardrailsEnabled != nil {
		plan.GuardrailsEnabled = *input.GuardrailsEnabled
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanInput, err)
	}

	if err := s.planRepo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	if _, err := s.plannerService.Recalculate(ctx, planID, asOf); err != nil {
		return nil, err
	}
	return s.planRepo.GetByID(ctx, planID)
}

func (s *planService) DeletePlan(ctx context.Context, planID primitive.ObjectID) error {
	err := s.planRepo.Delete(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPlanNotFound
	}
	return err
}

func (s *planService) AddBaselineRun(ctx context.Context, planID primitive.ObjectID, input BaselineRunInput) (*domain.BaselineRun, error) {
	if input.DistanceKm < 0 || input.DurationSeconds < 0 {
		return nil, fmt.Errorf("%w: negative distance or time", ErrInvalidPlanInput)
	}
	run := &domain.BaselineRun{
		PlanID:          planID,
		Date:            input.Date,
		DistanceKm:      input.DistanceKm,
		DurationSeconds: input.DurationSeconds,
		RPE:             input.RPE,
		AvgHeartRate:    input.AvgHeartRate,
		ElevationGainM:  input.ElevationGainM,
		Notes:           input.Notes,
	}
	if _, err := s.baselineRepo.Create(ctx, run); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *planService) ListBaselineRuns(ctx context.Context, planID primitive.ObjectID) ([]domain.BaselineRun, error) {
	return s.baselineRepo.GetByPlanID(ctx, planID)
}

// AddConstraint stores the rule and recalculates so the schedule honors it
// immediately.
func (s *planService) AddConstraint(ctx context.Context, planID primitive.ObjectID, ctype domain.ConstraintType, value string, asOf time.Time) (*domain.PlanConstraint, error) {
	if !domain.ValidConstraintType(ctype) {
		return nil, fmt.Errorf("%w: %q", ErrConstraintNotValid, ctype)
	}
	constraint := &domain.PlanConstraint{
		PlanID: planID,
		Type:   ctype,
		Value:  value,
	}
	if _, err := s.constraintRepo.Create(ctx, constraint); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		if errors.Is(err, repository.ErrInvalidInput) {
			return nil, fmt.Errorf("%w: %q", ErrConstraintNotValid, ctype)
		}
		return nil, err
	}
	if _, err := s.plannerService.Recalculate(ctx, planID, asOf); err != nil {
		return nil, err
	}
	return constraint, nil
}

func (s *planService) ListConstraints(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanConstraint, error) {
	return s.constraintRepo.GetByPlanID(ctx, planID)
}
