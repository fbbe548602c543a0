package service

import (
	"context"
	"testing"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/planner"
	"github.com/skrivenk/runcoach/internal/repository"
	"github.com/skrivenk/runcoach/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var startMonday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store       *memory.Store
	plans       repository.PlanRepository
	workouts    repository.WorkoutVersionRepository
	constraints repository.ConstraintRepository

	plannerService  PlannerService
	planService     PlanService
	scheduleService ScheduleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		store:       store,
		plans:       memory.NewPlanRepository(store),
		workouts:    memory.NewWorkoutVersionRepository(store),
		constraints: memory.NewConstraintRepository(store),
	}
	baselines := memory.NewBaselineRunRepository(store)
	locks := NewPlanLocker()
	env.plannerService = NewPlannerService(env.plans, baselines, env.workouts, env.constraints, planner.DefaultPolicy(), locks)
	env.planService = NewPlanService(env.plans, baselines, env.constraints, env.plannerService)
	env.scheduleService = NewScheduleService(env.plans, env.workouts, env.plannerService, locks)
	return env
}

func (e *testEnv) createPlan(t *testing.T) *domain.Plan {
	t.Helper()
	plan, err := e.planService.CreatePlan(context.Background(), CreatePlanInput{
		Name:              "spring 10k",
		GoalType:          domain.Goal10K,
		StartDate:         startMonday,
		DurationWeeks:     12,
		MaxDaysPerWeek:    4,
		LongRunDay:        time.Saturday,
		GuardrailsEnabled: true,
		Baseline: &BaselineRunInput{
			Date:            startMonday.AddDate(0, 0, -7),
			DistanceKm:      6,
			DurationSeconds: 2100,
		},
	})
	require.NoError(t, err)
	return plan
}

func TestCreatePlanGeneratesFullSchedule(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()

	schedule, err := env.scheduleService.GetCurrentRange(ctx, plan.ID, plan.StartDate, plan.EndDate().AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, schedule, 12*7)

	sessions := 0
	for _, wv := range schedule {
		assert.Equal(t, 1, wv.Version)
		assert.Equal(t, domain.ModifiedByInitialGen, wv.ModifiedBy)
		if wv.Type != domain.WorkoutRest {
			sessions++
		}
	}
	assert.Greater(t, sessions, 0)
}

func TestCreatePlanInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.planService.CreatePlan(context.Background(), CreatePlanInput{
		Name:      "",
		GoalType:  domain.Goal10K,
		StartDate: startMonday,
	})
	assert.ErrorIs(t, err, ErrInvalidPlanInput)

	plans, err := env.planService.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestRecalculateSupersedesFutureOnly(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	// Complete one day of week 1 before recalculating.
	completedDay := findSessionDay(t, env, plan.ID, plan.StartDate, asOf)
	km := 5.0
	_, err := env.workouts.RecordCompletion(ctx, plan.ID, completedDay, domain.CompletionActuals{DistanceKm: &km})
	require.NoError(t, err)

	written, err := env.plannerService.Recalculate(ctx, plan.ID, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, written)

	for _, wv := range written {
		assert.True(t, wv.Date.After(asOf))
		assert.Equal(t, 2, wv.Version)
		assert.Equal(t, domain.ModifiedByRecalc, wv.ModifiedBy)
	}

	// The completed day keeps its version-1 record.
	current, err := env.workouts.GetCurrent(ctx, plan.ID, completedDay)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.True(t, current.Completed())
}

func TestRecalculateSkipsDaysCompletedAhead(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	// A session in week 2, completed before the end of week 1.
	aheadDay := findSessionDay(t, env, plan.ID, startMonday.AddDate(0, 0, 7), startMonday.AddDate(0, 0, 13))
	km := 5.0
	_, err := env.workouts.RecordCompletion(ctx, plan.ID, aheadDay, domain.CompletionActuals{DistanceKm: &km})
	require.NoError(t, err)

	written, err := env.plannerService.Recalculate(ctx, plan.ID, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, written)

	// The open future days were rescheduled around the completed one.
	for _, wv := range written {
		assert.Equal(t, 2, wv.Version)
		assert.False(t, wv.Date.Equal(aheadDay))
	}

	current, err := env.workouts.GetCurrent(ctx, plan.ID, aheadDay)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.True(t, current.Completed())

	// Plan edits recalculate through the same path and keep working too.
	days := 3
	_, err = env.planService.UpdatePlan(ctx, plan.ID, UpdatePlanInput{MaxDaysPerWeek: &days}, asOf)
	require.NoError(t, err)
}

func TestRecalculateIdempotentContent(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	first, err := env.plannerService.Recalculate(ctx, plan.ID, asOf)
	require.NoError(t, err)
	second, err := env.plannerService.Recalculate(ctx, plan.ID, asOf)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	// A second pass writes new version numbers but the same schedule.
	for i := range first {
		assert.Equal(t, first[i].Date, second[i].Date)
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].PlannedDistanceKm, second[i].PlannedDistanceKm)
		assert.Equal(t, first[i].Version+1, second[i].Version)
	}
}

func TestRecalculateUnsatisfiableLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()

	// Forbid every weekday, bypassing AddConstraint's recalculation.
	for d := 0; d < 7; d++ {
		_, err := env.constraints.Create(ctx, &domain.PlanConstraint{
			PlanID: plan.ID,
			Type:   domain.ConstraintNoRunWeekday,
			Value:  string(rune('0' + d)),
		})
		require.NoError(t, err)
	}

	before, err := env.workouts.History(ctx, plan.ID, plan.StartDate)
	require.NoError(t, err)

	_, err = env.plannerService.Recalculate(ctx, plan.ID, startMonday.AddDate(0, 0, -1))
	require.ErrorIs(t, err, ErrUnsatisfiableConstraints)

	after, err := env.workouts.History(ctx, plan.ID, plan.StartDate)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdatePlanSurvivesRecalcFailure(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()

	zero := 0
	_, err := env.planService.UpdatePlan(ctx, plan.ID, UpdatePlanInput{MaxDaysPerWeek: &zero}, startMonday.AddDate(0, 0, 6))
	require.ErrorIs(t, err, ErrUnsatisfiableConstraints)

	// The parameter change persisted even though rescheduling failed.
	stored, err := env.planService.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.MaxDaysPerWeek)
}

func TestAddConstraintReschedules(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	_, err := env.planService.AddConstraint(ctx, plan.ID, domain.ConstraintNoRunWeekday, "3", asOf)
	require.NoError(t, err)

	schedule, err := env.scheduleService.GetCurrentRange(ctx, plan.ID, asOf.AddDate(0, 0, 1), plan.EndDate().AddDate(0, 0, -1))
	require.NoError(t, err)
	for _, wv := range schedule {
		if wv.Date.Weekday() == time.Wednesday {
			assert.Equal(t, domain.WorkoutRest, wv.Type)
		}
		assert.Equal(t, 2, wv.Version)
	}
}

func TestAddConstraintRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)

	_, err := env.planService.AddConstraint(context.Background(), plan.ID, "lunar_phase", "full", startMonday)
	assert.ErrorIs(t, err, ErrConstraintNotValid)
}

func TestEditWorkoutCreatesUserVersion(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	day := startMonday.AddDate(0, 0, 10)

	edited, err := env.scheduleService.EditWorkout(ctx, plan.ID, day, domain.WorkoutDraft{
		Type:              domain.WorkoutEasy,
		PlannedDistanceKm: 4.2,
		Description:       "shakeout before travel",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Version)
	assert.Equal(t, domain.ModifiedByUserEdit, edited.ModifiedBy)

	history, err := env.scheduleService.History(ctx, plan.ID, day)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsCurrent)
}

func TestEditWorkoutOutsidePlanWindow(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)

	_, err := env.scheduleService.EditWorkout(context.Background(), plan.ID, plan.EndDate(), domain.WorkoutDraft{
		Type: domain.WorkoutEasy,
	})
	assert.ErrorIs(t, err, ErrDateOutsidePlan)
}

func TestRecordCompletionDivergenceTriggersRecalc(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	day := findSessionDay(t, env, plan.ID, plan.StartDate, asOf)
	current, err := env.scheduleService.GetCurrent(ctx, plan.ID, day)
	require.NoError(t, err)

	doubled := current.PlannedDistanceKm * 2
	done, recalculated, err := env.scheduleService.RecordCompletion(ctx, plan.ID, day, domain.CompletionActuals{
		DistanceKm: &doubled,
	}, asOf)
	require.NoError(t, err)
	assert.True(t, recalculated)
	assert.True(t, done.Completed())

	// Future days were rescheduled by the triggered pass.
	future, err := env.scheduleService.GetCurrent(ctx, plan.ID, asOf.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, future.Version)
	assert.Equal(t, domain.ModifiedByRecalc, future.ModifiedBy)
}

func TestRecordCompletionOnPlanNoRecalc(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	day := findSessionDay(t, env, plan.ID, plan.StartDate, asOf)
	current, err := env.scheduleService.GetCurrent(ctx, plan.ID, day)
	require.NoError(t, err)

	asPlanned := current.PlannedDistanceKm
	_, recalculated, err := env.scheduleService.RecordCompletion(ctx, plan.ID, day, domain.CompletionActuals{
		DistanceKm: &asPlanned,
	}, asOf)
	require.NoError(t, err)
	assert.False(t, recalculated)

	future, err := env.scheduleService.GetCurrent(ctx, plan.ID, asOf.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, future.Version)
}

func TestMarkMissedReschedules(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	day := findSessionDay(t, env, plan.ID, plan.StartDate, asOf)
	require.NoError(t, env.scheduleService.MarkMissed(ctx, plan.ID, day, asOf))

	// The missed day itself is untouched; the future was replanned.
	missed, err := env.scheduleService.GetCurrent(ctx, plan.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, missed.Version)
	assert.False(t, missed.Completed())

	future, err := env.scheduleService.GetCurrent(ctx, plan.ID, asOf.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, future.Version)
}

func TestMarkMissedCompletedDayRejected(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := startMonday.AddDate(0, 0, 6)

	day := findSessionDay(t, env, plan.ID, plan.StartDate, asOf)
	km := 5.0
	_, err := env.workouts.RecordCompletion(ctx, plan.ID, day, domain.CompletionActuals{DistanceKm: &km})
	require.NoError(t, err)

	err = env.scheduleService.MarkMissed(ctx, plan.ID, day, asOf)
	assert.ErrorIs(t, err, ErrInvalidWorkoutInput)
}

func TestDeletePlanCascades(t *testing.T) {
	env := newTestEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()

	require.NoError(t, env.planService.DeletePlan(ctx, plan.ID))

	_, err := env.planService.GetPlan(ctx, plan.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	history, err := env.scheduleService.History(ctx, plan.ID, plan.StartDate)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPlanNotFoundSurface(t *testing.T) {
	env := newTestEnv(t)
	unknown := primitive.NewObjectID()
	ctx := context.Background()

	_, err := env.plannerService.Recalculate(ctx, unknown, startMonday)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = env.planService.GetPlan(ctx, unknown)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = env.scheduleService.GetCurrent(ctx, unknown, startMonday)
	assert.ErrorIs(t, err, ErrWorkoutNotFound)
}

// findSessionDay returns the first scheduled non-rest day between from and
// to, inclusive.
func findSessionDay(t *testing.T, env *testEnv, planID primitive.ObjectID, from, to time.Time) time.Time {
	t.Helper()
	schedule, err := env.scheduleService.GetCurrentRange(context.Background(), planID, from, to)
	require.NoError(t, err)
	for _, wv := range schedule {
		if wv.Type != domain.WorkoutRest && wv.Type != domain.WorkoutCrosstrain {
			return wv.Date
		}
	}
	t.Fatal("no session day scheduled in range")
	return time.Time{}
}
