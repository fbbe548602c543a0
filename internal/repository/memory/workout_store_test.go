package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestStore(t *testing.T) (*Store, primitive.ObjectID) {
	t.Helper()
	store := NewStore()
	plan := &domain.Plan{
		Name:              "test plan",
		GoalType:          domain.Goal10K,
		StartDate:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DurationWeeks:     12,
		MaxDaysPerWeek:    4,
		LongRunDay:        time.Saturday,
		WeeklyIncreaseCap: 0.10,
		LongRunCap:        0.30,
		GuardrailsEnabled: true,
	}
	id, err := NewPlanRepository(store).Create(context.Background(), plan)
	require.NoError(t, err)
	return store, id
}

func easyDraft(km float64) domain.WorkoutDraft {
	return domain.WorkoutDraft{
		Type:              domain.WorkoutEasy,
		PlannedDistanceKm: km,
		ModifiedBy:        domain.ModifiedByRecalc,
	}
}

func TestPutNewVersionDemotesPrevious(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	first, err := repo.PutNewVersion(ctx, planID, date, easyDraft(5))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.IsCurrent)

	second, err := repo.PutNewVersion(ctx, planID, date, easyDraft(6))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.True(t, second.IsCurrent)

	current, err := repo.GetCurrent(ctx, planID, date)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, 6.0, current.PlannedDistanceKm)

	history, err := repo.History(ctx, planID, date)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsCurrent)
	assert.True(t, history[1].IsCurrent)
}

func TestPutNewVersionUnknownPlan(t *testing.T) {
	store, _ := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)

	_, err := repo.PutNewVersion(context.Background(), primitive.NewObjectID(),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), easyDraft(5))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVersionsContiguousFromOne(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	n := gofakeit.Number(3, 12)
	for i := 0; i < n; i++ {
		_, err := repo.PutNewVersion(ctx, planID, date, easyDraft(gofakeit.Float64Range(2, 20)))
		require.NoError(t, err)
	}

	history, err := repo.History(ctx, planID, date)
	require.NoError(t, err)
	require.Len(t, history, n)
	currents := 0
	for i, wv := range history {
		assert.Equal(t, i+1, wv.Version)
		if wv.IsCurrent {
			currents++
			assert.Equal(t, n, wv.Version)
		}
	}
	assert.Equal(t, 1, currents)
}

func TestRecordCompletionKeepsVersion(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := repo.PutNewVersion(ctx, planID, date, easyDraft(8))
	require.NoError(t, err)

	km := 7.4
	rpe := 6
	done, err := repo.RecordCompletion(ctx, planID, date, domain.CompletionActuals{
		DistanceKm: &km,
		RPE:        &rpe,
		Splits:     []domain.Split{{DistanceKm: 3.7, DurationSeconds: 1400}},
	})
	require.NoError(t, err)

	// Completion annotates the current version in place.
	assert.Equal(t, 1, done.Version)
	assert.True(t, done.IsCurrent)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, km, *done.ActualDistanceKm)

	history, err := repo.History(ctx, planID, date)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordCompletionRejectsBadActuals(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := repo.PutNewVersion(ctx, planID, date, easyDraft(8))
	require.NoError(t, err)

	negKm := -1.0
	negSec := -60
	cases := []struct {
		name    string
		actuals domain.CompletionActuals
	}{
		{"negative distance", domain.CompletionActuals{DistanceKm: &negKm}},
		{"negative duration", domain.CompletionActuals{DurationSeconds: &negSec}},
		{"negative split distance", domain.CompletionActuals{Splits: []domain.Split{{DistanceKm: -2, DurationSeconds: 600}}}},
		{"negative split duration", domain.CompletionActuals{Splits: []domain.Split{{DistanceKm: 2, DurationSeconds: -600}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.RecordCompletion(ctx, planID, date, tc.actuals)
			assert.ErrorIs(t, err, repository.ErrInvalidInput)
		})
	}

	// Nothing was recorded.
	wv, err := repo.GetCurrent(ctx, planID, date)
	require.NoError(t, err)
	assert.False(t, wv.Completed())
}

func TestRecordCompletionNoWorkout(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)

	km := 5.0
	_, err := repo.RecordCompletion(context.Background(), planID,
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), domain.CompletionActuals{DistanceKm: &km})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReplaceFutureAllOrNothing(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	completedDay := asOf.AddDate(0, 0, 2)
	_, err := repo.PutNewVersion(ctx, planID, completedDay, easyDraft(5))
	require.NoError(t, err)
	km := 5.0
	_, err = repo.RecordCompletion(ctx, planID, completedDay, domain.CompletionActuals{DistanceKm: &km})
	require.NoError(t, err)

	openDay := asOf.AddDate(0, 0, 1)
	_, err = repo.PutNewVersion(ctx, planID, openDay, easyDraft(4))
	require.NoError(t, err)

	// One draft lands on the completed day; the whole batch must fail and
	// the open day must keep its version-1 schedule.
	_, err = repo.ReplaceFuture(ctx, planID, asOf, []domain.DatedDraft{
		{Date: openDay, Draft: easyDraft(6)},
		{Date: completedDay, Draft: easyDraft(7)},
	})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	current, err := repo.GetCurrent(ctx, planID, openDay)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, 4.0, current.PlannedDistanceKm)
}

func TestReplaceFutureRejectsNonFutureDraft(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.ReplaceFuture(context.Background(), planID, asOf, []domain.DatedDraft{
		{Date: asOf, Draft: easyDraft(5)},
	})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestReplaceFutureSupersedes(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	days := []time.Time{asOf.AddDate(0, 0, 1), asOf.AddDate(0, 0, 2), asOf.AddDate(0, 0, 3)}
	for _, d := range days {
		_, err := repo.PutNewVersion(ctx, planID, d, easyDraft(4))
		require.NoError(t, err)
	}

	drafts := make([]domain.DatedDraft, len(days))
	for i, d := range days {
		drafts[i] = domain.DatedDraft{Date: d, Draft: easyDraft(float64(6 + i))}
	}
	replaced, err := repo.ReplaceFuture(ctx, planID, asOf, drafts)
	require.NoError(t, err)
	require.Len(t, replaced, len(days))

	for i, d := range days {
		current, err := repo.GetCurrent(ctx, planID, d)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Version)
		assert.Equal(t, float64(6+i), current.PlannedDistanceKm)
	}
}

func TestConcurrentWritersKeepSingleCurrent(t *testing.T) {
	store, planID := newTestStore(t)
	repo := NewWorkoutVersionRepository(store)
	ctx := context.Background()
	date := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := repo.PutNewVersion(ctx, planID, date, easyDraft(gofakeit.Float64Range(2, 20))); err != nil {
					t.Error(err)
					return
				}
				// Interleave reads; currentLocked panics if the one-current
				// invariant ever breaks.
				if _, err := repo.GetCurrent(ctx, planID, date); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	history, err := repo.History(ctx, planID, date)
	require.NoError(t, err)
	require.Len(t, history, writers*perWriter)
	for i, wv := range history {
		require.Equal(t, i+1, wv.Version, fmt.Sprintf("gap at position %d", i))
	}
}

func TestPlanDeleteCascades(t *testing.T) {
	store, planID := newTestStore(t)
	ctx := context.Background()
	planRepo := NewPlanRepository(store)
	workoutRepo := NewWorkoutVersionRepository(store)
	snapshotRepo := NewSnapshotRepository(store)

	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	_, err := workoutRepo.PutNewVersion(ctx, planID, date, easyDraft(5))
	require.NoError(t, err)
	_, err = snapshotRepo.Append(ctx, &domain.StatusSnapshot{PlanID: planID, WeekNumber: 1})
	require.NoError(t, err)

	require.NoError(t, planRepo.Delete(ctx, planID))

	_, err = planRepo.GetByID(ctx, planID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	history, err := workoutRepo.History(ctx, planID, date)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = snapshotRepo.Latest(ctx, planID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
