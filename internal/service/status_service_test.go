package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skrivenk/runcoach/internal/coach"
	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/planner"
	"github.com/skrivenk/runcoach/internal/repository"
	"github.com/skrivenk/runcoach/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeCoach records requests and replies with canned commentary or an error.
type fakeCoach struct {
	mu       sync.Mutex
	requests []coach.Request
	reply    coach.Commentary
	usage    coach.Usage
	err      error
	onCall   func()
}

func (f *fakeCoach) Commentary(ctx context.Context, req coach.Request) (coach.Commentary, coach.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return coach.Commentary{}, coach.Usage{}, f.err
	}
	return f.reply, f.usage, nil
}

// fakeUsageLog captures metering entries.
type fakeUsageLog struct {
	entries []domain.GenerationUsage
}

func (f *fakeUsageLog) Log(ctx context.Context, usage *domain.GenerationUsage) (primitive.ObjectID, error) {
	f.entries = append(f.entries, *usage)
	return primitive.NewObjectID(), nil
}

type statusEnv struct {
	*testEnv
	coach     *fakeCoach
	usage     *fakeUsageLog
	snapshots repository.SnapshotRepository
	statusSvc StatusService
}

func newStatusEnv(t *testing.T) *statusEnv {
	t.Helper()
	env := newTestEnv(t)
	fc := &fakeCoach{}
	fu := &fakeUsageLog{}
	snapshots := memory.NewSnapshotRepository(env.store)
	return &statusEnv{
		testEnv:   env,
		coach:     fc,
		usage:     fu,
		snapshots: snapshots,
		statusSvc: NewStatusService(env.plans, env.workouts, snapshots, fu, fc, planner.DefaultPolicy()),
	}
}

// completeWeekAsPlanned records actuals equal to plan for every session of
// the week starting at weekStart.
func (e *statusEnv) completeWeekAsPlanned(t *testing.T, planID primitive.ObjectID, weekStart time.Time) {
	t.Helper()
	ctx := context.Background()
	schedule, err := e.workouts.GetCurrentRange(ctx, planID, weekStart, weekStart.AddDate(0, 0, 6))
	require.NoError(t, err)
	for _, wv := range schedule {
		if wv.Type == domain.WorkoutRest {
			continue
		}
		km := wv.PlannedDistanceKm
		_, err := e.workouts.RecordCompletion(ctx, planID, wv.Date, domain.CompletionActuals{DistanceKm: &km})
		require.NoError(t, err)
	}
}

func TestEvaluateFullComplianceOnTrack(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)
	env.completeWeekAsPlanned(t, plan.ID, plan.StartDate)

	snap, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.WeekNumber)
	assert.InDelta(t, 1.0, snap.Attainability, 0.001)
	assert.Equal(t, domain.StatusOnTrack, snap.StatusCode)
	assert.Equal(t, "On Track", snap.StatusLabel)
	assert.InDelta(t, snap.TargetWeeklyKm, snap.ActualWeeklyKm, 0.001)
	assert.InDelta(t, snap.TargetLoad, snap.ActualLoad, 0.001)
}

func TestEvaluateNothingDoneOffTrack(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)

	snap, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, snap.Attainability, 0.001)
	assert.Equal(t, domain.StatusOffTrack, snap.StatusCode)
	assert.Equal(t, "Needs Attention", snap.StatusLabel)
	assert.Zero(t, snap.ActualWeeklyKm)
	assert.Greater(t, snap.TargetWeeklyKm, 0.0)
}

func TestEvaluateBeforeStart(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)

	_, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrNothingToEvaluate)
}

func TestEvaluatePastEndScoresFinalWeek(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)

	snap, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.EndDate().AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, plan.DurationWeeks, snap.WeekNumber)
}

func TestEvaluateAttachesCommentaryAndMetersUsage(t *testing.T) {
	env := newStatusEnv(t)
	env.coach.reply = coach.Commentary{Notes: "solid week", Recommendations: "keep the long run easy"}
	env.coach.usage = coach.Usage{Model: "gpt-4o-mini", PromptTokens: 180, CompletionTokens: 60, CostUSD: 0.0001}
	plan := env.createPlan(t)
	env.completeWeekAsPlanned(t, plan.ID, plan.StartDate)

	snap, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, "solid week", snap.CoachNotes)
	assert.Equal(t, "keep the long run easy", snap.Recommendations)

	require.Len(t, env.coach.requests, 1)
	req := env.coach.requests[0]
	assert.Equal(t, plan.Name, req.PlanName)
	assert.Equal(t, snap.Attainability, req.Attainability)

	require.Len(t, env.usage.entries, 1)
	assert.Equal(t, "gpt-4o-mini", env.usage.entries[0].Model)
	assert.Equal(t, "status_commentary", env.usage.entries[0].Purpose)
}

func TestEvaluateCoachFailureTolerated(t *testing.T) {
	env := newStatusEnv(t)
	env.coach.err = errors.New("upstream timeout")
	plan := env.createPlan(t)

	snap, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Empty(t, snap.CoachNotes)
	assert.Empty(t, env.usage.entries)

	// The numeric snapshot was still appended.
	latest, err := env.statusSvc.Latest(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Attainability, latest.Attainability)
}

func TestEvaluateSnapshotDurableBeforeCommentary(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)
	env.completeWeekAsPlanned(t, plan.ID, plan.StartDate)
	env.coach.reply = coach.Commentary{Notes: "solid week", Recommendations: "hold the volume"}

	// The numeric snapshot must already be readable when the coach is asked.
	var duringCall *domain.StatusSnapshot
	env.coach.onCall = func() {
		snap, err := env.snapshots.Latest(context.Background(), plan.ID)
		require.NoError(t, err)
		duringCall = snap
	}

	_, err := env.statusSvc.Evaluate(context.Background(), plan.ID, plan.StartDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	require.NotNil(t, duringCall)
	assert.Empty(t, duringCall.CoachNotes)
	assert.InDelta(t, 1.0, duringCall.Attainability, 0.001)

	// Commentary lands on the stored snapshot afterwards.
	latest, err := env.snapshots.Latest(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "solid week", latest.CoachNotes)
	assert.Equal(t, "hold the volume", latest.Recommendations)
}

func TestEvaluateAppendsOnly(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)
	ctx := context.Background()
	asOf := plan.StartDate.AddDate(0, 0, 7)

	_, err := env.statusSvc.Evaluate(ctx, plan.ID, asOf)
	require.NoError(t, err)
	second, err := env.statusSvc.Evaluate(ctx, plan.ID, asOf)
	require.NoError(t, err)

	history, err := env.statusSvc.List(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	latest, err := env.statusSvc.Latest(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestLatestWithoutSnapshots(t *testing.T) {
	env := newStatusEnv(t)
	plan := env.createPlan(t)

	_, err := env.statusSvc.Latest(context.Background(), plan.ID)
	assert.ErrorIs(t, err, ErrNothingToEvaluate)
}
