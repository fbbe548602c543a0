package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type workoutRepo struct {
	s *Store
}

// NewWorkoutVersionRepository returns the versioned workout store view.
func NewWorkoutVersionRepository(s *Store) repository.WorkoutVersionRepository {
	return &workoutRepo{s: s}
}

func validateDraft(draft domain.WorkoutDraft) error {
	if !domain.ValidWorkoutType(draft.Type) {
		return fmt.Errorf("%w: workout type %q", repository.ErrInvalidInput, draft.Type)
	}
	if draft.PlannedDistanceKm < 0 {
		return fmt.Errorf("%w: negative planned distance", repository.ErrInvalidInput)
	}
	return nil
}

func (r *workoutRepo) GetCurrent(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.currentLocked(planID, domain.NormalizeDate(date))
}

// currentLocked requires at least a read lock held by the caller.
func (r *workoutRepo) currentLocked(planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error) {
	versions := r.s.workouts[planID][date]
	if len(versions) == 0 {
		return nil, repository.ErrNotFound
	}
	var found *domain.WorkoutVersion
	for i := range versions {
		if !versions[i].IsCurrent {
			continue
		}
		if found != nil {
			// Invariant violations are store defects, not recoverable errors.
			panic(fmt.Sprintf("workout store invariant violated: multiple current versions for plan %s date %s",
				planID.Hex(), date.Format("2006-01-02")))
		}
		cp := versions[i]
		found = &cp
	}
	if found == nil {
		panic(fmt.Sprintf("workout store invariant violated: no current version for scheduled day, plan %s date %s",
			planID.Hex(), date.Format("2006-01-02")))
	}
	return found, nil
}

func (r *workoutRepo) GetCurrentRange(ctx context.Context, planID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutVersion, error) {
	from = domain.NormalizeDate(from)
	to = domain.NormalizeDate(to)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WorkoutVersion
	for date := range r.s.workouts[planID] {
		if date.Before(from) || date.After(to) {
			continue
		}
		wv, err := r.currentLocked(planID, date)
		if err != nil {
			continue
		}
		out = append(out, *wv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *workoutRepo) PutNewVersion(ctx context.Context, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	date = domain.NormalizeDate(date)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[planID]; !ok {
		return nil, repository.ErrNotFound
	}
	wv := r.putLocked(planID, date, draft)
	return &wv, nil
}

// putLocked performs the demote-and-insert step. Write lock must be held.
func (r *workoutRepo) putLocked(planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) domain.WorkoutVersion {
	byDate, ok := r.s.workouts[planID]
	if !ok {
		byDate = make(map[time.Time][]domain.WorkoutVersion)
		r.s.workouts[planID] = byDate
	}
	versions := byDate[date]
	next := 1
	for i := range versions {
		versions[i].IsCurrent = false
		if versions[i].Version >= next {
			next = versions[i].Version + 1
		}
	}
	wv := domain.WorkoutVersion{
		ID:                primitive.NewObjectID(),
		PlanID:            planID,
		Date:              date,
		Version:           next,
		IsCurrent:         true,
		Type:              draft.Type,
		PlannedDistanceKm: draft.PlannedDistanceKm,
		PlannedIntensity:  draft.PlannedIntensity,
		Description:       draft.Description,
		ModifiedBy:        draft.ModifiedBy,
		CreatedAt:         time.Now().UTC(),
	}
	byDate[date] = append(versions, wv)
	return wv
}

func (r *workoutRepo) RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, actuals domain.CompletionActuals) (*domain.WorkoutVersion, error) {
	if err := repository.ValidateCompletionActuals(actuals); err != nil {
		return nil, err
	}
	date = domain.NormalizeDate(date)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	versions := r.s.workouts[planID][date]
	for i := range versions {
		if !versions[i].IsCurrent {
			continue
		}
		wv := &versions[i]
		now := time.Now().UTC()
		wv.ActualDistanceKm = actuals.DistanceKm
		wv.ActualDurationSeconds = actuals.DurationSeconds
		wv.ActualRPE = actuals.RPE
		wv.AvgHeartRate = actuals.AvgHeartRate
		wv.ElevationGainM = actuals.ElevationGainM
		wv.Splits = append([]domain.Split(nil), actuals.Splits...)
		wv.Equipment = actuals.Equipment
		wv.CompletionNotes = actuals.Notes
		wv.CompletedAt = &now
		cp := *wv
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *workoutRepo) History(ctx context.Context, planID primitive.ObjectID, date time.Time) ([]domain.WorkoutVersion, error) {
	date = domain.NormalizeDate(date)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	versions := append([]domain.WorkoutVersion(nil), r.s.workouts[planID][date]...)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

func (r *workoutRepo) ReplaceFuture(ctx context.Context, planID primitive.ObjectID, after time.Time, drafts []domain.DatedDraft) ([]domain.WorkoutVersion, error) {
	after = domain.NormalizeDate(after)
	// Stage validation before taking the write lock; nothing is applied if
	// any draft is rejected.
	for _, d := range drafts {
		if err := validateDraft(d.Draft); err != nil {
			return nil, err
		}
		if !domain.NormalizeDate(d.Date).After(after) {
			return nil, fmt.Errorf("%w: draft dated %s not after evaluation date %s",
				repository.ErrInvalidInput, d.Date.Format("2006-01-02"), after.Format("2006-01-02"))
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[planID]; !ok {
		return nil, repository.ErrNotFound
	}
	// Completed days are immutable history for recalculation purposes.
	for _, d := range drafts {
		date := domain.NormalizeDate(d.Date)
		for _, wv := range r.s.workouts[planID][date] {
			if wv.IsCurrent && wv.Completed() {
				return nil, fmt.Errorf("%w: day %s already has a completed workout",
					repository.ErrInvalidInput, date.Format("2006-01-02"))
			}
		}
	}
	out := make([]domain.WorkoutVersion, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, r.putLocked(planID, domain.NormalizeDate(d.Date), d.Draft))
	}
	return out, nil
}

func (r *workoutRepo) DeleteByPlan(ctx context.Context, planID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.workouts, planID)
	return nil
}
