// Package memory provides an in-process implementation of every repository
// interface. It backs the "memory" database driver (trial mode, no MongoDB
// required) and the test suites. A single RWMutex on the shared Store
// serializes mutations, so the versioned-store invariants hold under
// concurrent use: readers never observe a day mid-demotion, and a
// recalculation pass is applied fully staged or not at all.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds the shared state behind all in-memory repositories.
type Store struct {
	mu          sync.RWMutex
	plans       map[primitive.ObjectID]*domain.Plan
	baselines   map[primitive.ObjectID][]domain.BaselineRun
	workouts    map[primitive.ObjectID]map[time.Time][]domain.WorkoutVersion // planID -> date -> versions ascending
	constraints map[primitive.ObjectID][]domain.PlanConstraint
	snapshots   map[primitive.ObjectID][]domain.StatusSnapshot
	usage       []domain.GenerationUsage
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		plans:       make(map[primitive.ObjectID]*domain.Plan),
		baselines:   make(map[primitive.ObjectID][]domain.BaselineRun),
		workouts:    make(map[primitive.ObjectID]map[time.Time][]domain.WorkoutVersion),
		constraints: make(map[primitive.ObjectID][]domain.PlanConstraint),
		snapshots:   make(map[primitive.ObjectID][]domain.StatusSnapshot),
	}
}

// === PlanRepository ===

type planRepo struct {
	s *Store
}

// NewPlanRepository returns the plan view of the store.
func NewPlanRepository(s *Store) repository.PlanRepository {
	return &planRepo{s: s}
}

func (r *planRepo) Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if err := plan.Validate(); err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	cp := *plan
	r.s.plans[plan.ID] = &cp
	return plan.ID, nil
}

func (r *planRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *planRepo) GetAll(ctx context.Context) ([]domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Plan, 0, len(r.s.plans))
	for _, p := range r.s.plans {
		out = append(out, *p)
	}
	// Most recent first, matching the mongo implementation's sort.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *planRepo) Update(ctx context.Context, plan *domain.Plan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.plans[plan.ID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = time.Now().UTC()
	cp := *plan
	r.s.plans[plan.ID] = &cp
	return nil
}

// Delete removes the plan and cascades to every dependent entity.
func (r *planRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.plans, id)
	delete(r.s.baselines, id)
	delete(r.s.workouts, id)
	delete(r.s.constraints, id)
	delete(r.s.snapshots, id)
	return nil
}

// === BaselineRunRepository ===

type baselineRepo struct {
	s *Store
}

// NewBaselineRunRepository returns the baseline-run view of the store.
func NewBaselineRunRepository(s *Store) repository.BaselineRunRepository {
	return &baselineRepo{s: s}
}

func (r *baselineRepo) Create(ctx context.Context, run *domain.BaselineRun) (primitive.ObjectID, error) {
	if run.DistanceKm < 0 || run.DurationSeconds < 0 {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[run.PlanID]; !ok {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	run.ID = primitive.NewObjectID()
	run.Date = domain.NormalizeDate(run.Date)
	run.CreatedAt = time.Now().UTC()
	r.s.baselines[run.PlanID] = append(r.s.baselines[run.PlanID], *run)
	return run.ID, nil
}

func (r *baselineRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.BaselineRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	runs := append([]domain.BaselineRun(nil), r.s.baselines[planID]...)
	sort.Slice(runs, func(i, j int) bool { return runs[i].Date.Before(runs[j].Date) })
	return runs, nil
}

// === ConstraintRepository ===

type constraintRepo struct {
	s *Store
}

// NewConstraintRepository returns the plan-constraint view of the store.
func NewConstraintRepository(s *Store) repository.ConstraintRepository {
	return &constraintRepo{s: s}
}

func (r *constraintRepo) Create(ctx context.Context, constraint *domain.PlanConstraint) (primitive.ObjectID, error) {
	if !domain.ValidConstraintType(constraint.Type) {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[constraint.PlanID]; !ok {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	constraint.ID = primitive.NewObjectID()
	constraint.CreatedAt = time.Now().UTC()
	r.s.constraints[constraint.PlanID] = append(r.s.constraints[constraint.PlanID], *constraint)
	return constraint.ID, nil
}

func (r *constraintRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanConstraint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.PlanConstraint(nil), r.s.constraints[planID]...), nil
}

// === SnapshotRepository ===

type snapshotRepo struct {
	s *Store
}

// NewSnapshotRepository returns the status-snapshot view of the store.
func NewSnapshotRepository(s *Store) repository.SnapshotRepository {
	return &snapshotRepo{s: s}
}

func (r *snapshotRepo) Append(ctx context.Context, snapshot *domain.StatusSnapshot) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[snapshot.PlanID]; !ok {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	snapshot.ID = primitive.NewObjectID()
	snapshot.CreatedAt = time.Now().UTC()
	r.s.snapshots[snapshot.PlanID] = append(r.s.snapshots[snapshot.PlanID], *snapshot)
	return snapshot.ID, nil
}

func (r *snapshotRepo) AttachCommentary(ctx context.Context, id primitive.ObjectID, notes, recommendations string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for planID := range r.s.snapshots {
		snaps := r.s.snapshots[planID]
		for i := range snaps {
			if snaps[i].ID == id {
				snaps[i].CoachNotes = notes
				snaps[i].Recommendations = recommendations
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

func (r *snapshotRepo) Latest(ctx context.Context, planID primitive.ObjectID) (*domain.StatusSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	snaps := r.s.snapshots[planID]
	if len(snaps) == 0 {
		return nil, repository.ErrNotFound
	}
	// Snapshots are append-only, so the last element is the newest.
	cp := snaps[len(snaps)-1]
	return &cp, nil
}

func (r *snapshotRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.StatusSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.StatusSnapshot(nil), r.s.snapshots[planID]...), nil
}

// === UsageLogRepository ===

type usageRepo struct {
	s *Store
}

// NewUsageLogRepository returns the generation-usage view of the store.
func NewUsageLogRepository(s *Store) repository.UsageLogRepository {
	return &usageRepo{s: s}
}

func (r *usageRepo) Log(ctx context.Context, usage *domain.GenerationUsage) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	usage.ID = primitive.NewObjectID()
	usage.CreatedAt = time.Now().UTC()
	r.s.usage = append(r.s.usage, *usage)
	return usage.ID, nil
}
