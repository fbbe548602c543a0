package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrInvalidInput = RepositoryError("invalid input")
	ErrConflict     = RepositoryError("write conflict")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ValidateCompletionActuals rejects physically impossible actuals. Every
// backend runs this before touching the store so their error surfaces match.
func ValidateCompletionActuals(actuals domain.CompletionActuals) error {
	if actuals.DistanceKm != nil && *actuals.DistanceKm < 0 {
		return fmt.Errorf("%w: negative actual distance", ErrInvalidInput)
	}
	if actuals.DurationSeconds != nil && *actuals.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative actual time", ErrInvalidInput)
	}
	for _, sp := range actuals.Splits {
		if sp.DistanceKm < 0 || sp.DurationSeconds < 0 {
			return fmt.Errorf("%w: negative split", ErrInvalidInput)
		}
	}
	return nil
}

// PlanRepository defines the interface for interacting with plan data.
// Delete must cascade to every dependent entity of the plan.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	GetAll(ctx context.Context) ([]domain.Plan, error)
	Update(ctx context.Context, plan *domain.Plan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// BaselineRunRepository stores pre-plan performance data points.
type BaselineRunRepository interface {
	Create(ctx context.Context, run *domain.BaselineRun) (primitive.ObjectID, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.BaselineRun, error)
}

// WorkoutVersionRepository is the versioned workout store. Implementations
// must uphold two invariants regardless of concurrent access:
//
//   - at most one version per (plan, date) has IsCurrent set, and
//     PutNewVersion demotes the previous current version atomically with
//     inserting the new one;
//   - (plan, date, version) is unique, with versions strictly increasing
//     from 1 and never reused.
//
// A reader must never observe zero or two current versions for a day that
// has at least one version.
type WorkoutVersionRepository interface {
	// GetCurrent returns the current version for a day, or ErrNotFound if the
	// day has never been scheduled.
	GetCurrent(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error)
	// GetCurrentRange returns current versions across an inclusive date
	// range, ordered by date ascending.
	GetCurrentRange(ctx context.Context, planID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutVersion, error)
	// PutNewVersion creates version max+1 for the day, marks it current and
	// demotes every other version of that day in one atomic step.
	PutNewVersion(ctx context.Context, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error)
	// RecordCompletion mutates the current version in place with actuals and
	// a completion timestamp. It does not create a new version.
	RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, actuals domain.CompletionActuals) (*domain.WorkoutVersion, error)
	// History returns all versions for a day, version ascending.
	History(ctx context.Context, planID primitive.ObjectID, date time.Time) ([]domain.WorkoutVersion, error)
	// ReplaceFuture applies one new current version per dated draft, all
	// strictly after the given date, as a single all-or-nothing write. Days
	// whose current version is completed are rejected with ErrInvalidInput.
	ReplaceFuture(ctx context.Context, planID primitive.ObjectID, after time.Time, drafts []domain.DatedDraft) ([]domain.WorkoutVersion, error)
	// DeleteByPlan removes all versions of a plan (cascade delete support).
	DeleteByPlan(ctx context.Context, planID primitive.ObjectID) error
}

// ConstraintRepository stores extra scheduling rules scoped to a plan.
type ConstraintRepository interface {
	Create(ctx context.Context, constraint *domain.PlanConstraint) (primitive.ObjectID, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanConstraint, error)
}

// SnapshotRepository stores append-only status snapshots. Re-evaluating a
// date appends a new row, and Latest picks the newest by creation order. The
// one in-place write is AttachCommentary, which fills the coach text fields
// of an already-appended snapshot and never touches its numerics.
type SnapshotRepository interface {
	Append(ctx context.Context, snapshot *domain.StatusSnapshot) (primitive.ObjectID, error)
	AttachCommentary(ctx context.Context, id primitive.ObjectID, notes, recommendations string) error
	Latest(ctx context.Context, planID primitive.ObjectID) (*domain.StatusSnapshot, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.StatusSnapshot, error)
}

// UsageLogRepository records text-generation calls for cost tracking.
type UsageLogRepository interface {
	Log(ctx context.Context, usage *domain.GenerationUsage) (primitive.ObjectID, error)
}
