package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutCollectionName = "workout_versions"

// mongoWorkoutVersionRepository implements repository.WorkoutVersionRepository.
// The demote-and-insert step of PutNewVersion runs inside a multi-document
// transaction; the unique indexes created by EnsureWorkoutVersionIndexes back
// the store invariants even across crash recovery.
type mongoWorkoutVersionRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoWorkoutVersionRepository creates a new versioned workout store.
func NewMongoWorkoutVersionRepository(db *mongo.Database) repository.WorkoutVersionRepository {
	return &mongoWorkoutVersionRepository{
		db:         db,
		collection: db.Collection(workoutCollectionName),
	}
}

func (r *mongoWorkoutVersionRepository) validateDraft(draft domain.WorkoutDraft) error {
	if !domain.ValidWorkoutType(draft.Type) {
		return fmt.Errorf("%w: workout type %q", repository.ErrInvalidInput, draft.Type)
	}
	if draft.PlannedDistanceKm < 0 {
		return fmt.Errorf("%w: negative planned distance", repository.ErrInvalidInput)
	}
	return nil
}

// GetCurrent returns the single current version for a day.
func (r *mongoWorkoutVersionRepository) GetCurrent(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.WorkoutVersion, error) {
	var wv domain.WorkoutVersion
	filter := bson.M{"planId": planID, "date": domain.NormalizeDate(date), "isCurrent": true}
	err := r.collection.FindOne(ctx, filter).Decode(&wv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &wv, nil
}

// GetCurrentRange returns current versions in [from, to], date ascending.
func (r *mongoWorkoutVersionRepository) GetCurrentRange(ctx context.Context, planID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutVersion, error) {
	filter := bson.M{
		"planId":    planID,
		"isCurrent": true,
		"date": bson.M{
			"$gte": domain.NormalizeDate(from),
			"$lte": domain.NormalizeDate(to),
		},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var workouts []domain.WorkoutVersion
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// PutNewVersion inserts version max+1 as current and demotes all others for
// that (plan, date) atomically.
func (r *mongoWorkoutVersionRepository) PutNewVersion(ctx context.Context, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error) {
	if err := r.validateDraft(draft); err != nil {
		return nil, err
	}
	count, err := r.db.Collection(planCollectionName).CountDocuments(ctx, bson.M{"_id": planID})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, repository.ErrNotFound
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		wv, err := r.putNewVersionTx(sc, planID, domain.NormalizeDate(date), draft)
		if err != nil {
			return nil, err
		}
		return wv, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race on (planId, date, version); the caller retries.
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return result.(*domain.WorkoutVersion), nil
}

// putNewVersionTx performs demote-and-insert within an open transaction.
func (r *mongoWorkoutVersionRepository) putNewVersionTx(sc mongo.SessionContext, planID primitive.ObjectID, date time.Time, draft domain.WorkoutDraft) (*domain.WorkoutVersion, error) {
	next := 1
	var top domain.WorkoutVersion
	findOptions := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	err := r.collection.FindOne(sc, bson.M{"planId": planID, "date": date}, findOptions).Decode(&top)
	switch {
	case err == nil:
		next = top.Version + 1
	case errors.Is(err, mongo.ErrNoDocuments):
		// First version for this day.
	default:
		return nil, err
	}

	if _, err := r.collection.UpdateMany(sc,
		bson.M{"planId": planID, "date": date, "isCurrent": true},
		bson.M{"$set": bson.M{"isCurrent": false}},
	); err != nil {
		return nil, err
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
	if _, err := r.collection.InsertOne(sc, wv); err != nil {
		return nil, err
	}
	return &wv, nil
}

// RecordCompletion sets the actual-performance fields on the current version
// of the day. Completion is not a plan revision, so the version number and
// current flag are untouched.
func (r *mongoWorkoutVersionRepository) RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, actuals domain.CompletionActuals) (*domain.WorkoutVersion, error) {
	if err := repository.ValidateCompletionActuals(actuals); err != nil {
		return nil, err
	}

	filter := bson.M{"planId": planID, "date": domain.NormalizeDate(date), "isCurrent": true}
	update := bson.M{
		"$set": bson.M{
			"actualDistanceKm":      actuals.DistanceKm,
			"actualDurationSeconds": actuals.DurationSeconds,
			"actualRpe":             actuals.RPE,
			"avgHeartRate":          actuals.AvgHeartRate,
			"elevationGainM":        actuals.ElevationGainM,
			"splits":                actuals.Splits,
			"equipment":             actuals.Equipment,
			"completionNotes":       actuals.Notes,
			"completedAt":           time.Now().UTC(),
		},
	}
	findOptions := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var wv domain.WorkoutVersion
	err := r.collection.FindOneAndUpdate(ctx, filter, update, findOptions).Decode(&wv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &wv, nil
}

// History returns all versions of a day, version ascending.
func (r *mongoWorkoutVersionRepository) History(ctx context.Context, planID primitive.ObjectID, date time.Time) ([]domain.WorkoutVersion, error) {
	filter := bson.M{"planId": planID, "date": domain.NormalizeDate(date)}
	findOptions := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var versions []domain.WorkoutVersion
	if err = cursor.All(ctx, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// ReplaceFuture applies a whole recalculation pass in one transaction: either
// every future day gets its new current version, or none do.
func (r *mongoWorkoutVersionRepository) ReplaceFuture(ctx context.Context, planID primitive.ObjectID, after time.Time, drafts []domain.DatedDraft) ([]domain.WorkoutVersion, error) {
	after = domain.NormalizeDate(after)
	for _, d := range drafts {
		if err := r.validateDraft(d.Draft); err != nil {
			return nil, err
		}
		if !domain.NormalizeDate(d.Date).After(after) {
			return nil, fmt.Errorf("%w: draft dated %s not after evaluation date %s",
				repository.ErrInvalidInput, d.Date.Format("2006-01-02"), after.Format("2006-01-02"))
		}
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// Completed days are immutable history for recalculation purposes.
		for _, d := range drafts {
			date := domain.NormalizeDate(d.Date)
			count, err := r.collection.CountDocuments(sc, bson.M{
				"planId":      planID,
				"date":        date,
				"isCurrent":   true,
				"completedAt": bson.M{"$ne": nil},
			})
			if err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, fmt.Errorf("%w: day %s already has a completed workout",
					repository.ErrInvalidInput, date.Format("2006-01-02"))
			}
		}
		out := make([]domain.WorkoutVersion, 0, len(drafts))
		for _, d := range drafts {
			wv, err := r.putNewVersionTx(sc, planID, domain.NormalizeDate(d.Date), d.Draft)
			if err != nil {
				return nil, err
			}
			out = append(out, *wv)
		}
		return out, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return result.([]domain.WorkoutVersion), nil
}

// DeleteByPlan removes all workout versions of a plan.
func (r *mongoWorkoutVersionRepository) DeleteByPlan(ctx context.Context, planID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"planId": planID})
	return err
}

// EnsureWorkoutVersionIndexes creates the indexes that back the store
// invariants. Call during startup.
func EnsureWorkoutVersionIndexes(ctx context.Context, collection *mongo.Collection) {
	truePartial := options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"isCurrent": true})
	indexes := []mongo.IndexModel{
		{
			// Invariant B: (plan, date, version) unique.
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "date", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Invariant A: at most one current version per (plan, date).
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "date", Value: 1}, {Key: "isCurrent", Value: 1}},
			Options: truePartial,
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "isCurrent", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.WithError(err).Warnf("failed to create indexes for collection %s", collection.Name())
	}
}
