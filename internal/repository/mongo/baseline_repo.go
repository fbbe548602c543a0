package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const baselineCollectionName = "baseline_runs"

// mongoBaselineRunRepository implements repository.BaselineRunRepository
type mongoBaselineRunRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoBaselineRunRepository creates a new BaselineRun repository.
func NewMongoBaselineRunRepository(db *mongo.Database) repository.BaselineRunRepository {
	return &mongoBaselineRunRepository{
		db:         db,
		collection: db.Collection(baselineCollectionName),
	}
}

// Create inserts a new baseline run for a plan.
func (r *mongoBaselineRunRepository) Create(ctx context.Context, run *domain.BaselineRun) (primitive.ObjectID, error) {
	if run.DistanceKm < 0 || run.DurationSeconds < 0 {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	// The owning plan must exist.
	count, err := r.db.Collection(planCollectionName).CountDocuments(ctx, bson.M{"_id": run.PlanID})
	if err != nil {
		return primitive.NilObjectID, err
	}
	if count == 0 {
		return primitive.NilObjectID, repository.ErrNotFound
	}

	run.ID = primitive.NewObjectID()
	run.Date = domain.NormalizeDate(run.Date)
	run.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, run)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted baseline run ID")
	}
	return insertedID, nil
}

// GetByPlanID returns all baseline runs for a plan, oldest first.
func (r *mongoBaselineRunRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.BaselineRun, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []domain.BaselineRun
	if err = cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// EnsureBaselineRunIndexes creates necessary indexes. Call during startup.
func EnsureBaselineRunIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.WithError(err).Warnf("failed to create indexes for collection %s", collection.Name())
	}
}
