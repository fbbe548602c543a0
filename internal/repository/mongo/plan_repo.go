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

const planCollectionName = "plans"

// Collections that hold entities owned by a plan; cascade delete touches all.
var dependentCollections = []string{
	baselineCollectionName,
	workoutCollectionName,
	constraintCollectionName,
	snapshotCollectionName,
}

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new Plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		db:         db,
		collection: db.Collection(planCollectionName),
	}
}

// Create inserts a new plan after validating its invariants.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if err := plan.Validate(); err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetAll retrieves all plans, most recently created first.
func (r *mongoPlanRepository) GetAll(ctx context.Context) ([]domain.Plan, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []domain.Plan
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Update rewrites the editable plan fields and bumps updatedAt. Identity and
// createdAt are never touched.
func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == primitive.NilObjectID {
		return repository.ErrInvalidInput
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	updateDoc := bson.M{
		"$set": bson.M{
			"name":              plan.Name,
			"goalType":          plan.GoalType,
			"startDate":         plan.StartDate,
			"raceDate":          plan.RaceDate,
			"durationWeeks":     plan.DurationWeeks,
			"maxDaysPerWeek":    plan.MaxDaysPerWeek,
			"longRunDay":        plan.LongRunDay,
			"weeklyIncreaseCap": plan.WeeklyIncreaseCap,
			"longRunCap":        plan.LongRunCap,
			"guardrailsEnabled": plan.GuardrailsEnabled,
			"updatedAt":         time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": plan.ID}, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the plan and cascades to all dependent collections inside a
// single transaction.
func (r *mongoPlanRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		result, err := r.collection.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}
		if result.DeletedCount == 0 {
			return nil, repository.ErrNotFound
		}
		for _, name := range dependentCollections {
			if _, err := r.db.Collection(name).DeleteMany(sc, bson.M{"planId": id}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.WithError(err).Warnf("failed to create indexes for collection %s", collection.Name())
	}
}
