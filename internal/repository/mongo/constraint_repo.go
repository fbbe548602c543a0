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

const constraintCollectionName = "plan_constraints"

// mongoConstraintRepository implements repository.ConstraintRepository
type mongoConstraintRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoConstraintRepository creates a new PlanConstraint repository.
func NewMongoConstraintRepository(db *mongo.Database) repository.ConstraintRepository {
	return &mongoConstraintRepository{
		db:         db,
		collection: db.Collection(constraintCollectionName),
	}
}

// Create inserts a new constraint for a plan.
func (r *mongoConstraintRepository) Create(ctx context.Context, constraint *domain.PlanConstraint) (primitive.ObjectID, error) {
	if !domain.ValidConstraintType(constraint.Type) {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}
	count, err := r.db.Collection(planCollectionName).CountDocuments(ctx, bson.M{"_id": constraint.PlanID})
	if err != nil {
		return primitive.NilObjectID, err
	}
	if count == 0 {
		return primitive.NilObjectID, repository.ErrNotFound
	}

	constraint.ID = primitive.NewObjectID()
	constraint.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, constraint)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted constraint ID")
	}
	return insertedID, nil
}

// GetByPlanID returns all constraints of a plan.
func (r *mongoConstraintRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanConstraint, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var constraints []domain.PlanConstraint
	if err = cursor.All(ctx, &constraints); err != nil {
		return nil, err
	}
	return constraints, nil
}

// EnsureConstraintIndexes creates necessary indexes. Call during startup.
func EnsureConstraintIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.WithError(err).Warnf("failed to create indexes for collection %s", collection.Name())
	}
}
