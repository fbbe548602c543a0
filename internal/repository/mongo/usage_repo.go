package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
	"github.com/skrivenk/runcoach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const usageCollectionName = "generation_usage"

// mongoUsageLogRepository implements repository.UsageLogRepository
type mongoUsageLogRepository struct {
	collection *mongo.Collection
}

// NewMongoUsageLogRepository creates a new GenerationUsage repository.
func NewMongoUsageLogRepository(db *mongo.Database) repository.UsageLogRepository {
	return &mongoUsageLogRepository{
		collection: db.Collection(usageCollectionName),
	}
}

// Log records one text-generation call.
func (r *mongoUsageLogRepository) Log(ctx context.Context, usage *domain.GenerationUsage) (primitive.ObjectID, error) {
	usage.ID = primitive.NewObjectID()
	usage.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, usage)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted usage ID")
	}
	return insertedID, nil
}
