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

const snapshotCollectionName = "status_snapshots"

// mongoSnapshotRepository implements repository.SnapshotRepository. Snapshots
// are append-only; commentary attachment fills text fields on an existing row
// without rewriting its numerics.
type mongoSnapshotRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewMongoSnapshotRepository creates a new StatusSnapshot repository.
func NewMongoSnapshotRepository(db *mongo.Database) repository.SnapshotRepository {
	return &mongoSnapshotRepository{
		db:         db,
		collection: db.Collection(snapshotCollectionName),
	}
}

// Append inserts a new snapshot row.
func (r *mongoSnapshotRepository) Append(ctx context.Context, snapshot *domain.StatusSnapshot) (primitive.ObjectID, error) {
	count, err := r.db.Collection(planCollectionName).CountDocuments(ctx, bson.M{"_id": snapshot.PlanID})
	if err != nil {
		return primitive.NilObjectID, err
	}
	if count == 0 {
		return primitive.NilObjectID, repository.ErrNotFound
	}

	snapshot.ID = primitive.NewObjectID()
	snapshot.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, snapshot)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted snapshot ID")
	}
	return insertedID, nil
}

// AttachCommentary sets the coach text fields of an appended snapshot.
func (r *mongoSnapshotRepository) AttachCommentary(ctx context.Context, id primitive.ObjectID, notes, recommendations string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"coachNotes": notes, "recommendations": recommendations},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Latest returns the most recently appended snapshot for a plan. ObjectIDs
// embed creation time, so sorting by _id gives append order.
func (r *mongoSnapshotRepository) Latest(ctx context.Context, planID primitive.ObjectID) (*domain.StatusSnapshot, error) {
	findOptions := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var snap domain.StatusSnapshot
	err := r.collection.FindOne(ctx, bson.M{"planId": planID}, findOptions).Decode(&snap)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

// GetByPlanID returns all snapshots of a plan in append order.
func (r *mongoSnapshotRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.StatusSnapshot, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var snapshots []domain.StatusSnapshot
	if err = cursor.All(ctx, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// EnsureSnapshotIndexes creates necessary indexes. Call during startup.
func EnsureSnapshotIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.WithError(err).Warnf("failed to create indexes for collection %s", collection.Name())
	}
}
