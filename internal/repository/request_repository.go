package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type RequestRepository struct {
	collection *mongo.Collection
}

func NewRequestRepository(database *mongo.Database, collection string) *RequestRepository {
	return &RequestRepository{
		collection: database.Collection(collection),
	}
}

// InitializeIndexes creates the partial unique index that serializes duplicate
// pending submissions: at most one document per (userId, projectId) may carry
// status "pending". Application-level duplicate checks remain for friendly
// errors, but this constraint is the defense that holds under concurrency.
func (r *RequestRepository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "projectId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: string(models.RequestPending)}}),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "requestedAt", Value: -1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create request indexes: %w", err)
	}
	return nil
}

func (r *RequestRepository) Create(ctx context.Context, request *models.AccessRequest) (*models.AccessRequest, error) {
	if request.ID.IsZero() {
		request.ID = bson.NewObjectID()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("pending request already exists for this project: %w", models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert access request: %w", err)
	}

	return request, nil
}

func (r *RequestRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.AccessRequest, error) {
	var request models.AccessRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find access request by ID: %w", err)
	}
	return &request, nil
}

func (r *RequestRepository) FindPendingByUserAndProject(ctx context.Context, userID, projectID bson.ObjectID) (*models.AccessRequest, error) {
	filter := bson.M{
		"userId":    userID,
		"projectId": projectID,
		"status":    models.RequestPending,
	}

	var request models.AccessRequest
	err := r.collection.FindOne(ctx, filter).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending request: %w", err)
	}
	return &request, nil
}

func (r *RequestRepository) FindPending(ctx context.Context) ([]*models.AccessRequest, error) {
	return r.find(ctx, bson.M{"status": models.RequestPending})
}

func (r *RequestRepository) FindByUser(ctx context.Context, userID bson.ObjectID) ([]*models.AccessRequest, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

func (r *RequestRepository) find(ctx context.Context, filter bson.M) ([]*models.AccessRequest, error) {
	opts := options.Find().SetSort(bson.M{"requestedAt": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*models.AccessRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode access requests: %w", err)
	}

	return requests, nil
}

// Transition moves a request out of pending in one conditional update. The
// status filter makes concurrent reviewers race for a single winner; a request
// already reviewed matches nothing and nil is returned.
func (r *RequestRepository) Transition(ctx context.Context, id bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (*models.AccessRequest, error) {
	filter := bson.M{"_id": id, "status": models.RequestPending}
	set := bson.M{
		"status":     to,
		"reviewerId": reviewerID,
		"reviewedAt": time.Now(),
	}
	if notes != "" {
		set["notes"] = notes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.AccessRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to transition access request: %w", err)
	}

	return &updated, nil
}

// ResolvePendingForPair moves any pending request for (userID, projectID) to a
// terminal status. Used by grant-set mutations so a grant change never leaves
// a pending request for the same pair behind. Returns the number of requests
// resolved (zero or one, given the partial unique index).
func (r *RequestRepository) ResolvePendingForPair(ctx context.Context, userID, projectID bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (int64, error) {
	filter := bson.M{
		"userId":    userID,
		"projectId": projectID,
		"status":    models.RequestPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     to,
			"reviewerId": reviewerID,
			"reviewedAt": time.Now(),
			"notes":      notes,
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve pending requests: %w", err)
	}

	return result.ModifiedCount, nil
}
