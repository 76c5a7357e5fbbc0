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

type ProjectRepository struct {
	collection *mongo.Collection
}

func NewProjectRepository(database *mongo.Database, collection string) *ProjectRepository {
	return &ProjectRepository{
		collection: database.Collection(collection),
	}
}

func (r *ProjectRepository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "ownerId", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "grantedUsers", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "createdAt", Value: -1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create project indexes: %w", err)
	}
	return nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project.ID.IsZero() {
		project.ID = bson.NewObjectID()
	}
	if project.GrantedUsers == nil {
		project.GrantedUsers = []bson.ObjectID{}
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return project, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Project, error) {
	var project models.Project
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}
	return &project, nil
}

// FindByNameAndOwner matches the project name case-insensitively within a
// single owner's projects.
func (r *ProjectRepository) FindByNameAndOwner(ctx context.Context, name string, ownerID bson.ObjectID) (*models.Project, error) {
	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})

	var project models.Project
	err := r.collection.FindOne(ctx, bson.M{"name": name, "ownerId": ownerID}, opts).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find project by name: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) FindAll(ctx context.Context) ([]*models.Project, error) {
	return r.find(ctx, bson.M{})
}

// FindAccessible returns projects the user owns or holds a grant on.
func (r *ProjectRepository) FindAccessible(ctx context.Context, userID bson.ObjectID) ([]*models.Project, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"ownerId": userID},
			{"grantedUsers": userID},
		},
	}
	return r.find(ctx, filter)
}

func (r *ProjectRepository) find(ctx context.Context, filter bson.M) ([]*models.Project, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []*models.Project
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}

	return projects, nil
}

// AddGrant adds userID to the project's grant set as a single atomic update.
// $addToSet keeps the set free of duplicates under concurrent calls; the
// ownerId guard in the filter keeps the owner out of the set no matter what
// the caller read earlier. Returns true when the set actually changed.
func (r *ProjectRepository) AddGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error) {
	filter := bson.M{"_id": projectID, "ownerId": bson.M{"$ne": userID}}
	update := bson.M{
		"$addToSet": bson.M{"grantedUsers": userID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to add grant: %w", err)
	}
	if result.MatchedCount == 0 {
		return false, fmt.Errorf("project %s not eligible for grant: %w", projectID.Hex(), models.ErrConflict)
	}

	return result.ModifiedCount > 0, nil
}

// RemoveGrant removes userID from the grant set as a single atomic update.
// Removing an absent user is a no-op, not an error.
func (r *ProjectRepository) RemoveGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error) {
	filter := bson.M{"_id": projectID}
	update := bson.M{
		"$pull": bson.M{"grantedUsers": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to remove grant: %w", err)
	}

	return result.ModifiedCount > 0, nil
}
