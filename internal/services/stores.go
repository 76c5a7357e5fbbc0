package services

import (
	"context"

	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Typed storage contracts the services depend on. The Mongo repositories are
// the production implementations; tests substitute in-memory ones. The
// atomicity notes on each method are part of the contract, not an
// implementation detail: AddGrant/RemoveGrant must be single atomic document
// updates, Create on pending requests must enforce the one-pending-per-pair
// constraint, and Transition must be a conditional single-winner update.

type ProjectStore interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Project, error)
	FindByNameAndOwner(ctx context.Context, name string, ownerID bson.ObjectID) (*models.Project, error)
	FindAll(ctx context.Context) ([]*models.Project, error)
	FindAccessible(ctx context.Context, userID bson.ObjectID) ([]*models.Project, error)
	AddGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error)
	RemoveGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error)
}

type RequestStore interface {
	Create(ctx context.Context, request *models.AccessRequest) (*models.AccessRequest, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.AccessRequest, error)
	FindPendingByUserAndProject(ctx context.Context, userID, projectID bson.ObjectID) (*models.AccessRequest, error)
	FindPending(ctx context.Context) ([]*models.AccessRequest, error)
	FindByUser(ctx context.Context, userID bson.ObjectID) ([]*models.AccessRequest, error)
	Transition(ctx context.Context, id bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (*models.AccessRequest, error)
	ResolvePendingForPair(ctx context.Context, userID, projectID bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (int64, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindClients(ctx context.Context) ([]*models.User, error)
}
