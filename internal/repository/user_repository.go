package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"project-service/internal/models"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const userCacheKeyPrefix = "project-service:user:"

// UserRepository holds the local read model of identity-service accounts,
// kept current by the user-events consumer. Lookups go through Redis first;
// cache entries are dropped whenever the consumer applies an update.
type UserRepository struct {
	collection *mongo.Collection
	cache      *goredis.Client
	cacheTTL   time.Duration
}

func NewUserRepository(database *mongo.Database, collection string, cache *goredis.Client, cacheTTL time.Duration) *UserRepository {
	return &UserRepository{
		collection: database.Collection(collection),
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

func (r *UserRepository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "username", Value: 1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	if cached := r.fromCache(ctx, id); cached != nil {
		return cached, nil
	}

	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	r.toCache(ctx, &user)
	return &user, nil
}

func (r *UserRepository) FindClients(ctx context.Context) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.M{"username": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"role": models.RoleClient}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	return users, nil
}

// Upsert applies a user-event snapshot to the read model and invalidates the
// cache entry for that user.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.UpdatedAt = now

	filter := bson.M{"_id": user.ID}
	update := bson.M{
		"$set": bson.M{
			"username":  user.Username,
			"email":     user.Email,
			"role":      user.Role,
			"active":    user.Active,
			"updatedAt": user.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	r.invalidate(ctx, user.ID)
	return nil
}

// Deactivate flips the active flag off without touching the rest of the record.
func (r *UserRepository) Deactivate(ctx context.Context, id bson.ObjectID) error {
	update := bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *UserRepository) fromCache(ctx context.Context, id bson.ObjectID) *models.User {
	if r.cache == nil {
		return nil
	}

	data, err := r.cache.Get(ctx, userCacheKeyPrefix+id.Hex()).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Printf("Error reading user %s from cache: %v", id.Hex(), err)
		}
		return nil
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		log.Printf("Error decoding cached user %s: %v", id.Hex(), err)
		return nil
	}
	return &user
}

func (r *UserRepository) toCache(ctx context.Context, user *models.User) {
	if r.cache == nil {
		return
	}

	data, err := json.Marshal(user)
	if err != nil {
		log.Printf("Error encoding user %s for cache: %v", user.ID.Hex(), err)
		return
	}

	if err := r.cache.Set(ctx, userCacheKeyPrefix+user.ID.Hex(), data, r.cacheTTL).Err(); err != nil {
		log.Printf("Error caching user %s: %v", user.ID.Hex(), err)
	}
}

func (r *UserRepository) invalidate(ctx context.Context, id bson.ObjectID) {
	if r.cache == nil {
		return
	}

	if err := r.cache.Del(ctx, userCacheKeyPrefix+id.Hex()).Err(); err != nil {
		log.Printf("Error invalidating cached user %s: %v", id.Hex(), err)
	}
}
