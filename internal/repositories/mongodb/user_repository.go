package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poolmate/internal/models"
	"poolmate/internal/repositories/interfaces"
	"poolmate/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return &userRepository{
		collection: db.Collection(database.UsersCollection),
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	if user.CreatedRides == nil {
		user.CreatedRides = []primitive.ObjectID{}
	}
	if user.JoinedRides == nil {
		user.JoinedRides = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	return users, nil
}

func (r *userRepository) AddCreatedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	return r.updateOne(ctx, userID, bson.M{"$addToSet": bson.M{"created_rides": rideID}})
}

func (r *userRepository) AddJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	return r.updateOne(ctx, userID, bson.M{"$addToSet": bson.M{"joined_rides": rideID}})
}

func (r *userRepository) RemoveJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	return r.updateOne(ctx, userID, bson.M{"$pull": bson.M{"joined_rides": rideID}})
}

func (r *userRepository) updateOne(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func (r *userRepository) DetachRide(ctx context.Context, rideID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(
		ctx,
		bson.M{"$or": bson.A{
			bson.M{"joined_rides": rideID},
			bson.M{"created_rides": rideID},
		}},
		bson.M{"$pull": bson.M{
			"joined_rides":  rideID,
			"created_rides": rideID,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to detach ride from users: %w", err)
	}

	return nil
}
