package interfaces

import (
	"context"

	"poolmate/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)

	// Ride bookkeeping
	AddCreatedRide(ctx context.Context, userID, rideID primitive.ObjectID) error
	AddJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error
	RemoveJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error
	// DetachRide pulls rideID from every user's created and joined rides.
	DetachRide(ctx context.Context, rideID primitive.ObjectID) error
}
