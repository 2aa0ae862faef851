package interfaces

import (
	"context"

	"poolmate/internal/models"
	"poolmate/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	// Update applies a partial update. When update.MaxMembers is set the new
	// capacity must not be below the current member count, otherwise
	// ErrConditionFailed is returned and nothing changes.
	Update(ctx context.Context, id primitive.ObjectID, update *models.RideUpdate) (*models.Ride, error)
	Delete(ctx context.Context, id primitive.ObjectID) error

	// Membership. Both return ErrConditionFailed when the guard rejects the
	// change.
	AddMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)
	RemoveMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)

	// Listing
	List(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]*models.Ride, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error)
	ListNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]*models.Ride, error)
}
