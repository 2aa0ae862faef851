package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poolmate/internal/models"
	"poolmate/internal/repositories/interfaces"
	"poolmate/internal/utils"
	"poolmate/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection(database.RidesCollection),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.Members == nil {
		ride.Members = []primitive.ObjectID{}
	}
	if ride.Tags == nil {
		ride.Tags = []models.RideTag{}
	}
	ride.Status = models.StatusFor(len(ride.Members), ride.MaxMembers)

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return &ride, nil
}

func (r *rideRepository) Update(ctx context.Context, id primitive.ObjectID, update *models.RideUpdate) (*models.Ride, error) {
	fields := rideUpdateFields(update)
	fields["updated_at"] = time.Now()

	filter := bson.M{"_id": id}
	var change interface{} = bson.M{"$set": fields}

	if update.MaxMembers != nil {
		capacity := *update.MaxMembers
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$size": "$members"}, capacity}}

		// Pipeline form so the status is derived from the stored members in
		// the same write. Values are wrapped in $literal so user text that
		// starts with "$" is not read as a field path.
		literal := bson.M{}
		for k, v := range fields {
			literal[k] = bson.M{"$literal": v}
		}
		literal["status"] = statusExpr(bson.M{"$size": "$members"}, capacity)
		change = mongo.Pipeline{{{Key: "$set", Value: literal}}}
	}

	ride, err := r.findOneAndUpdate(ctx, filter, change)
	if errors.Is(err, interfaces.ErrNotFound) && update.MaxMembers != nil {
		return nil, interfaces.ErrConditionFailed
	}

	return ride, err
}

func rideUpdateFields(update *models.RideUpdate) bson.M {
	fields := bson.M{}
	if update.Source != nil {
		fields["source"] = *update.Source
	}
	if update.Destination != nil {
		fields["destination"] = *update.Destination
	}
	if update.RideDate != nil {
		fields["ride_date"] = *update.RideDate
	}
	if update.Tags != nil {
		fields["tags"] = update.Tags
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.NoteForJoiners != nil {
		fields["note_for_joiners"] = *update.NoteForJoiners
	}
	if update.Cost != nil {
		fields["cost"] = *update.Cost
	}
	if update.MaxMembers != nil {
		fields["max_members"] = *update.MaxMembers
	}
	return fields
}

func (r *rideRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete ride: %w", err)
	}
	if result.DeletedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

// AddMember appends userID only while the ride has a free seat, the user is
// not the creator and not already a member. The check and the append are one
// document write, so concurrent joiners cannot overbook.
func (r *rideRepository) AddMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":     rideID,
		"creator": bson.M{"$ne": userID},
		"members": bson.M{"$ne": userID},
		"$expr":   bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$max_members"}},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"members":    bson.M{"$concatArrays": bson.A{"$members", bson.A{userID}}},
			"updated_at": time.Now(),
		}}},
		{{Key: "$set", Value: bson.M{
			"status": statusExpr(bson.M{"$size": "$members"}, "$max_members"),
		}}},
	}

	ride, err := r.findOneAndUpdate(ctx, filter, pipeline)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, interfaces.ErrConditionFailed
	}

	return ride, err
}

func (r *rideRepository) RemoveMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":     rideID,
		"members": userID,
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"members": bson.M{"$filter": bson.M{
				"input": "$members",
				"as":    "member",
				"cond":  bson.M{"$ne": bson.A{"$$member", userID}},
			}},
			"updated_at": time.Now(),
		}}},
		{{Key: "$set", Value: bson.M{
			"status": statusExpr(bson.M{"$size": "$members"}, "$max_members"),
		}}},
	}

	ride, err := r.findOneAndUpdate(ctx, filter, pipeline)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, interfaces.ErrConditionFailed
	}

	return ride, err
}

func (r *rideRepository) findOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Ride, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ride models.Ride
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ride); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ride: %w", err)
	}

	return &ride, nil
}

// statusExpr mirrors models.StatusFor as an aggregation expression.
func statusExpr(size, capacity interface{}) bson.M {
	return bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{
				"case": bson.M{"$gte": bson.A{size, capacity}},
				"then": models.RideStatusFull,
			},
			bson.M{
				"case": bson.M{"$eq": bson.A{size, bson.M{"$subtract": bson.A{capacity, 1}}}},
				"then": models.RideStatusFillingFast,
			},
		},
		"default": models.RideStatusAvailable,
	}}
}

func (r *rideRepository) List(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	if params == nil {
		params = utils.DefaultPagination()
	}

	query := bson.M{}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.OnlyOpen {
		query["status"] = bson.M{"$ne": models.RideStatusFull}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	rides, err := r.find(ctx, query, params.GetSortOptions())
	if err != nil {
		return nil, 0, err
	}

	return rides, total, nil
}

func (r *rideRepository) ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]*models.Ride, error) {
	return r.find(ctx, bson.M{"creator": creatorID}, newestFirst())
}

func (r *rideRepository) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	return r.find(ctx, bson.M{"members": userID}, newestFirst())
}

// ListNearby returns rides whose source lies within radiusMeters of the
// point, nearest first.
func (r *rideRepository) ListNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]*models.Ride, error) {
	query := bson.M{
		"source.coordinates": bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, query, opts)
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

func (r *rideRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*models.Ride, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	rides := []*models.Ride{}
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, fmt.Errorf("failed to decode rides: %w", err)
	}

	return rides, nil
}
