package services

import (
	"context"
	"errors"
	"strings"

	"poolmate/internal/models"
	"poolmate/internal/repositories/interfaces"
	"poolmate/internal/utils"
	"poolmate/pkg/logger"
	"poolmate/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideService interface {
	// Lifecycle
	CreateRide(ctx context.Context, creatorID primitive.ObjectID, input *CreateRideInput) (*models.Ride, error)
	EditRide(ctx context.Context, rideID, requesterID primitive.ObjectID, input *EditRideInput) (*models.Ride, error)
	DeleteRide(ctx context.Context, rideID, requesterID primitive.ObjectID) error

	// Membership
	JoinRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)
	LeaveRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)
	RemoveMember(ctx context.Context, rideID, requesterID, targetID primitive.ObjectID) (*models.Ride, error)

	// Reads
	GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideView, error)
	ListAvailable(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.RideView, int64, error)
	ListByCreator(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error)
	ListNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]*models.RideView, error)
}

// RideEventPublisher fans ride changes out to live subscribers.
type RideEventPublisher interface {
	SendRideUpdate(rideID primitive.ObjectID, updateType string, data map[string]interface{})
}

type CreateRideInput struct {
	SourceText      string
	DestinationText string
	Tags            []string
	RideDate        string
	Description     string
	NoteForJoiners  string
	Cost            float64
	MaxMembers      int
}

// EditRideInput carries the fields a creator may change. Nil means absent.
type EditRideInput struct {
	SourceName      *string
	DestinationName *string
	RideDate        *string
	Tags            []string
	Description     *string
	NoteForJoiners  *string
	Cost            *float64
	MaxMembers      *int
}

// joinAttempts bounds retries when a conditional join loses a race but the
// re-read shows a free seat.
const joinAttempts = 3

type rideService struct {
	rideRepo  interfaces.RideRepository
	userRepo  interfaces.UserRepository
	geocoder  maps.Geocoder
	cache     CacheService
	events    RideEventPublisher
	notifier  Notifier
	logger    *logger.Logger
	nearbyMax int
}

func NewRideService(
	rideRepo interfaces.RideRepository,
	userRepo interfaces.UserRepository,
	geocoder maps.Geocoder,
	cache CacheService,
	events RideEventPublisher,
	notifier Notifier,
	log *logger.Logger,
) RideService {
	if log == nil {
		log = logger.NewNop()
	}
	if cache == nil {
		cache = NewCacheService(nil, log, 0)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &rideService{
		rideRepo:  rideRepo,
		userRepo:  userRepo,
		geocoder:  geocoder,
		cache:     cache,
		events:    events,
		notifier:  notifier,
		logger:    log.WithField("component", "ride_service"),
		nearbyMax: utils.MaxPageSize,
	}
}

func (s *rideService) CreateRide(ctx context.Context, creatorID primitive.ObjectID, input *CreateRideInput) (*models.Ride, error) {
	details := map[string]string{}

	sourceText := strings.TrimSpace(input.SourceText)
	destinationText := strings.TrimSpace(input.DestinationText)
	if sourceText == "" {
		details["source_text"] = "source is required"
	}
	if destinationText == "" {
		details["destination_text"] = "destination is required"
	}

	rideDate, err := utils.ParseRideDate(input.RideDate)
	if err != nil {
		details["ride_date"] = "ride date must be a valid date"
	}

	tags, tagErr := normalizeTags(input.Tags)
	if tagErr != "" {
		details["tags"] = tagErr
	}
	if input.Cost < 0 {
		details["cost"] = "cost cannot be negative"
	}
	if input.MaxMembers < 1 {
		details["max_members"] = "max members must be at least 1"
	}

	if len(details) > 0 {
		return nil, ValidationError("invalid ride", details)
	}

	source, err := s.resolvePlace(ctx, sourceText)
	if err != nil {
		return nil, err
	}
	destination, err := s.resolvePlace(ctx, destinationText)
	if err != nil {
		return nil, err
	}

	ride := &models.Ride{
		Creator:        creatorID,
		Source:         *source,
		Destination:    *destination,
		RideDate:       rideDate,
		Tags:           tags,
		Description:    strings.TrimSpace(input.Description),
		NoteForJoiners: strings.TrimSpace(input.NoteForJoiners),
		Cost:           input.Cost,
		Members:        []primitive.ObjectID{},
		MaxMembers:     input.MaxMembers,
		Status:         models.RideStatusAvailable,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, s.internal("failed to create ride", err)
	}

	if err := s.userRepo.AddCreatedRide(ctx, creatorID, ride.ID); err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).WithUserID(creatorID).Error("Failed to record created ride on user")
	}

	s.logger.LogRideEvent(ride.ID, utils.EventRideCreated, map[string]interface{}{
		"creator_id":  creatorID.Hex(),
		"max_members": ride.MaxMembers,
	})

	return ride, nil
}

func (s *rideService) resolvePlace(ctx context.Context, text string) (*models.Place, error) {
	result, err := maps.Resolve(ctx, s.geocoder, text)
	if err != nil {
		s.logger.WithError(err).WithField("place", text).Warn("Geocoding failed")
		return nil, GeocodeError(text, err)
	}

	place := models.NewPlace(text, result.Coordinates.Latitude, result.Coordinates.Longitude)
	return &place, nil
}

func normalizeTags(raw []string) ([]models.RideTag, string) {
	tags := make([]models.RideTag, 0, len(raw))
	for _, t := range utils.UniqueStrings(raw) {
		if !models.IsValidRideTag(t) {
			return nil, "unknown tag " + t
		}
		tags = append(tags, models.RideTag(t))
	}
	return tags, ""
}

func (s *rideService) EditRide(ctx context.Context, rideID, requesterID primitive.ObjectID, input *EditRideInput) (*models.Ride, error) {
	ride, err := s.fetchRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsCreator(requesterID) {
		return nil, ErrNotRideCreator
	}

	update, err := s.buildUpdate(ctx, ride, input)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return ride, nil
	}

	updated, err := s.rideRepo.Update(ctx, rideID, update)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			return nil, ErrRideNotFound
		case errors.Is(err, interfaces.ErrConditionFailed):
			// members grew between the read and the write
			if _, rerr := s.rideRepo.GetByID(ctx, rideID); errors.Is(rerr, interfaces.ErrNotFound) {
				return nil, ErrRideNotFound
			}
			return nil, ErrCapacityTooLow
		default:
			return nil, s.internal("failed to update ride", err)
		}
	}

	s.cache.InvalidateRide(ctx, rideID)
	s.publish(updated, utils.EventRideUpdated, requesterID)
	s.logger.LogRideEvent(rideID, utils.EventRideUpdated, map[string]interface{}{
		"editor_id": requesterID.Hex(),
	})

	return updated, nil
}

// buildUpdate turns the edit input into a partial update. Place names are
// re-geocoded; when that fails the old coordinates are kept under the new
// name. An unparsable date is dropped.
func (s *rideService) buildUpdate(ctx context.Context, ride *models.Ride, input *EditRideInput) (*models.RideUpdate, error) {
	update := &models.RideUpdate{}
	details := map[string]string{}

	if input.SourceName != nil {
		if name := strings.TrimSpace(*input.SourceName); name != "" {
			place := s.regeocode(ctx, ride.ID, name, ride.Source)
			update.Source = &place
		}
	}
	if input.DestinationName != nil {
		if name := strings.TrimSpace(*input.DestinationName); name != "" {
			place := s.regeocode(ctx, ride.ID, name, ride.Destination)
			update.Destination = &place
		}
	}

	if input.RideDate != nil {
		if t, err := utils.ParseRideDate(*input.RideDate); err == nil {
			update.RideDate = &t
		} else {
			s.logger.WithRideID(ride.ID).WithField("ride_date", *input.RideDate).Debug("Ignoring unparsable ride date")
		}
	}

	if input.Tags != nil {
		tags, tagErr := normalizeTags(input.Tags)
		if tagErr != "" {
			details["tags"] = tagErr
		}
		update.Tags = tags
	}

	if input.Description != nil {
		v := strings.TrimSpace(*input.Description)
		update.Description = &v
	}
	if input.NoteForJoiners != nil {
		v := strings.TrimSpace(*input.NoteForJoiners)
		update.NoteForJoiners = &v
	}

	if input.Cost != nil {
		if *input.Cost < 0 {
			details["cost"] = "cost cannot be negative"
		}
		update.Cost = input.Cost
	}

	if input.MaxMembers != nil {
		if *input.MaxMembers < 1 {
			details["max_members"] = "max members must be at least 1"
		}
		update.MaxMembers = input.MaxMembers
	}

	if len(details) > 0 {
		return nil, ValidationError("invalid ride update", details)
	}

	if update.MaxMembers != nil && *update.MaxMembers < len(ride.Members) {
		return nil, ErrCapacityTooLow
	}

	return update, nil
}

func (s *rideService) regeocode(ctx context.Context, rideID primitive.ObjectID, name string, current models.Place) models.Place {
	result, err := maps.Resolve(ctx, s.geocoder, name)
	if err != nil {
		s.logger.WithError(err).WithRideID(rideID).WithField("place", name).Warn("Geocoding failed on edit, keeping previous coordinates")
		place := current
		place.Name = name
		if place.Type == "" {
			place.Type = "Point"
		}
		return place
	}

	return models.NewPlace(name, result.Coordinates.Latitude, result.Coordinates.Longitude)
}

func (s *rideService) JoinRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	var ride *models.Ride

	for attempt := 0; attempt < joinAttempts && ride == nil; attempt++ {
		updated, err := s.rideRepo.AddMember(ctx, rideID, userID)
		switch {
		case err == nil:
			ride = updated
		case errors.Is(err, interfaces.ErrConditionFailed):
			if cerr := s.classifyJoinFailure(ctx, rideID, userID); cerr != nil {
				return nil, cerr
			}
		default:
			return nil, s.internal("failed to join ride", err)
		}
	}
	if ride == nil {
		return nil, ErrRideFull
	}

	if err := s.userRepo.AddJoinedRide(ctx, userID, rideID); err != nil {
		// undo the seat so ride members and joined rides stay in step
		if _, rerr := s.rideRepo.RemoveMember(ctx, rideID, userID); rerr != nil {
			s.logger.WithError(rerr).WithRideID(rideID).WithUserID(userID).Error("Failed to roll back join")
		}
		s.cache.InvalidateRide(ctx, rideID)
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.internal("failed to record joined ride", err)
	}

	s.cache.InvalidateRide(ctx, rideID)
	s.publish(ride, utils.EventMemberJoined, userID)
	s.logger.LogRideEvent(rideID, utils.EventMemberJoined, map[string]interface{}{
		"user_id": userID.Hex(),
		"members": len(ride.Members),
		"status":  ride.Status,
	})

	return ride, nil
}

// classifyJoinFailure explains why a conditional join matched nothing. A nil
// return means the ride now has room and the join may be retried.
func (s *rideService) classifyJoinFailure(ctx context.Context, rideID, userID primitive.ObjectID) error {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrRideNotFound
		}
		return s.internal("failed to load ride", err)
	}

	switch {
	case ride.IsCreator(userID):
		return ErrCannotJoinOwn
	case ride.HasMember(userID):
		return ErrAlreadyJoined
	case len(ride.Members) >= ride.MaxMembers:
		return ErrRideFull
	default:
		return nil
	}
}

func (s *rideService) LeaveRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.fetchRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.IsCreator(userID) {
		return nil, ErrCreatorCannotLeave
	}
	if !ride.HasMember(userID) {
		return nil, ErrNotAMember
	}

	updated, err := s.detachMember(ctx, rideID, userID)
	if err != nil {
		return nil, err
	}

	s.publish(updated, utils.EventMemberLeft, userID)
	s.logger.LogRideEvent(rideID, utils.EventMemberLeft, map[string]interface{}{
		"user_id": userID.Hex(),
		"members": len(updated.Members),
		"status":  updated.Status,
	})

	return updated, nil
}

func (s *rideService) RemoveMember(ctx context.Context, rideID, requesterID, targetID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.fetchRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsCreator(requesterID) {
		return nil, ErrNotRideCreator
	}
	if !ride.HasMember(targetID) {
		return nil, ErrNotAMember
	}

	updated, err := s.detachMember(ctx, rideID, targetID)
	if err != nil {
		return nil, err
	}

	s.publish(updated, utils.EventMemberRemoved, targetID)
	s.logger.LogRideEvent(rideID, utils.EventMemberRemoved, map[string]interface{}{
		"user_id":    targetID.Hex(),
		"removed_by": requesterID.Hex(),
		"members":    len(updated.Members),
	})

	s.notifyAsync(ctx, func(nctx context.Context) {
		user, err := s.userRepo.GetByID(nctx, targetID)
		if err != nil {
			s.logger.WithError(err).WithUserID(targetID).Warn("Cannot load removed member for notification")
			return
		}
		s.notifier.NotifyMemberRemoved(nctx, user, updated)
	})

	return updated, nil
}

// detachMember removes userID from the ride, then the ride from the user.
// The ride write goes first so a failure leaves at most a stale joined
// rides entry.
func (s *rideService) detachMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	updated, err := s.rideRepo.RemoveMember(ctx, rideID, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrConditionFailed) {
			if _, rerr := s.rideRepo.GetByID(ctx, rideID); errors.Is(rerr, interfaces.ErrNotFound) {
				return nil, ErrRideNotFound
			}
			return nil, ErrNotAMember
		}
		return nil, s.internal("failed to remove member", err)
	}

	s.cache.InvalidateRide(ctx, rideID)

	if err := s.userRepo.RemoveJoinedRide(ctx, userID, rideID); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		s.logger.WithError(err).WithRideID(rideID).WithUserID(userID).Error("Failed to remove joined ride from user")
	}

	return updated, nil
}

func (s *rideService) DeleteRide(ctx context.Context, rideID, requesterID primitive.ObjectID) error {
	ride, err := s.fetchRide(ctx, rideID)
	if err != nil {
		return err
	}
	if !ride.IsCreator(requesterID) {
		return ErrNotRideCreator
	}

	if err := s.userRepo.DetachRide(ctx, rideID); err != nil {
		return s.internal("failed to detach ride from users", err)
	}

	if err := s.rideRepo.Delete(ctx, rideID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrRideNotFound
		}
		return s.internal("failed to delete ride", err)
	}

	s.cache.InvalidateRide(ctx, rideID)
	s.publish(ride, utils.EventRideDeleted, requesterID)
	s.logger.LogRideEvent(rideID, utils.EventRideDeleted, map[string]interface{}{
		"deleted_by": requesterID.Hex(),
		"members":    len(ride.Members),
	})

	if len(ride.Members) > 0 {
		members := append([]primitive.ObjectID(nil), ride.Members...)
		s.notifyAsync(ctx, func(nctx context.Context) {
			users, err := s.userRepo.GetByIDs(nctx, members)
			if err != nil {
				s.logger.WithError(err).WithRideID(rideID).Warn("Cannot load members for cancellation notice")
				return
			}
			s.notifier.NotifyRideCancelled(nctx, users, ride)
		})
	}

	return nil
}

func (s *rideService) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideView, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	views, err := s.buildViews(ctx, []*models.Ride{ride}, true, true)
	if err != nil {
		return nil, err
	}

	return views[0], nil
}

func (s *rideService) ListAvailable(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.RideView, int64, error) {
	if filter.Tag != "" && !models.IsValidRideTag(string(filter.Tag)) {
		return nil, 0, ValidationError("invalid filter", map[string]string{"tag": "unknown tag " + string(filter.Tag)})
	}

	rides, total, err := s.rideRepo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, s.internal("failed to list rides", err)
	}

	views, err := s.buildViews(ctx, rides, true, false)
	if err != nil {
		return nil, 0, err
	}

	return views, total, nil
}

func (s *rideService) ListByCreator(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error) {
	rides, err := s.rideRepo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, s.internal("failed to list created rides", err)
	}

	return s.buildViews(ctx, rides, false, true)
}

func (s *rideService) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error) {
	rides, err := s.rideRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, s.internal("failed to list joined rides", err)
	}

	return s.buildViews(ctx, rides, true, false)
}

func (s *rideService) ListNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]*models.RideView, error) {
	details := map[string]string{}
	if !utils.IsValidCoordinates(lat, lng) {
		details["location"] = "lat must be between -90 and 90 and lng between -180 and 180"
	}
	if radiusMeters <= 0 || radiusMeters > utils.MaxSearchRadiusMeters {
		details["distance"] = "distance must be greater than 0 and at most 500000 meters"
	}
	if len(details) > 0 {
		return nil, ValidationError("invalid location query", details)
	}

	rides, err := s.rideRepo.ListNearby(ctx, lat, lng, radiusMeters, s.nearbyMax)
	if err != nil {
		return nil, s.internal("failed to search nearby rides", err)
	}

	views, err := s.buildViews(ctx, rides, true, false)
	if err != nil {
		return nil, err
	}

	for _, v := range views {
		d := utils.CalculateDistanceMeters(lat, lng, v.Source.Latitude(), v.Source.Longitude())
		v.DistanceMeters = &d
	}

	return views, nil
}

// loadRide reads through the ride cache. Only reads use it; a cached copy
// can trail a concurrent write.
func (s *rideService) loadRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	if ride, ok := s.cache.GetRide(ctx, rideID); ok {
		return ride, nil
	}

	ride, err := s.fetchRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	s.cache.SetRide(ctx, ride)
	return ride, nil
}

// fetchRide reads the stored ride, bypassing the cache. Mutations check
// their preconditions against it.
func (s *rideService) fetchRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, s.internal("failed to load ride", err)
	}
	return ride, nil
}

// buildViews resolves creator and member profiles with one user lookup.
func (s *rideService) buildViews(ctx context.Context, rides []*models.Ride, withCreator, withMembers bool) ([]*models.RideView, error) {
	views := make([]*models.RideView, 0, len(rides))
	if len(rides) == 0 {
		return views, nil
	}

	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range rides {
		if withCreator {
			add(r.Creator)
		}
		if withMembers {
			for _, m := range r.Members {
				add(m)
			}
		}
	}

	profiles := map[primitive.ObjectID]models.UserSummary{}
	if len(ids) > 0 {
		users, err := s.userRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, s.internal("failed to load user profiles", err)
		}
		for _, u := range users {
			profiles[u.ID] = u.Summary()
		}
	}

	for _, r := range rides {
		view := &models.RideView{Ride: *r}
		if withCreator {
			if p, ok := profiles[r.Creator]; ok {
				view.CreatorProfile = &p
			}
		}
		if withMembers {
			view.MemberProfiles = make([]models.UserSummary, 0, len(r.Members))
			for _, m := range r.Members {
				if p, ok := profiles[m]; ok {
					view.MemberProfiles = append(view.MemberProfiles, p)
				}
			}
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *rideService) publish(ride *models.Ride, eventType string, userID primitive.ObjectID) {
	if s.events == nil || ride == nil {
		return
	}

	s.events.SendRideUpdate(ride.ID, eventType, map[string]interface{}{
		"ride_id": ride.ID.Hex(),
		"user_id": userID.Hex(),
		"members": len(ride.Members),
		"status":  ride.Status,
	})
}

// notifyAsync runs fn after the request returns, detached from its
// cancellation.
func (s *rideService) notifyAsync(ctx context.Context, fn func(context.Context)) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		fn(nctx)
	}()
}

func (s *rideService) internal(op string, err error) error {
	s.logger.WithError(err).Error(op)
	return internalError(op, err)
}
