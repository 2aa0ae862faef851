package handlers

import (
	"context"
	"strconv"

	"poolmate/internal/models"
	"poolmate/internal/services"
	"poolmate/internal/utils"
	"poolmate/internal/validators"
	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideEventStream upgrades a request into a subscription on a ride's events.
type RideEventStream interface {
	ServeRide(c *gin.Context, rideID, userID primitive.ObjectID)
}

type RideHandler struct {
	rideService services.RideService
	events      RideEventStream
	logger      *logger.Logger
}

func NewRideHandler(rideService services.RideService, events RideEventStream, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		events:      events,
		logger:      log.WithField("handler", "ride"),
	}
}

// CreateRide publishes a new ride offer
func (h *RideHandler) CreateRide(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.CreateRideRequest
	if !bindAndValidate(c, &request, validators.ValidateCreateRide) {
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), userID, &services.CreateRideInput{
		SourceText:      request.SourceText,
		DestinationText: request.DestinationText,
		Tags:            request.Tags,
		RideDate:        request.RideDate,
		Description:     request.Description,
		NoteForJoiners:  request.NoteForJoiners,
		Cost:            request.Cost,
		MaxMembers:      request.MaxMembers,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// EditRide applies a partial update from the ride's creator
func (h *RideHandler) EditRide(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.EditRideRequest
	if !bindAndValidate(c, &request, validators.ValidateEditRide) {
		return
	}

	u := request.Updates
	input := &services.EditRideInput{
		RideDate:       u.RideDate,
		Tags:           u.Tags,
		Description:    u.Description,
		NoteForJoiners: u.NoteForJoiners,
		Cost:           u.Cost,
		MaxMembers:     u.MaxMembers,
	}
	if u.Source != nil {
		input.SourceName = &u.Source.Name
	}
	if u.Destination != nil {
		input.DestinationName = &u.Destination.Name
	}

	ride, err := h.rideService.EditRide(c.Request.Context(), mustObjectID(request.RideID), userID, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Ride updated successfully", ride)
}

// JoinRide adds the caller to a ride
func (h *RideHandler) JoinRide(c *gin.Context) {
	h.memberAction(c, "Joined ride successfully", h.rideService.JoinRide)
}

// LeaveRide removes the caller from a ride
func (h *RideHandler) LeaveRide(c *gin.Context) {
	h.memberAction(c, "Left ride successfully", h.rideService.LeaveRide)
}

func (h *RideHandler) memberAction(c *gin.Context, message string, action func(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.RideActionRequest
	if !bindAndValidate(c, &request, nil) {
		return
	}

	ride, err := action(c.Request.Context(), mustObjectID(request.RideID), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, message, ride)
}

// RemoveMember lets a creator drop a member from their ride
func (h *RideHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.RemoveMemberRequest
	if !bindAndValidate(c, &request, nil) {
		return
	}

	ride, err := h.rideService.RemoveMember(c.Request.Context(),
		mustObjectID(request.RideID), userID, mustObjectID(request.UserIDToRemove))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Member removed successfully", ride)
}

// DeleteRide deletes a ride and detaches it from every user
func (h *RideHandler) DeleteRide(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.RideActionRequest
	if !bindAndValidate(c, &request, nil) {
		return
	}

	if err := h.rideService.DeleteRide(c.Request.Context(), mustObjectID(request.RideID), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Ride deleted successfully", nil)
}

// GetRide returns a ride with creator and member profiles
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, services.ErrInvalidID)
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// ListAvailable lists rides newest first
func (h *RideHandler) ListAvailable(c *gin.Context) {
	filter := models.RideFilter{Tag: models.RideTag(c.Query("tag"))}
	if raw := c.Query("only_open"); raw != "" {
		onlyOpen, err := strconv.ParseBool(raw)
		if err != nil {
			utils.ValidationErrorResponse(c, map[string]string{"only_open": "only_open must be true or false"})
			return
		}
		filter.OnlyOpen = onlyOpen
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.ListAvailable(c.Request.Context(), filter, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(rides),
	})
}

// ListNearby lists rides departing within distance meters of lat/lng
func (h *RideHandler) ListNearby(c *gin.Context) {
	details := map[string]string{}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		details["lat"] = "lat is required and must be a number"
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		details["lng"] = "lng is required and must be a number"
	}

	distance := utils.DefaultSearchRadiusMeters
	if raw := c.Query("distance"); raw != "" {
		if distance, err = strconv.ParseFloat(raw, 64); err != nil {
			details["distance"] = "distance must be a number of meters"
		}
	}

	if len(details) > 0 {
		utils.ValidationErrorResponse(c, details)
		return
	}

	rides, err := h.rideService.ListNearby(c.Request.Context(), lat, lng, distance)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// MyCreated lists the caller's own rides
func (h *RideHandler) MyCreated(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rides, err := h.rideService.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// MyJoined lists rides the caller has joined
func (h *RideHandler) MyJoined(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rides, err := h.rideService.ListByMember(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// Events subscribes the caller to a ride's websocket feed
func (h *RideHandler) Events(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, services.ErrInvalidID)
		return
	}

	if _, err := h.rideService.GetRide(c.Request.Context(), rideID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.events.ServeRide(c, rideID, userID)
}
