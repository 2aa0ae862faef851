package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"poolmate/internal/config"
	"poolmate/internal/middleware"
	"poolmate/internal/models"
	"poolmate/internal/services"
	"poolmate/internal/utils"
	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthService struct {
	register func(*services.RegisterRequest) (*services.RegisterResponse, error)
	login    func(*services.LoginRequest) (*services.LoginResponse, error)
}

func (s *stubAuthService) Register(ctx context.Context, r *services.RegisterRequest) (*services.RegisterResponse, error) {
	return s.register(r)
}

func (s *stubAuthService) Login(ctx context.Context, r *services.LoginRequest) (*services.LoginResponse, error) {
	return s.login(r)
}

func (s *stubAuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return &models.User{ID: id, Name: "Me", Email: "me@example.com", PasswordHash: "secret-hash"}, nil
}

// stubRideService records the last call and returns canned results.
type stubRideService struct {
	err       error
	ride      *models.Ride
	lastInput interface{}
	lastIDs   []primitive.ObjectID
	nearby    []float64
	filter    models.RideFilter
}

func (s *stubRideService) CreateRide(ctx context.Context, creatorID primitive.ObjectID, in *services.CreateRideInput) (*models.Ride, error) {
	s.lastIDs = []primitive.ObjectID{creatorID}
	s.lastInput = in
	return s.ride, s.err
}

func (s *stubRideService) EditRide(ctx context.Context, rideID, requesterID primitive.ObjectID, in *services.EditRideInput) (*models.Ride, error) {
	s.lastIDs = []primitive.ObjectID{rideID, requesterID}
	s.lastInput = in
	return s.ride, s.err
}

func (s *stubRideService) DeleteRide(ctx context.Context, rideID, requesterID primitive.ObjectID) error {
	s.lastIDs = []primitive.ObjectID{rideID, requesterID}
	return s.err
}

func (s *stubRideService) JoinRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	s.lastIDs = []primitive.ObjectID{rideID, userID}
	return s.ride, s.err
}

func (s *stubRideService) LeaveRide(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	s.lastIDs = []primitive.ObjectID{rideID, userID}
	return s.ride, s.err
}

func (s *stubRideService) RemoveMember(ctx context.Context, rideID, requesterID, targetID primitive.ObjectID) (*models.Ride, error) {
	s.lastIDs = []primitive.ObjectID{rideID, requesterID, targetID}
	return s.ride, s.err
}

func (s *stubRideService) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.RideView, error) {
	s.lastIDs = []primitive.ObjectID{rideID}
	if s.err != nil {
		return nil, s.err
	}
	return &models.RideView{Ride: *s.ride}, nil
}

func (s *stubRideService) ListAvailable(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.RideView, int64, error) {
	s.filter = filter
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*models.RideView{{Ride: *s.ride}}, 41, nil
}

func (s *stubRideService) ListByCreator(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error) {
	s.lastIDs = []primitive.ObjectID{userID}
	return []*models.RideView{}, s.err
}

func (s *stubRideService) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.RideView, error) {
	s.lastIDs = []primitive.ObjectID{userID}
	return []*models.RideView{}, s.err
}

func (s *stubRideService) ListNearby(ctx context.Context, lat, lng, radius float64) ([]*models.RideView, error) {
	s.nearby = []float64{lat, lng, radius}
	return []*models.RideView{}, s.err
}

type stubStream struct {
	served bool
}

func (s *stubStream) ServeRide(c *gin.Context, rideID, userID primitive.ObjectID) {
	s.served = true
	c.Status(http.StatusSwitchingProtocols)
}

func testRouter(auth services.AuthService, rides services.RideService, stream RideEventStream) *gin.Engine {
	log := logger.NewNop()
	security := &config.SecurityConfig{JWTSecret: testSecret, PasswordMinLength: 8, EnforcePhoneLength: true}

	authHandler := NewAuthHandler(auth, security, log)
	rideHandler := NewRideHandler(rides, stream, log)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/me", middleware.AuthRequired(testSecret), authHandler.Me)

	v1.GET("/rides/available", rideHandler.ListAvailable)
	v1.GET("/rides/nearby", rideHandler.ListNearby)
	v1.GET("/rides/:id", rideHandler.GetRide)
	p := v1.Group("/rides", middleware.AuthRequired(testSecret))
	p.POST("", rideHandler.CreateRide)
	p.PATCH("/edit", rideHandler.EditRide)
	p.POST("/join", rideHandler.JoinRide)
	p.POST("/leave", rideHandler.LeaveRide)
	p.POST("/remove-member", rideHandler.RemoveMember)
	p.POST("/delete", rideHandler.DeleteRide)
	p.GET("/my-created", rideHandler.MyCreated)
	p.GET("/:id/events", rideHandler.Events)
	return r
}

func bearer(t *testing.T, userID primitive.ObjectID) string {
	t.Helper()
	tok, err := utils.GenerateToken(userID.Hex(), "u@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok.AccessToken
}

func do(r http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{services.ErrNotRideCreator, http.StatusForbidden, "NOT_RIDE_CREATOR"},
		{services.ErrCannotJoinOwn, http.StatusForbidden, "CANNOT_JOIN_OWN_RIDE"},
		{services.ErrRideNotFound, http.StatusNotFound, "RIDE_NOT_FOUND"},
		{services.ErrCreatorCannotLeave, http.StatusBadRequest, "CREATOR_CANNOT_LEAVE"},
		{services.ErrNotAMember, http.StatusBadRequest, "NOT_A_MEMBER"},
		{services.ErrAlreadyJoined, http.StatusConflict, "ALREADY_JOINED"},
		{services.ErrRideFull, http.StatusConflict, "RIDE_FULL"},
		{services.ErrDuplicateUser, http.StatusConflict, "DUPLICATE_USER"},
		{services.GeocodeError("Atlantis", errors.New("no match")), http.StatusBadRequest, "GEOCODE_FAILED"},
		{services.ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
		{errors.New("mongo exploded"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, logger.NewNop(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "mongo exploded")
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	auth := &stubAuthService{register: func(r *services.RegisterRequest) (*services.RegisterResponse, error) {
		return &services.RegisterResponse{UserID: userID, Token: "tok"}, nil
	}}
	r := testRouter(auth, &stubRideService{}, &stubStream{})

	w := do(r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Lee", "email": "lee@example.com", "password": "password1", "phone": "1234567890",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, userID.Hex(), data["user_id"])
	assert.Equal(t, "tok", data["token"])

	w = do(r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Lee", "email": "lee@example.com", "password": "password1", "phone": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "phone")

	w = do(r, http.MethodPost, "/api/v1/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginHandler(t *testing.T) {
	auth := &stubAuthService{login: func(r *services.LoginRequest) (*services.LoginResponse, error) {
		if r.Password != "password1" {
			return nil, services.ErrInvalidCredentials
		}
		return &services.LoginResponse{Token: "tok", User: models.UserSummary{Name: "Lee"}}, nil
	}}
	r := testRouter(auth, &stubRideService{}, &stubStream{})

	w := do(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "lee@example.com", "password": "password1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "lee@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w).Error.Message)
}

func TestMeHidesPasswordHash(t *testing.T) {
	r := testRouter(&stubAuthService{}, &stubRideService{}, &stubStream{})
	userID := primitive.NewObjectID()

	w := do(r, http.MethodGet, "/api/v1/auth/me", bearer(t, userID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")
	assert.Contains(t, w.Body.String(), userID.Hex())
}

func TestCreateRideHandler(t *testing.T) {
	rides := &stubRideService{ride: &models.Ride{ID: primitive.NewObjectID()}}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})
	userID := primitive.NewObjectID()

	body := map[string]interface{}{
		"source_text":      "Downtown",
		"destination_text": "Airport",
		"tags":             []string{"Airport"},
		"ride_date":        "2025-06-01T09:30",
		"cost":             10,
		"max_members":      3,
	}

	w := do(r, http.MethodPost, "/api/v1/rides", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/v1/rides", bearer(t, userID), body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, userID, rides.lastIDs[0])
	in := rides.lastInput.(*services.CreateRideInput)
	assert.Equal(t, "Downtown", in.SourceText)
	assert.Equal(t, 3, in.MaxMembers)

	body["tags"] = []string{"Party"}
	w = do(r, http.MethodPost, "/api/v1/rides", bearer(t, userID), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditRideHandler(t *testing.T) {
	rides := &stubRideService{ride: &models.Ride{ID: primitive.NewObjectID()}}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})
	userID := primitive.NewObjectID()
	rideID := primitive.NewObjectID()

	w := do(r, http.MethodPatch, "/api/v1/rides/edit", bearer(t, userID), map[string]interface{}{
		"ride_id": rideID.Hex(),
		"updates": map[string]interface{}{
			"source":      map[string]string{"name": "University"},
			"max_members": 4,
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	in := rides.lastInput.(*services.EditRideInput)
	require.NotNil(t, in.SourceName)
	assert.Equal(t, "University", *in.SourceName)
	assert.Nil(t, in.DestinationName)
	require.NotNil(t, in.MaxMembers)
	assert.Equal(t, 4, *in.MaxMembers)
	assert.Nil(t, in.Cost)
	assert.Equal(t, []primitive.ObjectID{rideID, userID}, rides.lastIDs)
}

func TestMembershipHandlers(t *testing.T) {
	userID := primitive.NewObjectID()
	rideID := primitive.NewObjectID()
	target := primitive.NewObjectID()

	rides := &stubRideService{ride: &models.Ride{ID: rideID}}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})

	w := do(r, http.MethodPost, "/api/v1/rides/join", bearer(t, userID), map[string]string{"ride_id": rideID.Hex()})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []primitive.ObjectID{rideID, userID}, rides.lastIDs)

	w = do(r, http.MethodPost, "/api/v1/rides/join", bearer(t, userID), map[string]string{"ride_id": "xyz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error.Details, "ride_id")

	w = do(r, http.MethodPost, "/api/v1/rides/remove-member", bearer(t, userID), map[string]string{
		"ride_id": rideID.Hex(), "user_id_to_remove": target.Hex(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []primitive.ObjectID{rideID, userID, target}, rides.lastIDs)

	rides.err = services.ErrRideFull
	w = do(r, http.MethodPost, "/api/v1/rides/join", bearer(t, userID), map[string]string{"ride_id": rideID.Hex()})
	assert.Equal(t, http.StatusConflict, w.Code)

	rides.err = services.ErrCreatorCannotLeave
	w = do(r, http.MethodPost, "/api/v1/rides/leave", bearer(t, userID), map[string]string{"ride_id": rideID.Hex()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rides.err = services.ErrNotRideCreator
	w = do(r, http.MethodPost, "/api/v1/rides/delete", bearer(t, userID), map[string]string{"ride_id": rideID.Hex()})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListAvailableHandler(t *testing.T) {
	rides := &stubRideService{ride: &models.Ride{ID: primitive.NewObjectID()}}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})

	w := do(r, http.MethodGet, "/api/v1/rides/available?tag=Work&only_open=true&page=2&page_size=20", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RideFilter{Tag: models.RideTagWork, OnlyOpen: true}, rides.filter)

	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	require.NotNil(t, resp.Meta.Pagination)
	assert.Equal(t, 2, resp.Meta.Pagination.Page)
	assert.Equal(t, 3, resp.Meta.Pagination.TotalPages)

	w = do(r, http.MethodGet, "/api/v1/rides/available?only_open=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListNearbyHandler(t *testing.T) {
	rides := &stubRideService{}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})

	w := do(r, http.MethodGet, "/api/v1/rides/nearby?lat=40.7&lng=-74", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{40.7, -74, utils.DefaultSearchRadiusMeters}, rides.nearby)

	w = do(r, http.MethodGet, "/api/v1/rides/nearby?lat=40.7&lng=-74&distance=2500", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2500.0, rides.nearby[2])

	w = do(r, http.MethodGet, "/api/v1/rides/nearby?lng=-74", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error.Details, "lat")
}

func TestGetRideHandler(t *testing.T) {
	rides := &stubRideService{ride: &models.Ride{ID: primitive.NewObjectID()}}
	r := testRouter(&stubAuthService{}, rides, &stubStream{})

	w := do(r, http.MethodGet, "/api/v1/rides/"+rides.ride.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/rides/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)

	rides.err = services.ErrRideNotFound
	w = do(r, http.MethodGet, "/api/v1/rides/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventsHandler(t *testing.T) {
	rides := &stubRideService{ride: &models.Ride{ID: primitive.NewObjectID()}}
	stream := &stubStream{}
	r := testRouter(&stubAuthService{}, rides, stream)
	userID := primitive.NewObjectID()

	w := do(r, http.MethodGet, "/api/v1/rides/"+rides.ride.ID.Hex()+"/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, stream.served)

	rides.err = services.ErrRideNotFound
	w = do(r, http.MethodGet, "/api/v1/rides/"+rides.ride.ID.Hex()+"/events", bearer(t, userID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, stream.served)

	rides.err = nil
	do(r, http.MethodGet, "/api/v1/rides/"+rides.ride.ID.Hex()+"/events", bearer(t, userID), nil)
	assert.True(t, stream.served)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	r := gin.New()
	healthy := NewHealthHandler("1.0.0", map[string]Pinger{"mongodb": pingFunc(func(context.Context) error { return nil })})
	r.GET("/health", healthy.Health)
	sick := NewHealthHandler("1.0.0", map[string]Pinger{"redis": pingFunc(func(context.Context) error { return errors.New("down") })})
	r.GET("/sick", sick.Health)

	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mongodb":"up"`)

	w = do(r, http.MethodGet, "/sick", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}
