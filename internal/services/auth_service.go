package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"poolmate/internal/config"
	"poolmate/internal/models"
	"poolmate/internal/repositories/interfaces"
	"poolmate/internal/utils"
	"poolmate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, request *RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, request *LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type LoginRequest struct {
	Email    string
	Password string
}

type RegisterResponse struct {
	UserID primitive.ObjectID `json:"user_id"`
	Token  string             `json:"token"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

type authService struct {
	userRepo interfaces.UserRepository
	cache    CacheService
	config   *config.SecurityConfig
	logger   *logger.Logger
}

func NewAuthService(userRepo interfaces.UserRepository, cache CacheService, cfg *config.SecurityConfig, log *logger.Logger) AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	if cache == nil {
		cache = NewCacheService(nil, log, 0)
	}
	return &authService{
		userRepo: userRepo,
		cache:    cache,
		config:   cfg,
		logger:   log.WithField("component", "auth_service"),
	}
}

func (s *authService) Register(ctx context.Context, request *RegisterRequest) (*RegisterResponse, error) {
	details := map[string]string{}

	name := strings.TrimSpace(request.Name)
	email := utils.NormalizeEmail(request.Email)
	phone := strings.TrimSpace(request.Phone)

	if name == "" {
		details["name"] = "name is required"
	}
	if !utils.IsValidEmail(email) {
		details["email"] = "a valid email is required"
	}
	if len(request.Password) < s.config.PasswordMinLength {
		details["password"] = "password is too short"
	} else if len(request.Password) > utils.MaxPasswordBytes {
		details["password"] = "password is too long"
	}
	if phone != "" && s.config.EnforcePhoneLength && !utils.IsTenDigitPhone(phone) {
		details["phone"] = "phone number must be 10 digits"
	}
	if len(details) > 0 {
		return nil, ValidationError("invalid registration", details)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.config.BcryptCost)
	if err != nil {
		return nil, s.internal("failed to hash password", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		CreatedRides: []primitive.ObjectID{},
		JoinedRides:  []primitive.ObjectID{},
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, s.internal("failed to create user", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.LogUserAction(user.ID, utils.EventUserRegistered, nil)

	return &RegisterResponse{UserID: user.ID, Token: token}, nil
}

func (s *authService) Login(ctx context.Context, request *LoginRequest) (*LoginResponse, error) {
	email := utils.NormalizeEmail(request.Email)
	if email == "" || request.Password == "" {
		return nil, ValidationError("invalid login", map[string]string{"credentials": "email and password are required"})
	}

	limitKey := "login:" + email
	if s.config.MaxLoginAttempts > 0 {
		if res := s.cache.CheckRateLimit(ctx, limitKey, int64(s.config.MaxLoginAttempts)); !res.Allowed {
			s.logger.LogSecurityEvent("login_rate_limited", "medium", map[string]interface{}{
				"email":       email,
				"retry_after": res.RetryAfter.String(),
			})
			return nil, ErrTooManyAttempts
		}
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, s.internal("failed to load user", err)
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)) != nil {
		s.cache.RecordAttempt(ctx, limitKey, s.config.LoginLockoutTime)
		s.logger.LogSecurityEvent("login_failed", "low", map[string]interface{}{"email": email})
		return nil, ErrInvalidCredentials
	}

	s.cache.ResetRateLimit(ctx, limitKey)

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.LogUserAction(user.ID, utils.EventUserLogin, nil)

	return &LoginResponse{Token: token, User: user.Summary()}, nil
}

func (s *authService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.internal("failed to load user", err)
	}
	return user, nil
}

func (s *authService) issueToken(user *models.User) (string, error) {
	token, err := utils.GenerateToken(user.ID.Hex(), user.Email, s.config.JWTSecret, s.config.JWTAccessTokenTTL)
	if err != nil {
		return "", s.internal("failed to sign token", err)
	}
	return token.AccessToken, nil
}

func (s *authService) internal(op string, err error) error {
	s.logger.WithError(err).Error(op)
	return internalError(op, err)
}
