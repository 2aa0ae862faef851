package handlers

import (
	"poolmate/internal/config"
	"poolmate/internal/services"
	"poolmate/internal/utils"
	"poolmate/internal/validators"
	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	security    *config.SecurityConfig
	logger      *logger.Logger
}

func NewAuthHandler(authService services.AuthService, security *config.SecurityConfig, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		security:    security,
		logger:      log.WithField("handler", "auth"),
	}
}

// Register creates an account and returns a token for it
func (h *AuthHandler) Register(c *gin.Context) {
	var request validators.RegisterRequest
	ok := bindAndValidate(c, &request, func(r *validators.RegisterRequest) validators.ValidationErrors {
		return validators.ValidateUserRegistration(r, h.security.EnforcePhoneLength, h.security.PasswordMinLength)
	})
	if !ok {
		return
	}

	response, err := h.authService.Register(c.Request.Context(), &services.RegisterRequest{
		Name:     request.Name,
		Email:    request.Email,
		Password: request.Password,
		Phone:    request.Phone,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "User registered successfully", response)
}

// Login exchanges credentials for a token
func (h *AuthHandler) Login(c *gin.Context) {
	var request validators.LoginRequest
	if !bindAndValidate(c, &request, validators.ValidateLogin) {
		return
	}

	response, err := h.authService.Login(c.Request.Context(), &services.LoginRequest{
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Login successful", response)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "User retrieved successfully", user)
}
