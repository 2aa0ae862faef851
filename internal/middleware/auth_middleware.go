package middleware

import (
	"strings"

	"poolmate/internal/utils"
	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "email"
)

// AuthRequired middleware validates the bearer token and sets user context
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			utils.UnauthorizedResponse(c, "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid user ID in token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserEmailKey, claims.Email)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// GetUserID returns the authenticated user set by AuthRequired.
func GetUserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}
