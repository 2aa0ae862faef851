package handlers

import (
	"errors"
	"net/http"

	"poolmate/internal/middleware"
	"poolmate/internal/services"
	"poolmate/internal/utils"
	"poolmate/internal/validators"
	"poolmate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindGeocode:      http.StatusBadRequest,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindForbidden:    http.StatusForbidden,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindRateLimited:  http.StatusTooManyRequests,
}

// respondError writes the envelope for err. Internal failures are logged and
// reported without their cause.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) || se.Kind == services.KindInternal {
		log.WithContext(c.Request.Context()).WithError(err).
			WithField("path", c.Request.URL.Path).Error("Request failed")
		utils.InternalServerErrorResponse(c)
		return
	}

	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if len(se.Details) > 0 {
		utils.ErrorResponseWithDetails(c, status, se.Code, se.Message, se.Details)
		return
	}
	utils.ErrorResponse(c, status, se.Code, se.Message)
}

// bindAndValidate decodes the JSON body into req and runs check on it. It
// writes the 400 response itself and reports whether handling may go on.
func bindAndValidate[T any](c *gin.Context, req *T, check func(*T) validators.ValidationErrors) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}

	if check == nil {
		check = func(r *T) validators.ValidationErrors { return validators.ValidateStruct(r) }
	}
	if errs := check(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return false
	}

	return true
}

func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return primitive.NilObjectID, false
	}
	return userID, true
}

// mustObjectID parses a hex id that already passed validation.
func mustObjectID(hex string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(hex)
	return id
}
