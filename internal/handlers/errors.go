package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps the service error taxonomy onto HTTP status codes.
// Anything outside the taxonomy is a 500 with a generic body.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr    *services.ValidationError
		authorizationErr *services.AuthorizationError
		conflictErr      *services.ConflictError
		notFoundErr      *services.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
		})
	case errors.As(err, &authorizationErr):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: authorizationErr.Message,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: conflictErr.Message,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFoundErr.Error(),
		})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong",
		})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}
