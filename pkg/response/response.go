package response

import (
	"net/http"

	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID retrieves the authenticated member ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetEmail returns the verified email attached by the identity middleware.
func GetEmail(c *gin.Context) string {
	return c.GetString("email")
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	switch code {
	case http.StatusInternalServerError:
		logger.Default().WithError(err).WithField("path", c.FullPath()).Error("internal error")
		c.JSON(code, gin.H{"error": "internal server error"})
	case http.StatusServiceUnavailable:
		logger.Default().WithError(err).WithField("path", c.FullPath()).Warn("store unavailable")
		c.JSON(code, gin.H{"error": "something went wrong, please try again", "retryable": true})
	default:
		c.JSON(code, gin.H{"error": err.Error()})
	}
}
