package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"video-share-service/internal/services"
)

func statusCodeForError(err *services.ServiceError) int {
	switch err.Type {
	case services.ErrTypeValidation:
		return http.StatusBadRequest
	case services.ErrTypeNotFound:
		return http.StatusNotFound
	case services.ErrTypePermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a structured JSON body.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	var se *services.ServiceError
	if errors.As(err, &se) {
		c.JSON(statusCodeForError(se), gin.H{
			"error": se.Message,
			"code":  se.Code,
			"type":  se.Type,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": err.Error(),
		"code":  "unknown_error",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": services.ErrCodeInvalidInput})
}
