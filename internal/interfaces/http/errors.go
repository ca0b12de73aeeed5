package http

import (
	"errors"
	"net/http"

	"liveassist/internal/entities"
	"liveassist/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code entities.ErrorCode) int {
	switch code {
	case entities.CodeValidation, entities.CodeEmptyBody:
		return http.StatusBadRequest
	case entities.CodeNotFound:
		return http.StatusNotFound
	case entities.CodeAlreadyClaimed, entities.CodeInvalidTransition, entities.CodeRequestClosed:
		return http.StatusConflict
	case entities.CodeForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "code", ...metadata}. Infrastructure
// errors are logged and hidden behind a generic message.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	var de *entities.Error
	if errors.As(err, &de) {
		body := gin.H{"error": de.Message, "code": de.Code}
		for k, v := range de.Metadata {
			body[k] = v
		}
		c.AbortWithStatusJSON(StatusFor(de.Code), body)
		return
	}
	if errors.Is(err, usecases.ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "UNAUTHORIZED"})
		return
	}

	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL"})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": entities.CodeValidation})
}
