package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/apperrors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const messageInternal = "Internal server error"

func statusForError(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	message := apperrors.MessageOf(err, messageInternal)
	if status == http.StatusInternalServerError {
		message = messageInternal
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("code", apperrors.CodeOf(err)),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err),
		)
	}
	body := gin.H{"error": message}
	if code := apperrors.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
