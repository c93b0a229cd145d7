package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/apperrors"
)

// statusFor is the single place error kinds become HTTP statuses.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindNotParticipant, apperrors.KindUnauthorized:
		return http.StatusForbidden
	case apperrors.KindAlreadyParticipant:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	message := "temporary storage failure, retry later"
	var appErr *apperrors.Error
	if kind != apperrors.KindTransient && errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "route", c.FullPath(), "user_id", actorID(c), "err", err)
	}
	c.JSON(status, gin.H{"error": message, "code": kind})
}
