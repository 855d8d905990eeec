package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondError writes the error envelope. The top-level message mirrors
// error.message for clients that only read {"message": ...}.
func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"message": message,
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnprocessable(ctx *gin.Context, code, message string, details interface{}) {
	RespondError(ctx, http.StatusUnprocessableEntity, code, message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// respondAccountsError maps an accounts error to its HTTP response. The
// missing-field message differs per operation, so callers pass it in.
func respondAccountsError(ctx *gin.Context, log *slog.Logger, err error, missingMsg string) {
	switch {
	case errors.Is(err, accounts.ErrMissingField):
		RespondUnprocessable(ctx, "missing_field", missingMsg, nil)
	case errors.Is(err, accounts.ErrWeakPassword):
		RespondUnprocessable(ctx, "weak_password", "Password should be at least 8 characters", nil)
	case errors.Is(err, accounts.ErrPasswordTooLong):
		RespondUnprocessable(ctx, "password_too_long", "Password must be at most 72 bytes", nil)
	case errors.Is(err, accounts.ErrInvalidEmail):
		RespondUnprocessable(ctx, "invalid_email", "Invalid e-mail ID", nil)
	case errors.Is(err, accounts.ErrUserExists):
		RespondUnprocessable(ctx, "user_exists", "User already exists", nil)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "User is not registered or password is incorrect")
	case errors.Is(err, accounts.ErrUnknownUser):
		RespondError(ctx, http.StatusInternalServerError, "unknown_user", "User ID does not exist", nil)
	case errors.Is(err, accounts.ErrTokenIssuance):
		log.ErrorContext(ctx.Request.Context(), "token issuance failed", "err", err)
		RespondInternal(ctx, "Auth token could not be generated")
	default:
		log.ErrorContext(ctx.Request.Context(), "request failed", "route", ctx.FullPath(), "err", err)
		RespondInternal(ctx, "internal server error")
	}
}
