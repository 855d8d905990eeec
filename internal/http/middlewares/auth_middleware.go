package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/actorctx"
	"github.com/geocoder89/identity/internal/auth"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Authenticator is the slice of accounts.Service the middleware needs.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (user.User, error)
}

type AuthMiddleware struct {
	accounts Authenticator
	log      *slog.Logger
}

func NewAuthMiddleware(a Authenticator, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{accounts: a, log: log}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.accounts.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, accounts.ErrMissingToken):
				abortError(c, http.StatusUnauthorized, "unauthorized", "Invalid Token")
			case errors.Is(err, auth.ErrTokenExpired):
				abortError(c, http.StatusUnauthorized, "token_expired", "Auth Failed: signature expired, please log in again")
			case errors.Is(err, accounts.ErrUnauthorized):
				abortError(c, http.StatusUnauthorized, "unauthorized", "Auth Failed: invalid token, please log in again")
			case errors.Is(err, accounts.ErrUnknownUser):
				abortError(c, http.StatusInternalServerError, "unknown_user", "User ID does not exist")
			default:
				m.log.ErrorContext(c.Request.Context(), "authenticate failed", "err", err)
				abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			}
			return
		}

		c.Set(ctxUserKey, u)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

// UserFromContext returns the user RequireAuth resolved for this request.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
