package middlewares_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/actorctx"
	"github.com/geocoder89/identity/internal/auth"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type fakeAuthenticator struct {
	authenticateFn func(ctx context.Context, header string) (user.User, error)
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, header string) (user.User, error) {
	return f.authenticateFn(ctx, header)
}

type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func newAuthRouter(fn func(ctx context.Context, header string) (user.User, error)) *gin.Engine {
	gin.SetMode(gin.TestMode)

	mw := middlewares.NewAuthMiddleware(&fakeAuthenticator{authenticateFn: fn}, nil)

	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/me", mw.RequireAuth(), func(c *gin.Context) {
		u, ok := middlewares.UserFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		id, _ := actorctx.UserIDFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "actor": id})
	})
	return r
}

func TestRequireAuth_SetsUserAndActor(t *testing.T) {
	var gotHeader string
	r := newAuthRouter(func(_ context.Context, header string) (user.User, error) {
		gotHeader = header
		return user.User{ID: 7, Email: "a@x.com"}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if gotHeader != "Bearer tok" {
		t.Fatalf("authenticator got header %q", gotHeader)
	}
	if w.Body.String() != `{"actor":7,"id":7}` {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRequireAuth_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing", accounts.ErrMissingToken, http.StatusUnauthorized, "unauthorized"},
		{"expired", fmt.Errorf("%w: %w", accounts.ErrUnauthorized, auth.ErrTokenExpired), http.StatusUnauthorized, "token_expired"},
		{"invalid", fmt.Errorf("%w: %w", accounts.ErrUnauthorized, auth.ErrTokenInvalid), http.StatusUnauthorized, "unauthorized"},
		{"unknown user", accounts.ErrUnknownUser, http.StatusInternalServerError, "unknown_user"},
		{"store down", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newAuthRouter(func(context.Context, string) (user.User, error) {
				return user.User{}, tc.err
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("X-Request-Id", "req-1")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tc.wantStatus)
			}

			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
			}
			if body.Error.Code != tc.wantCode {
				t.Fatalf("got code %q, want %q", body.Error.Code, tc.wantCode)
			}
			if body.Message == "" || body.Error.RequestID != "req-1" {
				t.Fatalf("incomplete envelope: %+v", body)
			}
		})
	}
}
