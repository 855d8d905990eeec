package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := map[string]int{
		"":                                http.StatusUnsupportedMediaType,
		"text/plain":                      http.StatusUnsupportedMediaType,
		"application/json":                http.StatusNoContent,
		"Application/JSON; charset=utf-8": http.StatusNoContent,
	}

	for ct, want := range tests {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != want {
			t.Fatalf("content-type %q: got %d, want %d", ct, w.Code, want)
		}
	}
}
