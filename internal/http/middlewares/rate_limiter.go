package middlewares

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/geocoder89/identity/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit enforces l for the key derived by keyFn. Limiter failures let the
// request through; an unavailable limiter must not lock users out.
func RateLimit(l ratelimit.Limiter, keyFn func(*gin.Context) string, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			// fallback to IP if key cannot be derived
			key = "ip:" + clientIP(c)
		}

		allowed, retryAfter, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limiter unavailable", "err", err)
			c.Next()
			return
		}

		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 0 {
				secs = 0
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abortError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// KeyByRouteAndIP limits unauthenticated endpoints per client and route.
func KeyByRouteAndIP(c *gin.Context) string {
	return c.FullPath() + "|ip:" + clientIP(c)
}

// KeyByUserOrIP prefers the authenticated user, so clients behind one NAT do
// not share a budget.
func KeyByUserOrIP(c *gin.Context) string {
	if u, ok := UserFromContext(c); ok {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}
