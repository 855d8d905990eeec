package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/http/handlers"
	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/geocoder89/identity/internal/observability"
	"github.com/geocoder89/identity/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AccountService is what the routes need from accounts.Service.
type AccountService interface {
	handlers.Accounts
	Authenticate(ctx context.Context, authorization string) (user.User, error)
}

type RouterDeps struct {
	Env      string
	Log      *slog.Logger
	Accounts AccountService

	// optional
	Prom         *observability.Prom
	Limiter      ratelimit.Limiter
	Ready        map[string]handlers.Pinger
	CORSOrigins  []string
	MaxBodyBytes int64

	// TrustedProxies lists the proxy IPs/CIDRs allowed to set the client IP
	// via X-Forwarded-For. Nil trusts none, so ClientIP is the peer address.
	TrustedProxies []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// rate limit keys depend on ClientIP; never take it from an untrusted header
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Log.Error("invalid trusted proxies, trusting none", "err", err)
		_ = r.SetTrustedProxies(nil)
	}

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("identity-api"))
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Ready)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Prom != nil {
		r.GET("/metrics", gin.WrapH(d.Prom.Handler()))
	}

	usersHandler := handlers.NewUsersHandler(d.Accounts, d.Log)
	authMW := middlewares.NewAuthMiddleware(d.Accounts, d.Log)

	limit := func(key func(*gin.Context) string) gin.HandlerFunc {
		if d.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middlewares.RateLimit(d.Limiter, key, d.Log)
	}

	users := r.Group("/users")
	{
		public := users.Group("", middlewares.RequireJSON(), limit(middlewares.KeyByRouteAndIP))
		public.POST("/signup/", usersHandler.SignUp)
		public.POST("/signin/", usersHandler.SignIn)

		profile := users.Group("/profile", authMW.RequireAuth(), limit(middlewares.KeyByUserOrIP))
		profile.GET("/", usersHandler.GetProfile)
		profile.PATCH("/", middlewares.RequireJSON(), usersHandler.PatchProfile)
	}

	return r
}

var _ AccountService = (*accounts.Service)(nil)
