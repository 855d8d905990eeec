package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/auth"
	"github.com/geocoder89/identity/internal/config"
	"github.com/geocoder89/identity/internal/db"
	httpx "github.com/geocoder89/identity/internal/http"
	"github.com/geocoder89/identity/internal/http/handlers"
	"github.com/geocoder89/identity/internal/notifications"
	"github.com/geocoder89/identity/internal/observability"
	"github.com/geocoder89/identity/internal/ratelimit"
	"github.com/geocoder89/identity/internal/redisclient"
	"github.com/geocoder89/identity/internal/repo/memory"
	"github.com/geocoder89/identity/internal/repo/postgres"
	"github.com/geocoder89/identity/internal/repo/sqlite"
	"github.com/geocoder89/identity/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type store interface {
	accounts.Store
	handlers.Pinger
}

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	startCtx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownTracer, err := observability.InitTracer(startCtx, "identity-api", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	users, closeStore, err := openStore(startCtx, cfg, prom)
	if err != nil {
		return err
	}
	defer closeStore()

	ready := map[string]handlers.Pinger{"store": users}

	notifier, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	limiter, closeLimiter := buildLimiter(startCtx, cfg, log)
	defer closeLimiter()

	svc := accounts.NewService(accounts.Deps{
		Store:    users,
		Tokens:   auth.NewManager(cfg.JWTSecret, cfg.TokenTTL()),
		Vault:    security.NewVault(cfg.BcryptCost),
		Notifier: notifier,
		Metrics:  prom,
		Logger:   log,
	})

	if _, err := svc.EnsureAccount(startCtx, accounts.RegisterInput{
		UserName: cfg.SeedUserName,
		Email:    cfg.SeedEmail,
		Password: cfg.SeedPassword,
	}); err != nil {
		return fmt.Errorf("seed account: %w", err)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Env:          cfg.Env,
		Log:          log,
		Accounts:     svc,
		Prom:         prom,
		Limiter:      limiter,
		Ready:        ready,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,

		TrustedProxies: cfg.TrustedProxies,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	log.Info("server shutting down")

	ctx, cancelShutdown := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewUsersRepo(pool, prom), pool.Close, nil

	case config.StoreDriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath, prom)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	default:
		return memory.NewUsersRepo(), func() {}, nil
	}
}

// buildNotifier publishes registrations to NATS when configured and logs
// them otherwise. Either way sends go through the circuit breaker.
func buildNotifier(cfg config.Config, log *slog.Logger) (notifications.Notifier, func()) {
	var inner notifications.Notifier = notifications.NewLogNotifier(log)
	closeFn := func() {}

	if cfg.NATSURL != "" {
		nc, err := notifications.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Warn("nats unavailable, logging registrations instead", "err", err)
		} else {
			inner = notifications.NewNATSNotifier(nc, cfg.NATSSubject)
			closeFn = func() { _ = nc.Drain() }
		}
	}

	return notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout:          2 * time.Second,
		FailureThreshold: 3,
		Cooldown:         15 * time.Second,
	}), closeFn
}

// buildLimiter shares limits across replicas through redis when configured,
// falling back to per-process counting whenever redis errors.
func buildLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) (ratelimit.Limiter, func()) {
	if cfg.RateLimitRequests <= 0 {
		return nil, func() {}
	}

	local := ratelimit.NewMemory(cfg.RateLimitRequests, cfg.RateLimitWindow())

	if cfg.RedisAddr == "" {
		return local, func() {}
	}

	rc := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unreachable, local rate limits apply until it recovers", "err", err)
	}

	return ratelimit.Fallback{
		Primary:   ratelimit.NewRedis(rc.Raw(), cfg.RateLimitRequests, cfg.RateLimitWindow()),
		Secondary: local,
		OnError: func(ctx context.Context, err error) {
			log.WarnContext(ctx, "redis rate limiter failed, using local limits", "err", err)
		},
	}, func() { _ = rc.Close() }
}
