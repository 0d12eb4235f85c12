package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"task-tracker/internal/config"
	"task-tracker/internal/database"
	"task-tracker/internal/flash"
	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/repositories"
	"task-tracker/internal/security"
	"task-tracker/internal/server"
	"task-tracker/internal/services"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newApp(cfg)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stopJanitor := context.WithCancel(context.Background())
	if app.limiter != nil {
		go app.limiter.Run(ctx, cfg.RateLimit.CleanupInterval)
	}

	go func() {
		slog.Info("Task tracker listening", "addr", app.server.Addr, "environment", cfg.Server.Environment)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"task-tracker": func(ctx context.Context) error {
				slog.Info("Graceful shutdown initiated")
				stopJanitor()
				return app.shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	slog.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

type app struct {
	server  *http.Server
	pool    *database.DatabasePool
	notices *flash.RedisStore
	limiter *middleware.RateLimiter
}

func newApp(cfg *config.Config) (*app, error) {
	pool, err := database.NewDatabasePool(database.PoolConfigFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	monitoring.RegisterHealthCheck("database", pool.HealthContext)
	monitoring.RegisterStatsSource("database", pool.Stats)

	keys, err := security.DeriveKeys(cfg.Security.SecretKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &app{pool: pool}

	notices, err := a.noticeStore(cfg, keys)
	if err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
	}

	router := server.NewRouter(server.Dependencies{
		Config:  cfg,
		Tasks:   services.NewTaskService(repositories.NewTaskRepository(pool.DB)),
		Notices: notices,
		Keys:    keys,
		Limiter: a.limiter,
	})

	a.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func (a *app) noticeStore(cfg *config.Config, keys *security.Keys) (flash.Store, error) {
	options := flash.CookieOptions{TTL: cfg.Notices.TTL, Secure: cfg.Security.CookieSecure}

	if cfg.Notices.Store != "redis" {
		return flash.NewCookieStore(keys.Notices, options)
	}

	client := flash.NewRedisClient(&flash.RedisConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	store := flash.NewRedisStore(client, flash.NewBreaker(nil), options)
	monitoring.RegisterHealthCheck("redis", store.Health)
	monitoring.RegisterStatsSource("redis", store.Stats)
	a.notices = store

	slog.Info("Using Redis notice store", "addr", cfg.GetRedisAddr())
	return store, nil
}

// shutdown stops accepting requests, then releases the notice store and the
// database.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.notices != nil {
		if err := a.notices.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.pool.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
