// Package server assembles the gin engine serving the task pages and the
// operational endpoints.
package server

import (
	"time"

	"task-tracker/internal/config"
	"task-tracker/internal/flash"
	"task-tracker/internal/handlers"
	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/security"
	"task-tracker/internal/services"
	"task-tracker/internal/web"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Config  *config.Config
	Tasks   services.TaskService
	Notices flash.Store
	Keys    *security.Keys
	// Limiter is optional; nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), middleware.RecoveryWithLog(), monitoring.MetricsMiddleware())
	if deps.Limiter != nil {
		router.Use(middleware.RateLimit(deps.Limiter))
	}
	router.SetHTMLTemplate(web.MustTemplates())

	ops := router.Group("")
	ops.Use(cors.New(corsConfig(deps.Config.CORS.AllowedOrigins)))
	{
		ops.GET("/health", monitoring.HealthHandler())
		ops.GET("/ready", monitoring.ReadinessHandler())
		ops.GET("/live", monitoring.LivenessHandler())
		ops.GET("/metrics", monitoring.MetricsHandler())
	}

	pages := router.Group("")
	pages.Use(middleware.CSRF(middleware.CSRFOptions{
		Key:    deps.Keys.CSRF,
		Secure: deps.Config.Security.CookieSecure,
	}))
	tasks := handlers.NewTaskHandler(deps.Tasks, deps.Notices)
	tasks.Register(pages)
	router.NoRoute(tasks.NotFound)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Accept", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
