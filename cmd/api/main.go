package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/noltfinance/nolt-ops-api/internal/config"
	"github.com/noltfinance/nolt-ops-api/internal/database"
	"github.com/noltfinance/nolt-ops-api/internal/handlers"
	"github.com/noltfinance/nolt-ops-api/internal/jobs"
	"github.com/noltfinance/nolt-ops-api/internal/middleware"
	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/services"
	"github.com/noltfinance/nolt-ops-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, worker, cfg)

	scheduleJobs(worker, svcs, cfg)

	h := handlers.NewHandlers(svcs)

	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Check)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		protected.Use(middleware.RequireKnownRole())
		{
			protected.GET("/me", h.Auth.Me)

			// Applications: visibility and per-action authorization live in
			// the policy layer, so every known role may reach these routes
			applications := protected.Group("/applications")
			{
				applications.GET("", h.Application.Index)
				applications.GET("/export", h.Application.Export)
				applications.GET("/stats", h.Application.Stats)
				applications.GET("/:id", h.Application.Show)
				applications.GET("/:id/actions", h.Application.Actions)
				applications.GET("/:id/audit_log", h.Application.AuditLog)
				applications.GET("/:id/certificate", h.Application.Certificate)
				applications.POST("/:id/transitions", h.Application.Transition)
				applications.POST("/:id/reveal", h.Application.Reveal)
				applications.PATCH("/:id/details", h.Application.UpdateDetails)

				applications.POST("/:id/reassign",
					middleware.RequireRole(models.RoleSalesManager),
					h.Application.Reassign)

				applications.POST("",
					middleware.RequireRole(models.RoleSalesOfficer, models.RoleSalesTeamLead),
					h.Application.Create)
			}

			// Notifications (personal)
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.POST("/:id/mark_as_read", h.Notification.MarkAsRead)
			}

			// Core system sections (super admin only)
			admin := protected.Group("")
			admin.Use(middleware.RequireSuperAdmin())
			{
				admin.GET("/users", h.User.Index)
				admin.POST("/users", h.User.Create)
				admin.GET("/users/:id", h.User.Show)
				admin.PUT("/users/:id", h.User.Update)
				admin.DELETE("/users/:id", h.User.Delete)
				admin.POST("/users/:id/suspend", h.User.Suspend)
				admin.POST("/users/:id/activate", h.User.Activate)

				admin.GET("/security/logs", h.Audit.SecurityLog)
				admin.GET("/security/sensitive_access", h.Audit.SensitiveAccess)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	// Remind owners about applications idling in their queue
	interval := time.Duration(cfg.StaleQueueCheckInterval) * time.Hour
	worker.ScheduleEvery(interval, func(ctx context.Context) error {
		logger.Info("[Job] Checking stale application queues...")
		return svcs.Application.RemindStaleQueues(ctx, cfg.StaleQueueDays)
	})

	logger.Info("Scheduled recurring jobs")
}
