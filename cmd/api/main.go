package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/pipeline-api/docs"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	"github.com/straye-as/pipeline-api/internal/http/router"
	"github.com/straye-as/pipeline-api/internal/jobs"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// @title Straye Pipeline API
// @version 1.0
// @description Project pipeline, payout ledger and dashboards for the agency workflow

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("Database schema migrated", zap.String("driver", cfg.Database.Driver))
	}

	// Cache backend
	var (
		aggregateCache cache.Cache
		memCache       *cache.MemoryCache
		cachePinger    handler.Pinger
	)
	switch cfg.Cache.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redisCache := cache.NewRedisCache(client, cfg.Cache.KeyPrefix)
		aggregateCache, cachePinger = redisCache, redisCache
		log.Info("Using Redis cache", zap.String("addr", cfg.Redis.Addr))
	default:
		memCache = cache.NewMemoryCache()
		aggregateCache = memCache
		log.Info("Using in-memory cache")
	}

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db, log)
	clientRepo := repository.NewClientRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	updateRepo := repository.NewProjectUpdateRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Services
	activities := service.NewActivityService(activityRepo, cfg.Workflow.ActivityTimeout(), log)
	invalidator := service.NewInvalidator(aggregateCache, log)
	workflowService := service.NewWorkflowService(projectRepo, userRepo, roleRepo, clientRepo, updateRepo,
		activities, invalidator, &cfg.Workflow, log, db)
	earningsService := service.NewEarningsService(projectRepo, roleRepo, log)
	dashboardService := service.NewDashboardService(projectRepo, leadRepo, roleRepo, updateRepo, activityRepo,
		aggregateCache, &cfg.Cache.TTL, log)
	roleService := service.NewRoleService(roleRepo, activities, invalidator, log)
	clientService := service.NewClientService(clientRepo, userRepo, roleRepo, activities, invalidator, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, roleRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, authMiddleware, rateLimiter, router.Handlers{
		Health:    handler.NewHealthHandler(db, cachePinger, log),
		Project:   handler.NewProjectHandler(workflowService, earningsService, dashboardService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Earnings:  handler.NewEarningsHandler(earningsService, log),
		Role:      handler.NewRoleHandler(roleService, log),
		Client:    handler.NewClientHandler(clientService, log),
	})

	// Background jobs. Redis expires keys natively, so only the memory cache is swept.
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled && memCache != nil {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterCacheSweep(scheduler, memCache, cfg.Jobs.CacheSweepCron, log); err != nil {
			log.Error("Failed to register cache sweep job", zap.Error(err))
		} else {
			scheduler.Start()
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(rt.Setup(), cfg.Server.RequestTimeoutDuration(), "request timed out"),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
