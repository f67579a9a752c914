package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/straye-as/pipeline-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health    *handler.HealthHandler
	Project   *handler.ProjectHandler
	Dashboard *handler.DashboardHandler
	Earnings  *handler.EarningsHandler
	Role      *handler.RoleHandler
	Client    *handler.ClientHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health probes
	r.Get("/health", rt.handlers.Health.Live)
	r.Get("/health/db", rt.handlers.Health.Database)
	r.Get("/health/ready", rt.handlers.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(middleware.TagUser)
		r.Use(rt.rateLimiter.Limit)

		r.Get("/me", rt.handlers.Role.Me)
		r.Get("/me/earnings", rt.handlers.Earnings.Mine)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/earnings", rt.handlers.Earnings.ForUser)
			r.Get("/roles", rt.handlers.Role.GetProfile)
			r.Post("/roles", rt.handlers.Role.AddRole)
			r.Delete("/roles/{role}", rt.handlers.Role.RemoveRole)
		})

		r.Route("/clients/{id}", func(r chi.Router) {
			r.Get("/", rt.handlers.Client.GetByID)
			r.Put("/user", rt.handlers.Client.LinkUser)
			r.Delete("/user", rt.handlers.Client.UnlinkUser)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", rt.handlers.Project.List)
			r.Post("/", rt.handlers.Project.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.handlers.Project.GetByID)

				// Workflow
				r.Post("/advance", rt.handlers.Project.Advance)
				r.Post("/revert", rt.handlers.Project.Revert)
				r.Post("/assign", rt.handlers.Project.Assign)
				r.Patch("/execution", rt.handlers.Project.ExecutionUpdate)
				r.Post("/release-payment", rt.handlers.Project.ReleasePayment)
				r.Patch("/financials", rt.handlers.Project.UpdateFinancials)
				r.Patch("/preview-links", rt.handlers.Project.UpdatePreviewLinks)

				// Feeds
				r.Get("/updates", rt.handlers.Project.ListUpdates)
				r.Post("/updates", rt.handlers.Project.PostUpdate)
				r.Get("/logs", rt.handlers.Project.ListLogs)

				r.Get("/payouts/{userId}", rt.handlers.Project.PayoutFor)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(auth.ProjectManagementRoles...))
				r.Get("/admin/status-counts", rt.handlers.Dashboard.StatusCounts)
				r.Get("/admin/leads", rt.handlers.Dashboard.LeadsOverview)
				r.Get("/admin/earnings", rt.handlers.Dashboard.AgencyEarnings)
				r.Get("/admin/developers", rt.handlers.Dashboard.Developers)
			})
			r.Get("/fetcher/earnings", rt.handlers.Dashboard.FetcherEarnings)
			r.Get("/execution/projects", rt.handlers.Dashboard.ExecutionProjects)
		})
	})

	return r
}
