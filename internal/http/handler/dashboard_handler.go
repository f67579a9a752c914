package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// StatusCounts godoc
// @Summary Project counts per status
// @Description Counts of new, in_progress, completed and payment_done projects. Cached until a status changes.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.CountsDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/admin/status-counts [get]
func (h *DashboardHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.dashboardService.AdminStatusCounts(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// LeadsOverview godoc
// @Summary Lead counts per status
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.CountsDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/admin/leads [get]
func (h *DashboardHandler) LeadsOverview(w http.ResponseWriter, r *http.Request) {
	counts, err := h.dashboardService.AdminLeadsOverview(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// AgencyEarnings godoc
// @Summary Agency profit
// @Description Agency profit of payment_done projects as total, completed but unreleased projects as pending.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.AmountSplitDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/admin/earnings [get]
func (h *DashboardHandler) AgencyEarnings(w http.ResponseWriter, r *http.Request) {
	split, err := h.dashboardService.AdminAgencyEarnings(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, split)
}

// Developers godoc
// @Summary Users holding the developer role
// @Tags Dashboard
// @Produce json
// @Success 200 {array} domain.UserDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/admin/developers [get]
func (h *DashboardHandler) Developers(w http.ResponseWriter, r *http.Request) {
	users, err := h.dashboardService.DevelopersList(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// FetcherEarnings godoc
// @Summary Caller's fetcher commission
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.AmountSplitDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/fetcher/earnings [get]
func (h *DashboardHandler) FetcherEarnings(w http.ResponseWriter, r *http.Request) {
	split, err := h.dashboardService.FetcherEarnings(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, split)
}

// ExecutionProjects godoc
// @Summary Caller's execution projects
// @Description Projects the caller develops or staffs, split into ongoing and completed.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.ExecutionProjectsDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard/execution/projects [get]
func (h *DashboardHandler) ExecutionProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.dashboardService.ExecutionProjects(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}
