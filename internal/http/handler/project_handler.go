package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	workflow  *service.WorkflowService
	earnings  *service.EarningsService
	dashboard *service.DashboardService
	logger    *zap.Logger
}

func NewProjectHandler(workflow *service.WorkflowService, earnings *service.EarningsService, dashboard *service.DashboardService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		workflow:  workflow,
		earnings:  earnings,
		dashboard: dashboard,
		logger:    logger,
	}
}

func toTransitionResultDTO(result *service.TransitionResult) domain.TransitionResultDTO {
	return domain.TransitionResultDTO{
		Project:             mapper.ToProjectDTO(result.Project),
		Changed:             result.Changed,
		Message:             result.Message,
		SkippedPaymentLines: mapper.ToSkippedPaymentLineDTOs(result.SkippedPaymentLines),
	}
}

func (h *ProjectHandler) respondTransition(w http.ResponseWriter, status int, result *service.TransitionResult, err error) {
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, status, toTransitionResultDTO(result))
}

// List godoc
// @Summary List projects
// @Description Get paginated list of projects. Requires project management.
// @Tags Projects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(new, in_progress, completed, payment_done)
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, title, status, currentStage)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	page, pageSize = repository.NormalizePage(page, pageSize)

	var status *domain.ProjectStatus
	if s := q.Get("status"); s != "" {
		st := domain.ProjectStatus(s)
		status = &st
	}

	sort := repository.DefaultSortConfig()
	if sortBy := q.Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder := q.Get("sortOrder"); sortOrder != "" {
		sort.Order = repository.ParseSortOrder(sortOrder)
	}

	projects, total, err := h.workflow.ListProjects(r.Context(), page, pageSize, status, sort)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}
	respondJSON(w, http.StatusOK, mapper.ToPaginatedResponse(dtos, total, page, pageSize))
}

// Create godoc
// @Summary Create project
// @Description Open a project for a client. Requires a fetcher role.
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Project data"
// @Success 201 {object} domain.TransitionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.CreateProject(r.Context(), &req)
	h.respondTransition(w, http.StatusCreated, result, err)
}

// GetByID godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := h.workflow.GetProject(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProjectDTO(project))
}

// Advance godoc
// @Summary Advance project stage
// @Description Move the project one stage forward. Reaching the final stage completes the project.
// @Tags Workflow
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/advance [post]
func (h *ProjectHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.workflow.AdvanceStage(r.Context(), id)
	h.respondTransition(w, http.StatusOK, result, err)
}

// Revert godoc
// @Summary Revert project stage
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.RevertStageRequest false "Optional note"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/revert [post]
func (h *ProjectHandler) Revert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.RevertStageRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.RevertStage(r.Context(), id, &req)
	h.respondTransition(w, http.StatusOK, result, err)
}

// Assign godoc
// @Summary Assign developer and team
// @Description Assign the developer, the execution team and payout amounts. Payment lines that cannot be parsed are reported, not applied.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.AssignProjectRequest true "Assignment"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/assign [post]
func (h *ProjectHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.AssignProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.Assign(r.Context(), id, &req)
	h.respondTransition(w, http.StatusOK, result, err)
}

// ExecutionUpdate godoc
// @Summary Update execution status
// @Description Report progress, deliverables or submit for client approval. Team members only.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.ExecutionUpdateRequest true "Execution update"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/execution [patch]
func (h *ProjectHandler) ExecutionUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.ExecutionUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.UpdateExecutionStatus(r.Context(), id, &req)
	h.respondTransition(w, http.StatusOK, result, err)
}

// ReleasePayment godoc
// @Summary Release payment
// @Description Mark a completed project as paid. Releasing twice is a no-op.
// @Tags Workflow
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/release-payment [post]
func (h *ProjectHandler) ReleasePayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.workflow.ReleasePayment(r.Context(), id)
	h.respondTransition(w, http.StatusOK, result, err)
}

// UpdateFinancials godoc
// @Summary Update client financials
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.UpdateFinancialsRequest true "Financial fields"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/financials [patch]
func (h *ProjectHandler) UpdateFinancials(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.UpdateFinancialsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.UpdateFinancials(r.Context(), id, &req)
	h.respondTransition(w, http.StatusOK, result, err)
}

// UpdatePreviewLinks godoc
// @Summary Update preview links
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.UpdatePreviewLinksRequest true "Links and notes"
// @Success 200 {object} domain.TransitionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/preview-links [patch]
func (h *ProjectHandler) UpdatePreviewLinks(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.UpdatePreviewLinksRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.workflow.UpdatePreviewLinks(r.Context(), id, &req)
	h.respondTransition(w, http.StatusOK, result, err)
}

// PostUpdate godoc
// @Summary Post project update
// @Tags Updates
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.PostUpdateRequest true "Update"
// @Success 201 {object} domain.ProjectUpdateDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/updates [post]
func (h *ProjectHandler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.PostUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	update, err := h.workflow.PostUpdate(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToProjectUpdateDTO(update))
}

// ListUpdates godoc
// @Summary Recent project updates
// @Tags Updates
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} domain.ProjectUpdateDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/updates [get]
func (h *ProjectHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	updates, err := h.dashboard.ProjectUpdates(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updates)
}

// ListLogs godoc
// @Summary Recent project activity
// @Tags Updates
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} domain.ActivityLogDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/logs [get]
func (h *ProjectHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	logs, err := h.dashboard.ProjectLogs(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// PayoutFor godoc
// @Summary Payout owed to a user
// @Tags Earnings
// @Produce json
// @Param id path int true "Project ID"
// @Param userId path int true "User ID"
// @Success 200 {object} domain.PayoutDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /projects/{id}/payouts/{userId} [get]
func (h *ProjectHandler) PayoutFor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseID(r, "userId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := h.earnings.PayoutFor(r.Context(), id, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.PayoutDTO{ProjectID: id, UserID: userID, Amount: amount})
}
