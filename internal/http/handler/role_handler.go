package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type RoleHandler struct {
	roleService *service.RoleService
	logger      *zap.Logger
}

func NewRoleHandler(roleService *service.RoleService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
		logger:      logger,
	}
}

// Me godoc
// @Summary Caller's profile
// @Tags Roles
// @Produce json
// @Success 200 {object} domain.ProfileDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /me [get]
func (h *RoleHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok || user.Profile == nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProfileDTO(user.Profile))
}

// GetProfile godoc
// @Summary A user's roles
// @Tags Roles
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} domain.ProfileDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id}/roles [get]
func (h *RoleHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.roleService.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProfileDTO(profile))
}

// AddRole godoc
// @Summary Grant a role
// @Description Adding a role the user already holds is a no-op. Unknown role names are rejected.
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body domain.RoleRequest true "Role"
// @Success 200 {object} domain.ProfileDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id}/roles [post]
func (h *RoleHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.RoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	profile, err := h.roleService.AddRole(r.Context(), id, req.Role)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProfileDTO(profile))
}

// RemoveRole godoc
// @Summary Revoke a role
// @Tags Roles
// @Produce json
// @Param id path int true "User ID"
// @Param role path string true "Role name"
// @Success 200 {object} domain.ProfileDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id}/roles/{role} [delete]
func (h *RoleHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.roleService.RemoveRole(r.Context(), id, chi.URLParam(r, "role"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToProfileDTO(profile))
}
