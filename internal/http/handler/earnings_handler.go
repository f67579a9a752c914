package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type EarningsHandler struct {
	earningsService *service.EarningsService
	logger          *zap.Logger
}

func NewEarningsHandler(earningsService *service.EarningsService, logger *zap.Logger) *EarningsHandler {
	return &EarningsHandler{
		earningsService: earningsService,
		logger:          logger,
	}
}

func (h *EarningsHandler) summarize(w http.ResponseWriter, r *http.Request, userID uint) {
	summary, err := h.earningsService.EarningsSummary(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToEarningsSummaryDTO(userID, summary))
}

// Mine godoc
// @Summary Caller's earnings
// @Description Released earnings as total, completed but unreleased as pending, across every channel the caller earns on.
// @Tags Earnings
// @Produce json
// @Success 200 {object} domain.EarningsSummaryDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /me/earnings [get]
func (h *EarningsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	h.summarize(w, r, user.UserID)
}

// ForUser godoc
// @Summary A user's earnings
// @Tags Earnings
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} domain.EarningsSummaryDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id}/earnings [get]
func (h *EarningsHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.summarize(w, r, id)
}
