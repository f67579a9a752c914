package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pinger is a dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db     *gorm.DB
	cache  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a health handler. cache may be nil when the
// in-process cache is used.
func NewHealthHandler(db *gorm.DB, cache Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthDTO
// @Router /health [get]
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.HealthDTO{Status: "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks the database and, when Redis backs the cache, Redis.
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthDTO
// @Failure 503 {object} domain.HealthDTO
// @Router /health/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	dto := domain.HealthDTO{Status: "healthy", Database: "healthy"}
	status := http.StatusOK

	if err := database.Ping(ctx, h.db); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		dto.Status, dto.Database = "unhealthy", "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		dto.Cache = "healthy"
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Error("cache health check failed", zap.Error(err))
			dto.Status, dto.Cache = "unhealthy", "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, dto)
}

// Database godoc
// @Summary Database pool statistics
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} domain.APIError
// @Router /health/db [get]
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := database.Ping(ctx, h.db); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	stats, err := database.Stats(h.db)
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		},
	})
}
