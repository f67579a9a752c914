package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityRepository handles the append-only activity log.
//
// Reads are served by idx_activity_entity (entity_type, entity_id).
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	return r.db.WithContext(ctx).Omit("PerformedBy").Create(entry).Error
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uint) (*domain.ActivityLog, error) {
	var entry domain.ActivityLog
	if err := r.db.WithContext(ctx).Preload("PerformedBy").First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRecentForEntity returns the newest entries for one entity
func (r *ActivityRepository) ListRecentForEntity(ctx context.Context, entityType string, entityID uint, limit int) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Preload("PerformedBy").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ListByAction returns entries with the given action, newest first
func (r *ActivityRepository) ListByAction(ctx context.Context, action string, limit int) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Where("action = ?", action).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
