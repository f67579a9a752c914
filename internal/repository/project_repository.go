package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ProjectRepository handles database operations for projects.
//
// Writes to an existing project go through UpdateVersioned, which compares the
// version column so concurrent read-modify-write cycles cannot interleave.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

var projectSortFields = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"title":        "title",
	"status":       "status",
	"currentStage": stageOrderExpr(),
}

// stageOrderExpr ranks stored stage names by pipeline position so sorting
// follows the pipeline instead of the alphabet
func stageOrderExpr() string {
	var b strings.Builder
	b.WriteString("CASE current_stage")
	for _, stage := range domain.Stages() {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", stage.String(), int(stage))
	}
	b.WriteString(" ELSE -1 END")
	return b.String()
}

// Create inserts a new project at version 1
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project.Version == 0 {
		project.Version = 1
	}
	return r.db.WithContext(ctx).Omit("AssignedTeam.*").Create(project).Error
}

// GetByID loads a project with its developer and team
func (r *ProjectRepository) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("AssignedTeam", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id ASC")
		}).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateVersioned writes columns to the project only if its version still
// equals version, bumping it by one. ErrVersionConflict means another writer
// got there first.
func (r *ProjectRepository) UpdateVersioned(ctx context.Context, id uint, version int, columns map[string]interface{}) error {
	updates := make(map[string]interface{}, len(columns)+2)
	for k, v := range columns {
		updates[k] = v
	}
	updates["version"] = version + 1
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ReplaceTeam sets the project's team to exactly members
func (r *ProjectRepository) ReplaceTeam(ctx context.Context, projectID uint, members []domain.User) error {
	project := &domain.Project{BaseModel: domain.BaseModel{ID: projectID}}
	assoc := r.db.WithContext(ctx).Model(project).Omit("AssignedTeam.*").Association("AssignedTeam")
	if len(members) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(members)
}

// StatusCount is one row of a grouped count
type StatusCount struct {
	Status string
	Count  int64
}

// CountByStatus returns the number of projects per status
func (r *ProjectRepository) CountByStatus(ctx context.Context) (map[domain.ProjectStatus]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&domain.Project{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ProjectStatus]int64, len(rows))
	for _, row := range rows {
		counts[domain.ProjectStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func teamSubquery(db *gorm.DB, userID uint) *gorm.DB {
	return db.Table("project_team_members").Select("project_id").Where("user_id = ?", userID)
}

// ListInvolving returns every project userID can earn from: as developer,
// team member or originating fetcher
func (r *ProjectRepository) ListInvolving(ctx context.Context, userID uint) ([]domain.Project, error) {
	db := r.db.WithContext(ctx)
	var projects []domain.Project
	err := db.
		Preload("AssignedTeam").
		Where("assigned_to_id = ? OR created_by_id = ? OR id IN (?)", userID, userID, teamSubquery(db, userID)).
		Order("id ASC").
		Find(&projects).Error
	return projects, err
}

// ListForExecution returns projects where userID is the developer or on the team
func (r *ProjectRepository) ListForExecution(ctx context.Context, userID uint) ([]domain.Project, error) {
	db := r.db.WithContext(ctx)
	var projects []domain.Project
	err := db.
		Where("assigned_to_id = ? OR id IN (?)", userID, teamSubquery(db, userID)).
		Order("updated_at DESC").
		Find(&projects).Error
	return projects, err
}

// ListCreatedBy returns projects originated by userID
func (r *ProjectRepository) ListCreatedBy(ctx context.Context, userID uint) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).
		Where("created_by_id = ?", userID).
		Order("id ASC").
		Find(&projects).Error
	return projects, err
}

// ListByStatuses returns projects in any of statuses
func (r *ProjectRepository) ListByStatuses(ctx context.Context, statuses ...domain.ProjectStatus) ([]domain.Project, error) {
	var projects []domain.Project
	if len(statuses) == 0 {
		return projects, nil
	}
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&projects).Error
	return projects, err
}

// List returns a page of projects, optionally filtered by status
func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, status *domain.ProjectStatus, sort SortConfig) ([]domain.Project, int64, error) {
	var projects []domain.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Project{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := query.
		Preload("AssignedTo").
		Order(BuildOrderClause(sort, projectSortFields, "updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects).Error

	return projects, total, err
}
