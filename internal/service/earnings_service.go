package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EarningsService answers payout questions over the ledger
type EarningsService struct {
	projectRepo *repository.ProjectRepository
	roleRepo    *repository.RoleRepository
	logger      *zap.Logger
}

func NewEarningsService(projectRepo *repository.ProjectRepository, roleRepo *repository.RoleRepository, logger *zap.Logger) *EarningsService {
	return &EarningsService{
		projectRepo: projectRepo,
		roleRepo:    roleRepo,
		logger:      logger,
	}
}

// requireSelfOrManager lets users read their own money and project
// management read anyone's
func requireSelfOrManager(ctx context.Context, userID uint) (*auth.UserContext, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.UserID != userID && !auth.Authorize(actor.Profile, auth.ProjectManagementRoles...) {
		return nil, fmt.Errorf("%w: cannot view another user's earnings", ErrPermissionDenied)
	}
	return actor, nil
}

// EarningsSummary totals released and pending earnings of userID across every
// project they developed, staffed or originated
func (s *EarningsService) EarningsSummary(ctx context.Context, userID uint) (ledger.Summary, error) {
	if _, err := requireSelfOrManager(ctx, userID); err != nil {
		return ledger.Summary{}, err
	}

	profile, err := s.roleRepo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Summary{}, ErrUserNotFound
		}
		return ledger.Summary{}, fmt.Errorf("failed to load profile: %w", err)
	}

	projects, err := s.projectRepo.ListInvolving(ctx, userID)
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("failed to load projects: %w", err)
	}

	summary := ledger.Summarize(userID, profile, projects)
	s.logger.Debug("earnings summarized",
		zap.Uint("user_id", userID),
		zap.Int("projects", len(projects)),
		zap.String("total", summary.Total.String()),
		zap.String("pending", summary.Pending.String()))
	return summary, nil
}

// PayoutFor returns what projectID owes userID
func (s *EarningsService) PayoutFor(ctx context.Context, projectID, userID uint) (decimal.Decimal, error) {
	if _, err := requireSelfOrManager(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrProjectNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to load project: %w", err)
	}
	return ledger.PayoutFor(project, userID), nil
}

// projectVisible reports whether the caller may read project details
func projectVisible(actor *auth.UserContext, project *domain.Project) bool {
	return auth.Authorize(actor.Profile, auth.ProjectManagementRoles...) ||
		project.CreatedByID == actor.UserID ||
		project.IsInvolved(actor.UserID)
}
