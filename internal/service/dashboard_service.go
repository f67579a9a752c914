package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feed sizes of the per-project listings
const (
	RecentUpdatesLimit = 5
	RecentLogsLimit    = 10
)

// DashboardService serves the aggregate reads behind the dashboards. Every
// read goes through the cache; writers invalidate through Invalidator.
type DashboardService struct {
	projectRepo  *repository.ProjectRepository
	leadRepo     *repository.LeadRepository
	roleRepo     *repository.RoleRepository
	updateRepo   *repository.ProjectUpdateRepository
	activityRepo *repository.ActivityRepository
	cache        cache.Cache
	ttl          config.CacheTTLConfig
	logger       *zap.Logger
}

func NewDashboardService(
	projectRepo *repository.ProjectRepository,
	leadRepo *repository.LeadRepository,
	roleRepo *repository.RoleRepository,
	updateRepo *repository.ProjectUpdateRepository,
	activityRepo *repository.ActivityRepository,
	c cache.Cache,
	ttl *config.CacheTTLConfig,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		projectRepo:  projectRepo,
		leadRepo:     leadRepo,
		roleRepo:     roleRepo,
		updateRepo:   updateRepo,
		activityRepo: activityRepo,
		cache:        c,
		ttl:          *ttl,
		logger:       logger,
	}
}

// AdminStatusCounts returns the number of projects per status
func (s *DashboardService) AdminStatusCounts(ctx context.Context) (domain.CountsDTO, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return domain.CountsDTO{}, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.KeyAdminStatusCounts, s.ttl.AdminStatusCountsTTL(),
		func(ctx context.Context) (domain.CountsDTO, error) {
			counts, err := s.projectRepo.CountByStatus(ctx)
			if err != nil {
				return domain.CountsDTO{}, mapper.FormatError("project status counts", "load", err)
			}
			dto := domain.CountsDTO{Counts: make(map[string]int64, len(domain.ProjectStatuses))}
			for _, status := range domain.ProjectStatuses {
				dto.Counts[string(status)] = counts[status]
				dto.Total += counts[status]
			}
			return dto, nil
		})
}

// AdminLeadsOverview returns the number of leads per status
func (s *DashboardService) AdminLeadsOverview(ctx context.Context) (domain.CountsDTO, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return domain.CountsDTO{}, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.KeyAdminLeads, s.ttl.AdminLeadsTTL(),
		func(ctx context.Context) (domain.CountsDTO, error) {
			counts, err := s.leadRepo.CountByStatus(ctx)
			if err != nil {
				return domain.CountsDTO{}, mapper.FormatError("lead counts", "load", err)
			}
			dto := domain.CountsDTO{Counts: make(map[string]int64, len(domain.LeadStatuses))}
			for _, status := range domain.LeadStatuses {
				dto.Counts[string(status)] = counts[status]
				dto.Total += counts[status]
			}
			return dto, nil
		})
}

// AdminAgencyEarnings splits agency profit into released and pending
func (s *DashboardService) AdminAgencyEarnings(ctx context.Context) (domain.AmountSplitDTO, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return domain.AmountSplitDTO{}, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.KeyAdminEarnings, s.ttl.AdminEarningsTTL(),
		func(ctx context.Context) (domain.AmountSplitDTO, error) {
			projects, err := s.projectRepo.ListByStatuses(ctx, domain.ProjectStatusCompleted, domain.ProjectStatusPaymentDone)
			if err != nil {
				return domain.AmountSplitDTO{}, mapper.FormatError("agency earnings", "load", err)
			}
			return mapper.ToAmountSplitDTO(ledger.AgencyProfit(projects)), nil
		})
}

// DevelopersList returns every user holding the developer role
func (s *DashboardService) DevelopersList(ctx context.Context) ([]domain.UserDTO, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return nil, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.KeyAdminDevelopers, s.ttl.AdminDevelopersTTL(),
		func(ctx context.Context) ([]domain.UserDTO, error) {
			users, err := s.roleRepo.ListUsersWithRole(ctx, domain.RoleDeveloper)
			if err != nil {
				return nil, mapper.FormatError("developers", "list", err)
			}
			return mapper.ToUserDTOs(users), nil
		})
}

// FetcherEarnings returns the caller's commission on projects they originated
func (s *DashboardService) FetcherEarnings(ctx context.Context) (domain.AmountSplitDTO, error) {
	actor, err := requireRoles(ctx, "fetcher role required", auth.FetcherRoles...)
	if err != nil {
		return domain.AmountSplitDTO{}, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.FetcherEarningsKey(actor.UserID), s.ttl.FetcherEarningsTTL(),
		func(ctx context.Context) (domain.AmountSplitDTO, error) {
			projects, err := s.projectRepo.ListCreatedBy(ctx, actor.UserID)
			if err != nil {
				return domain.AmountSplitDTO{}, mapper.FormatError("fetcher earnings", "load", err)
			}
			return mapper.ToAmountSplitDTO(ledger.FetcherCommission(actor.UserID, projects)), nil
		})
}

// ExecutionProjects lists the caller's projects, split into ongoing and completed
func (s *DashboardService) ExecutionProjects(ctx context.Context) (domain.ExecutionProjectsDTO, error) {
	actor, err := requireRoles(ctx, "execution role required", auth.ExecutionRoles...)
	if err != nil {
		return domain.ExecutionProjectsDTO{}, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.ExecutionProjectsKey(actor.UserID), s.ttl.ExecutionProjectsTTL(),
		func(ctx context.Context) (domain.ExecutionProjectsDTO, error) {
			projects, err := s.projectRepo.ListForExecution(ctx, actor.UserID)
			if err != nil {
				return domain.ExecutionProjectsDTO{}, mapper.FormatError("execution projects", "list", err)
			}
			dto := domain.ExecutionProjectsDTO{
				Ongoing:   []domain.ProjectSummaryDTO{},
				Completed: []domain.ProjectSummaryDTO{},
			}
			for i := range projects {
				summary := mapper.ToProjectSummaryDTO(&projects[i])
				switch projects[i].Status {
				case domain.ProjectStatusCompleted, domain.ProjectStatusPaymentDone:
					dto.Completed = append(dto.Completed, summary)
				default:
					dto.Ongoing = append(dto.Ongoing, summary)
				}
			}
			return dto, nil
		})
}

func (s *DashboardService) visibleProject(ctx context.Context, projectID uint) error {
	actor, err := currentActor(ctx)
	if err != nil {
		return err
	}
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to load project: %w", err)
	}
	if !projectVisible(actor, project) {
		return fmt.Errorf("%w: not involved in project", ErrPermissionDenied)
	}
	return nil
}

// ProjectUpdates returns the most recent updates of a project
func (s *DashboardService) ProjectUpdates(ctx context.Context, projectID uint) ([]domain.ProjectUpdateDTO, error) {
	if err := s.visibleProject(ctx, projectID); err != nil {
		return nil, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.ProjectUpdatesKey(projectID), s.ttl.ProjectUpdatesTTL(),
		func(ctx context.Context) ([]domain.ProjectUpdateDTO, error) {
			updates, err := s.updateRepo.ListRecent(ctx, projectID, RecentUpdatesLimit)
			if err != nil {
				return nil, mapper.FormatError("project updates", "list", err)
			}
			dtos := make([]domain.ProjectUpdateDTO, len(updates))
			for i := range updates {
				dtos[i] = mapper.ToProjectUpdateDTO(&updates[i])
			}
			return dtos, nil
		})
}

// ProjectLogs returns the most recent activity entries of a project
func (s *DashboardService) ProjectLogs(ctx context.Context, projectID uint) ([]domain.ActivityLogDTO, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return nil, err
	}

	return cache.Remember(ctx, s.cache, s.logger, cache.ProjectLogsKey(projectID), s.ttl.ProjectLogsTTL(),
		func(ctx context.Context) ([]domain.ActivityLogDTO, error) {
			entries, err := s.activityRepo.ListRecentForEntity(ctx, EntityProject, projectID, RecentLogsLimit)
			if err != nil {
				return nil, mapper.FormatError("project logs", "list", err)
			}
			dtos := make([]domain.ActivityLogDTO, len(entries))
			for i := range entries {
				dtos[i] = mapper.ToActivityLogDTO(&entries[i])
			}
			return dtos, nil
		})
}
