package service_test

import (
	"context"
	"testing"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	cache     *cache.MemoryCache
	workflow  *service.WorkflowService
	earnings  *service.EarningsService
	dashboard *service.DashboardService
	roles     *service.RoleService
	clients   *service.ClientService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	memCache := cache.NewMemoryCache()

	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db, logger)
	clientRepo := repository.NewClientRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	updateRepo := repository.NewProjectUpdateRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	activities := service.NewActivityService(activityRepo, 0, logger)
	invalidator := service.NewInvalidator(memCache, logger)
	workflowCfg := &config.WorkflowConfig{MaxRetries: 5, RetryBaseMillis: 1}
	ttl := &config.CacheTTLConfig{
		AdminStatusCounts: 300,
		AdminLeads:        300,
		AdminEarnings:     600,
		AdminDevelopers:   1800,
		FetcherEarnings:   300,
		ExecutionProjects: 180,
		ProjectUpdates:    120,
		ProjectLogs:       120,
	}

	return &fixture{
		db:    db,
		cache: memCache,
		workflow: service.NewWorkflowService(projectRepo, userRepo, roleRepo, clientRepo, updateRepo,
			activities, invalidator, workflowCfg, logger, db),
		earnings:  service.NewEarningsService(projectRepo, roleRepo, logger),
		dashboard: service.NewDashboardService(projectRepo, leadRepo, roleRepo, updateRepo, activityRepo, memCache, ttl, logger),
		roles:     service.NewRoleService(roleRepo, activities, invalidator, logger),
		clients:   service.NewClientService(clientRepo, userRepo, roleRepo, activities, invalidator, logger),
	}
}

// as returns a context authenticated as user, with roles loaded fresh
func (f *fixture) as(t *testing.T, user *domain.User) context.Context {
	t.Helper()
	return auth.WithUserContext(context.Background(), testutil.UserContext(t, f.db, user))
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	var v interface{}
	found, err := f.cache.Get(context.Background(), key, &v)
	if err != nil {
		t.Fatalf("cache get %s: %v", key, err)
	}
	return found
}

func (f *fixture) reload(t *testing.T, id uint) *domain.Project {
	t.Helper()
	p, err := repository.NewProjectRepository(f.db).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload project %d: %v", id, err)
	}
	return p
}

func (f *fixture) activityCount(t *testing.T, projectID uint, action string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&domain.ActivityLog{}).
		Where("entity_type = ? AND entity_id = ? AND action = ?", service.EntityProject, projectID, action).
		Count(&n).Error; err != nil {
		t.Fatalf("count activity: %v", err)
	}
	return n
}

func uintPtr(v uint) *uint {
	return &v
}

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
