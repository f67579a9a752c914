package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	"github.com/straye-as/pipeline-api/internal/http/router"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	db      *gorm.DB
	handler http.Handler
	tokens  *auth.JWTValidator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		App:       config.AppConfig{Name: "pipeline-test", Environment: "test"},
		Auth:      config.AuthConfig{JWTSecret: "router-test-secret", Issuer: "pipeline-test", TokenTTL: 600},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{ContentTypeNosniff: true, FrameOptions: "DENY"},
		Workflow:  config.WorkflowConfig{MaxRetries: 5, RetryBaseMillis: 1},
		Cache: config.CacheConfig{TTL: config.CacheTTLConfig{
			AdminStatusCounts: 60, AdminLeads: 60, AdminEarnings: 60, AdminDevelopers: 60,
			FetcherEarnings: 60, ExecutionProjects: 60, ProjectUpdates: 60, ProjectLogs: 60,
		}},
	}

	memCache := cache.NewMemoryCache()
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db, log)
	clientRepo := repository.NewClientRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	updateRepo := repository.NewProjectUpdateRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	activities := service.NewActivityService(activityRepo, 0, log)
	invalidator := service.NewInvalidator(memCache, log)
	workflow := service.NewWorkflowService(projectRepo, userRepo, roleRepo, clientRepo, updateRepo,
		activities, invalidator, &cfg.Workflow, log, db)
	earnings := service.NewEarningsService(projectRepo, roleRepo, log)
	dashboard := service.NewDashboardService(projectRepo, leadRepo, roleRepo, updateRepo, activityRepo, memCache, &cfg.Cache.TTL, log)

	rt := router.NewRouter(cfg, log, auth.NewMiddleware(cfg, roleRepo, log), middleware.NewRateLimiter(&cfg.RateLimit, log), router.Handlers{
		Health:    handler.NewHealthHandler(db, nil, log),
		Project:   handler.NewProjectHandler(workflow, earnings, dashboard, log),
		Dashboard: handler.NewDashboardHandler(dashboard, log),
		Earnings:  handler.NewEarningsHandler(earnings, log),
		Role:      handler.NewRoleHandler(service.NewRoleService(roleRepo, activities, invalidator, log), log),
		Client:    handler.NewClientHandler(service.NewClientService(clientRepo, userRepo, roleRepo, activities, invalidator, log), log),
	})

	return &testServer{db: db, handler: rt.Setup(), tokens: auth.NewJWTValidator(&cfg.Auth)}
}

func (s *testServer) do(t *testing.T, user *domain.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := s.tokens.IssueToken(user.ID, user.Username)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[domain.HealthDTO](t, w).Status)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.do(t, nil, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	ready := decode[domain.HealthDTO](t, w)
	assert.Equal(t, "healthy", ready.Database)
	assert.Empty(t, ready.Cache)

	w = s.do(t, nil, http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "max_open_connections")
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, nil, http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_Me(t *testing.T) {
	s := newTestServer(t)
	dev := testutil.CreateUser(t, s.db, "dana", domain.RoleDeveloper, domain.RoleDesigner)

	w := s.do(t, dev, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[domain.ProfileDTO](t, w)
	assert.Equal(t, dev.ID, profile.UserID)
	assert.Equal(t, "dana", profile.Username)
	assert.ElementsMatch(t, []string{"developer", "designer"}, profile.Roles)
}

func TestAPI_ProjectWorkflow(t *testing.T) {
	s := newTestServer(t)
	pm := testutil.CreateUser(t, s.db, "pm", domain.RoleProjectManager)
	alice := testutil.CreateUser(t, s.db, "alice", domain.RoleDeveloper)
	bob := testutil.CreateUser(t, s.db, "bob", domain.RoleDesigner)
	client := testutil.CreateClient(t, s.db, "acme", pm.ID)

	// create
	w := s.do(t, pm, http.MethodPost, "/api/v1/projects", domain.CreateProjectRequest{ClientID: client.ID, Title: "Acme site"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.TransitionResultDTO](t, w)
	projectID := created.Project.ID
	assert.Equal(t, domain.ProjectStatusNew, created.Project.Status)
	base := fmt.Sprintf("/api/v1/projects/%d", projectID)

	// assign with one unparseable payment line
	w = s.do(t, pm, http.MethodPost, base+"/assign", domain.AssignProjectRequest{
		DeveloperID:          alice.ID,
		TeamIDs:              []uint{bob.ID},
		DeveloperPayout:      strPtr("3000"),
		AssignedPaymentsText: "alice:2500\nbadline",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assigned := decode[domain.TransitionResultDTO](t, w)
	assert.True(t, assigned.Changed)
	require.NotNil(t, assigned.Project.AssignedTo)
	assert.Equal(t, alice.ID, assigned.Project.AssignedTo.ID)
	require.Len(t, assigned.SkippedPaymentLines, 1)
	assert.Equal(t, 2, assigned.SkippedPaymentLines[0].Line)

	// the developer cannot advance
	w = s.do(t, alice, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, pm, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	advanced := decode[domain.TransitionResultDTO](t, w)
	assert.Equal(t, domain.StageLandingDev, advanced.Project.CurrentStage)

	// the developer submits for approval
	w = s.do(t, alice, http.MethodPatch, base+"/execution", domain.ExecutionUpdateRequest{SubmitForClientApproval: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StageClientApprovalLanding, decode[domain.TransitionResultDTO](t, w).Project.CurrentStage)

	// submitting again is an invalid transition
	w = s.do(t, alice, http.MethodPatch, base+"/execution", domain.ExecutionUpdateRequest{SubmitForClientApproval: true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrorTypeInvalidTransition, decode[domain.APIError](t, w).Type)

	// revert with an empty body
	w = s.do(t, pm, http.MethodPost, base+"/revert", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StageLandingDev, decode[domain.TransitionResultDTO](t, w).Project.CurrentStage)

	// releasing an unfinished project is rejected
	w = s.do(t, pm, http.MethodPost, base+"/release-payment", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// payout is visible to the developer
	w = s.do(t, alice, http.MethodGet, fmt.Sprintf("%s/payouts/%d", base, alice.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payout := decode[domain.PayoutDTO](t, w)
	assert.True(t, payout.Amount.Equal(decimal.NewFromInt(5500)), payout.Amount.String())

	// but not to a stranger
	w = s.do(t, bob, http.MethodGet, fmt.Sprintf("%s/payouts/%d", base, alice.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// feeds
	w = s.do(t, pm, http.MethodPost, base+"/updates", domain.PostUpdateRequest{Message: "Kickoff done"})
	assert.Equal(t, http.StatusForbidden, w.Code, "posting updates is for the team")

	w = s.do(t, alice, http.MethodPost, base+"/updates", domain.PostUpdateRequest{Message: "Landing page live", Links: " https://a.example.com \n\nhttps://b.example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[domain.ProjectUpdateDTO](t, w).Links, 2)

	w = s.do(t, bob, http.MethodGet, base+"/updates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]domain.ProjectUpdateDTO](t, w))

	w = s.do(t, pm, http.MethodGet, base+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]domain.ActivityLogDTO](t, w))
}

func TestAPI_Validation(t *testing.T) {
	s := newTestServer(t)
	pm := testutil.CreateUser(t, s.db, "pm", domain.RoleProjectManager)

	w := s.do(t, pm, http.MethodPost, "/api/v1/projects", domain.CreateProjectRequest{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[domain.APIError](t, w)
	assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
	assert.Contains(t, apiErr.Errors, "title")
	assert.Contains(t, apiErr.Errors, "clientId")

	w = s.do(t, pm, http.MethodPost, "/api/v1/projects/abc/advance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, pm, http.MethodPost, "/api/v1/projects/4242/advance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ListProjects(t *testing.T) {
	s := newTestServer(t)
	pm := testutil.CreateUser(t, s.db, "pm", domain.RoleProjectManager)
	for i := 0; i < 3; i++ {
		testutil.CreateProject(t, s.db, &domain.Project{Title: fmt.Sprintf("p%d", i), CreatedByID: pm.ID})
	}

	w := s.do(t, pm, http.MethodGet, "/api/v1/projects?page=1&pageSize=2&sortBy=title&sortOrder=asc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page struct {
		Data       []domain.ProjectDTO `json:"data"`
		Total      int64               `json:"total"`
		TotalPages int                 `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "p0", page.Data[0].Title)

	w = s.do(t, pm, http.MethodGet, "/api/v1/projects?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_DashboardAdminRequiresManagement(t *testing.T) {
	s := newTestServer(t)
	pm := testutil.CreateUser(t, s.db, "pm", domain.RoleProjectManager)
	dev := testutil.CreateUser(t, s.db, "dev", domain.RoleDeveloper)
	testutil.CreateProject(t, s.db, &domain.Project{CreatedByID: pm.ID})

	w := s.do(t, dev, http.MethodGet, "/api/v1/dashboard/admin/status-counts", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, pm, http.MethodGet, "/api/v1/dashboard/admin/status-counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[domain.CountsDTO](t, w)
	assert.Equal(t, int64(1), counts.Total)
	assert.Equal(t, int64(1), counts.Counts[string(domain.ProjectStatusNew)])

	w = s.do(t, pm, http.MethodGet, "/api/v1/dashboard/admin/developers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	devs := decode[[]domain.UserDTO](t, w)
	require.Len(t, devs, 1)
	assert.Equal(t, "dev", devs[0].Username)

	w = s.do(t, dev, http.MethodGet, "/api/v1/dashboard/execution/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_EarningsAndRoles(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.db, "root", domain.RoleAdmin)
	dev := testutil.CreateUser(t, s.db, "dev", domain.RoleDeveloper)

	w := s.do(t, dev, http.MethodGet, "/api/v1/me/earnings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[domain.EarningsSummaryDTO](t, w)
	assert.True(t, summary.Total.IsZero())
	assert.Empty(t, summary.Lines)

	w = s.do(t, dev, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/earnings", admin.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// only admins manage roles
	w = s.do(t, dev, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/roles", dev.ID), domain.RoleRequest{Role: "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, admin, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/roles", dev.ID), domain.RoleRequest{Role: "seo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[domain.ProfileDTO](t, w).Roles, "seo")

	w = s.do(t, admin, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/roles/seo", dev.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode[domain.ProfileDTO](t, w).Roles, "seo")

	// the last admin stays
	w = s.do(t, admin, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/roles/admin", admin.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_ClientLinking(t *testing.T) {
	s := newTestServer(t)
	pm := testutil.CreateUser(t, s.db, "pm", domain.RoleProjectManager)
	owner := testutil.CreateUser(t, s.db, "owner")
	client := testutil.CreateClient(t, s.db, "bakery", pm.ID)
	path := fmt.Sprintf("/api/v1/clients/%d/user", client.ID)

	w := s.do(t, pm, http.MethodPut, path, domain.LinkClientUserRequest{UserID: owner.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	linked := decode[domain.ClientDTO](t, w)
	require.NotNil(t, linked.User)
	assert.Equal(t, owner.ID, linked.User.ID)
	assert.True(t, testutil.LoadProfile(t, s.db, owner.ID).Holds(domain.RoleClient))

	w = s.do(t, pm, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[domain.ClientDTO](t, w).User)

	w = s.do(t, pm, http.MethodGet, "/api/v1/clients/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func strPtr(s string) *string { return &s }
