package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stageRoles gates execution updates by the project's current stage.
// Stages not listed accept any team member.
var stageRoles = map[domain.Stage][]domain.RoleName{
	domain.StageDesign:        {domain.RoleDesigner},
	domain.StageLandingDev:    {domain.RoleDeveloper},
	domain.StageFullDev:       {domain.RoleDeveloper},
	domain.StageDeployment:    {domain.RoleDeveloper},
	domain.StageSEOGBPOngoing: {domain.RoleSEO, domain.RoleGBP},
}

// clientApprovalStages maps a development stage to the approval pause that follows it
var clientApprovalStages = map[domain.Stage]domain.Stage{
	domain.StageLandingDev: domain.StageClientApprovalLanding,
	domain.StageFullDev:    domain.StageClientApprovalFinal,
}

// TransitionResult is returned by every project mutation. Changed is false
// for no-ops such as advancing a project that is already final.
type TransitionResult struct {
	Project             *domain.Project
	Changed             bool
	Message             string
	SkippedPaymentLines []ledger.SkippedLine
}

type activityEntry struct {
	action string
	note   string
}

// change is what an operation writes to a project. An empty change is a no-op.
type change struct {
	columns     map[string]interface{}
	replaceTeam bool
	team        []domain.User
	update      *domain.ProjectUpdate
	activities  []activityEntry
	message     string
}

func (c *change) empty() bool {
	return len(c.columns) == 0 && !c.replaceTeam && c.update == nil
}

func noop(message string) *change {
	return &change{message: message}
}

type mutationOutcome struct {
	before  *domain.Project
	after   *domain.Project
	changed bool
	change  *change
}

// WorkflowService owns the project state machine: status, stage, developer
// and team, and the payout fields written on assignment
type WorkflowService struct {
	projectRepo *repository.ProjectRepository
	userRepo    *repository.UserRepository
	roleRepo    *repository.RoleRepository
	clientRepo  *repository.ClientRepository
	updateRepo  *repository.ProjectUpdateRepository
	activities  *ActivityService
	invalidator *Invalidator
	cfg         config.WorkflowConfig
	logger      *zap.Logger
	db          *gorm.DB
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	projectRepo *repository.ProjectRepository,
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	clientRepo *repository.ClientRepository,
	updateRepo *repository.ProjectUpdateRepository,
	activities *ActivityService,
	invalidator *Invalidator,
	cfg *config.WorkflowConfig,
	logger *zap.Logger,
	db *gorm.DB,
) *WorkflowService {
	return &WorkflowService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		clientRepo:  clientRepo,
		updateRepo:  updateRepo,
		activities:  activities,
		invalidator: invalidator,
		cfg:         *cfg,
		logger:      logger,
		db:          db,
	}
}

func currentActor(ctx context.Context) (*auth.UserContext, error) {
	actor, ok := auth.FromContext(ctx)
	if !ok || actor == nil {
		return nil, fmt.Errorf("%w: no authenticated user", ErrPermissionDenied)
	}
	return actor, nil
}

func requireRoles(ctx context.Context, what string, roles ...domain.RoleName) (*auth.UserContext, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.Authorize(actor.Profile, roles...) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, what)
	}
	return actor, nil
}

func requireProjectManagement(ctx context.Context) (*auth.UserContext, error) {
	return requireRoles(ctx, "project management role required", auth.ProjectManagementRoles...)
}

func snapshot(p *domain.Project) *domain.Project {
	cp := *p
	cp.AssignedTeam = append([]domain.User(nil), p.AssignedTeam...)
	return &cp
}

// mutate reads the project, lets apply decide the change and writes it with a
// version check, all in one transaction. A lost version race re-runs the whole
// cycle against fresh state.
func (s *WorkflowService) mutate(ctx context.Context, projectID uint, apply func(*domain.Project) (*change, error)) (*mutationOutcome, error) {
	var outcome *mutationOutcome

	maxRetries := s.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(s.cfg.RetryBase()))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		outcome = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			projects := repository.NewProjectRepository(tx)

			current, err := projects.GetByID(ctx, projectID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrProjectNotFound
				}
				return fmt.Errorf("failed to load project: %w", err)
			}
			before := snapshot(current)

			ch, err := apply(current)
			if err != nil {
				return err
			}
			if ch.empty() {
				outcome = &mutationOutcome{before: before, after: current, change: ch}
				return nil
			}

			if err := projects.UpdateVersioned(ctx, current.ID, current.Version, ch.columns); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					s.logger.Debug("project version conflict, retrying", zap.Uint("project_id", projectID))
					return retry.RetryableError(ErrConcurrentModification)
				}
				return fmt.Errorf("failed to update project: %w", err)
			}

			if ch.replaceTeam {
				if err := projects.ReplaceTeam(ctx, current.ID, ch.team); err != nil {
					return fmt.Errorf("failed to replace team: %w", err)
				}
			}

			if ch.update != nil {
				ch.update.ProjectID = current.ID
				if err := repository.NewProjectUpdateRepository(tx).Append(ctx, ch.update); err != nil {
					return fmt.Errorf("failed to append project update: %w", err)
				}
			}

			after, err := projects.GetByID(ctx, current.ID)
			if err != nil {
				return fmt.Errorf("failed to reload project: %w", err)
			}
			outcome = &mutationOutcome{before: before, after: after, changed: true, change: ch}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// finish records activity and invalidates caches for a committed change
func (s *WorkflowService) finish(ctx context.Context, kind MutationKind, actor *auth.UserContext, outcome *mutationOutcome) *TransitionResult {
	if outcome.changed {
		for _, a := range outcome.change.activities {
			s.activities.Record(ctx, a.action, EntityProject, outcome.after.ID, actor, a.note)
		}
		s.invalidator.Invalidate(ctx, kind, outcome.before, outcome.after)

		s.logger.Info("project updated",
			zap.String("mutation", string(kind)),
			zap.Uint("project_id", outcome.after.ID),
			zap.Uint("actor_id", actor.UserID),
			zap.String("status", string(outcome.after.Status)),
			zap.String("stage", outcome.after.CurrentStage.String()))
	}

	return &TransitionResult{
		Project: outcome.after,
		Changed: outcome.changed,
		Message: outcome.change.message,
	}
}

// CreateProject opens a project for a client. Fetcher roles only. The client's
// default payouts seed the project's payout fields.
func (s *WorkflowService) CreateProject(ctx context.Context, req *domain.CreateProjectRequest) (*TransitionResult, error) {
	actor, err := requireRoles(ctx, "fetcher role required", auth.FetcherRoles...)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	project := &domain.Project{
		Title:                   title,
		Description:             req.Description,
		ClientID:                client.ID,
		LeadID:                  req.LeadID,
		CreatedByID:             actor.UserID,
		Status:                  domain.ProjectStatusNew,
		CurrentStage:            domain.StageDesign,
		DeveloperPayoutAmount:   client.DefaultDeveloperPayout,
		FetcherCommissionAmount: client.DefaultFetcherCommission,
		AgencyProfit:            client.DefaultAgencyProfit,
		Version:                 1,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.activities.Record(ctx, ActionProjectCreated, EntityProject, project.ID, actor, "")
	s.invalidator.Invalidate(ctx, MutationCreate, nil, project)

	s.logger.Info("project created",
		zap.Uint("project_id", project.ID),
		zap.Uint("client_id", client.ID),
		zap.Uint("actor_id", actor.UserID))

	return &TransitionResult{
		Project: project,
		Changed: true,
		Message: fmt.Sprintf("Project created for %s", client.BusinessName),
	}, nil
}

// GetProject returns a project visible to the caller: project management,
// its originator or anyone working on it
func (s *WorkflowService) GetProject(ctx context.Context, projectID uint) (*domain.Project, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	if !projectVisible(actor, project) {
		return nil, fmt.Errorf("%w: not involved in project", ErrPermissionDenied)
	}
	return project, nil
}

// ListProjects returns a page of projects for project management
func (s *WorkflowService) ListProjects(ctx context.Context, page, pageSize int, status *domain.ProjectStatus, sort repository.SortConfig) ([]domain.Project, int64, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return nil, 0, err
	}
	if status != nil && !status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *status)
	}
	return s.projectRepo.List(ctx, page, pageSize, status, sort)
}

// AdvanceStage moves the project one stage forward. Reaching the final stage
// also completes the project, or returns it to payment_done when its payment
// was already released. Advancing a final project is a no-op.
func (s *WorkflowService) AdvanceStage(ctx context.Context, projectID uint) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if !p.CurrentStage.Valid() {
			return nil, fmt.Errorf("%w: unknown stage on project %d", ErrInvalidState, p.ID)
		}
		next, ok := p.CurrentStage.Next()
		if !ok {
			return noop("Project is already at the final stage"), nil
		}

		columns := map[string]interface{}{"current_stage": next}
		if next == domain.StageCompleted {
			// a released project stays payment_done so it cannot be released again
			if p.AdminPaymentReleased {
				columns["status"] = domain.ProjectStatusPaymentDone
			} else {
				columns["status"] = domain.ProjectStatusCompleted
			}
			columns["date_completed"] = time.Now()
		}
		return &change{
			columns:    columns,
			activities: []activityEntry{{action: ActionAdvanceStage}},
			message:    fmt.Sprintf("Project advanced to %s", next.DisplayName()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationAdvance, actor, outcome), nil
}

// RevertStage moves the project one stage back and appends a project update
// describing it. Leaving a completed project puts it back in progress.
// Reverting the first stage is a no-op.
func (s *WorkflowService) RevertStage(ctx context.Context, projectID uint, req *domain.RevertStageRequest) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}
	note := ""
	if req != nil {
		note = strings.TrimSpace(req.Note)
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if !p.CurrentStage.Valid() {
			return nil, fmt.Errorf("%w: unknown stage on project %d", ErrInvalidState, p.ID)
		}
		prev, ok := p.CurrentStage.Prev()
		if !ok {
			return noop("Project is already at the earliest stage"), nil
		}

		columns := map[string]interface{}{"current_stage": prev}
		if p.Status == domain.ProjectStatusCompleted {
			columns["status"] = domain.ProjectStatusInProgress
		}

		message := fmt.Sprintf("Stage reverted to %s by %s.", prev.DisplayName(), actor.Username)
		if note != "" {
			message += " Note: " + note
		}
		authorID := actor.UserID

		return &change{
			columns: columns,
			update: &domain.ProjectUpdate{
				AuthorID:  &authorID,
				Message:   message,
				CreatedAt: time.Now(),
			},
			activities: []activityEntry{{action: ActionRevertStage, note: message}},
			message:    fmt.Sprintf("Project reverted to %s", prev.DisplayName()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationRevert, actor, outcome), nil
}

type payoutField struct {
	column string
	name   string
	value  func(*domain.AssignProjectRequest) *string
}

var assignPayoutFields = []payoutField{
	{"fetcher_commission_amount", "fetcherCommissionAmount", func(r *domain.AssignProjectRequest) *string { return r.FetcherCommission }},
	{"developer_payout_amount", "developerPayoutAmount", func(r *domain.AssignProjectRequest) *string { return r.DeveloperPayout }},
	{"agency_profit", "agencyProfit", func(r *domain.AssignProjectRequest) *string { return r.AgencyProfit }},
	{"designer_payout_amount", "designerPayoutAmount", func(r *domain.AssignProjectRequest) *string { return r.DesignerPayout }},
	{"seo_payout_amount", "seoPayoutAmount", func(r *domain.AssignProjectRequest) *string { return r.SEOPayout }},
	{"gbp_payout_amount", "gbpPayoutAmount", func(r *domain.AssignProjectRequest) *string { return r.GBPPayout }},
	{"social_media_payout_amount", "socialMediaPayoutAmount", func(r *domain.AssignProjectRequest) *string { return r.SocialMediaPayout }},
}

// parseAmount parses an optional money field. Blank means not supplied.
func parseAmount(name string, raw *string) (decimal.NullDecimal, bool, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return decimal.NullDecimal{}, false, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return decimal.NullDecimal{}, false, fmt.Errorf("%w: %s must be a decimal amount", ErrInvalidInput, name)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, false, fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, name)
	}
	return decimal.NewNullDecimal(d), true, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveTeam loads the team and checks every member can staff a project
func (s *WorkflowService) resolveTeam(ctx context.Context, ids []uint) ([]domain.User, error) {
	ids = uniqueIDs(ids)
	team, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	if len(team) != len(ids) {
		return nil, fmt.Errorf("%w: one or more team members do not exist", ErrUserNotFound)
	}
	for _, member := range team {
		profile, err := s.roleRepo.GetProfile(ctx, member.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile of %s: %w", member.Username, err)
		}
		if !auth.Authorize(profile, auth.ExecutionRoles...) {
			return nil, fmt.Errorf("%w: %s holds no execution role", ErrInvalidInput, member.Username)
		}
	}
	return team, nil
}

func (s *WorkflowService) resolvePaymentKey(ctx context.Context) ledger.ResolveFunc {
	return func(key string) (uint, bool) {
		user, err := s.roleRepo.ResolveUser(ctx, key)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("failed to resolve payment key", zap.String("key", key), zap.Error(err))
			}
			return 0, false
		}
		return user.ID, true
	}
}

// Assign staffs a project: sets the developer, replaces the team wholesale
// and applies supplied payout fields. Parsed assigned payments replace the
// stored map, unless no line parsed, in which case the map is left alone.
func (s *WorkflowService) Assign(ctx context.Context, projectID uint, req *domain.AssignProjectRequest) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	payouts := make(map[string]interface{})
	for _, f := range assignPayoutFields {
		amount, ok, err := parseAmount(f.name, f.value(req))
		if err != nil {
			return nil, err
		}
		if ok {
			payouts[f.column] = amount
		}
	}

	developer, err := s.userRepo.GetByID(ctx, req.DeveloperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: developer %d", ErrUserNotFound, req.DeveloperID)
		}
		return nil, fmt.Errorf("failed to load developer: %w", err)
	}
	devProfile, err := s.roleRepo.GetProfile(ctx, developer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load developer profile: %w", err)
	}
	if !auth.HasRole(devProfile, domain.RoleDeveloper) {
		return nil, fmt.Errorf("%w: %s does not hold the developer role", ErrInvalidInput, developer.Username)
	}

	team, err := s.resolveTeam(ctx, req.TeamIDs)
	if err != nil {
		return nil, err
	}

	var payments domain.AssignedPayments
	var skipped []ledger.SkippedLine
	if strings.TrimSpace(req.AssignedPaymentsText) != "" {
		payments, skipped = ledger.ParsePayments(req.AssignedPaymentsText, s.resolvePaymentKey(ctx))
		for _, line := range skipped {
			s.logger.Info("skipped assigned payment line",
				zap.Uint("project_id", projectID),
				zap.Int("line", line.Line),
				zap.String("reason", line.Reason))
		}
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		columns := map[string]interface{}{
			"assigned_to_id": developer.ID,
			"status":         domain.ProjectStatusAssigned,
			"date_assigned":  time.Now(),
		}
		if p.CurrentStage == domain.StageAssigned {
			columns["current_stage"] = domain.StageDesign
		}
		for column, amount := range payouts {
			columns[column] = amount
		}
		if len(payments) > 0 {
			columns["assigned_payments"] = payments
		}

		return &change{
			columns:     columns,
			replaceTeam: true,
			team:        team,
			activities: []activityEntry{{
				action: ActionAssignDeveloper,
				note:   fmt.Sprintf("Assigned to %s", developer.Username),
			}},
			message: fmt.Sprintf("Project assigned to %s", developer.Username),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	result := s.finish(ctx, MutationAssign, actor, outcome)
	result.SkippedPaymentLines = skipped
	return result, nil
}

// UpdateExecutionStatus lets a team member report progress. The current
// stage decides which roles may do so. Submitting for client approval moves a
// development stage to its approval pause and leaves status alone.
func (s *WorkflowService) UpdateExecutionStatus(ctx context.Context, projectID uint, req *domain.ExecutionUpdateRequest) (*TransitionResult, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}

	newStatus := domain.ProjectStatus(req.Status)
	if newStatus != "" && newStatus != domain.ProjectStatusInProgress && newStatus != domain.ProjectStatusCompleted {
		return nil, fmt.Errorf("%w: status must be in_progress or completed", ErrInvalidInput)
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if !auth.IsAdmin(actor.Profile) && !p.IsInvolved(actor.UserID) {
			return nil, fmt.Errorf("%w: not assigned to this project", ErrPermissionDenied)
		}
		if !p.CurrentStage.Valid() {
			return nil, fmt.Errorf("%w: unknown stage on project %d", ErrInvalidState, p.ID)
		}
		if roles, gated := stageRoles[p.CurrentStage]; gated && !auth.Authorize(actor.Profile, roles...) {
			return nil, fmt.Errorf("%w: not permitted to update the %s stage", ErrPermissionDenied, p.CurrentStage.DisplayName())
		}
		if p.Status == domain.ProjectStatusPaymentDone {
			return nil, fmt.Errorf("%w: payment already released", ErrInvalidTransition)
		}

		columns := make(map[string]interface{})
		note := ""
		if req.DeveloperNotes != nil {
			columns["developer_notes"] = *req.DeveloperNotes
			note = strings.TrimSpace(*req.DeveloperNotes)
		}
		if req.DeveloperMockLink != nil {
			columns["developer_mock_link"] = *req.DeveloperMockLink
		}
		if req.FinalDeliveryLink != nil {
			columns["final_delivery_link"] = *req.FinalDeliveryLink
		}

		ch := &change{columns: columns, message: "Project updated"}

		switch {
		case req.SubmitForClientApproval:
			target, ok := clientApprovalStages[p.CurrentStage]
			if !ok {
				return nil, fmt.Errorf("%w: cannot submit for client approval from %s", ErrInvalidTransition, p.CurrentStage.DisplayName())
			}
			columns["current_stage"] = target
			ch.activities = append(ch.activities, activityEntry{action: ActionSubmitForClientApproval, note: note})
			ch.message = fmt.Sprintf("Submitted for client approval (%s)", target.DisplayName())
		case newStatus != "":
			columns["status"] = newStatus
			if newStatus == domain.ProjectStatusCompleted {
				columns["date_completed"] = time.Now()
			}
		}

		if ch.empty() {
			return noop("Nothing to update"), nil
		}
		ch.activities = append(ch.activities, activityEntry{action: ActionDeveloperUpdate, note: note})
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationExecutionUpdate, actor, outcome), nil
}

// ReleasePayment marks a completed project's payouts as disbursed. A project
// whose payment was ever released is returned unchanged, whatever its status.
func (s *WorkflowService) ReleasePayment(ctx context.Context, projectID uint) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if p.AdminPaymentReleased {
			return noop("Payment already released"), nil
		}
		if p.Status != domain.ProjectStatusCompleted {
			return nil, fmt.Errorf("%w: cannot release payment, project is %s, not completed", ErrInvalidTransition, p.Status)
		}
		return &change{
			columns: map[string]interface{}{
				"admin_payment_released": true,
				"status":                 domain.ProjectStatusPaymentDone,
			},
			activities: []activityEntry{{action: ActionMarkPaymentReleased}},
			message:    "Payment released",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationRelease, actor, outcome), nil
}

// UpdateFinancials sets prices and payment flags. Every supplied price must
// parse before anything is written.
func (s *WorkflowService) UpdateFinancials(ctx context.Context, projectID uint, req *domain.UpdateFinancialsRequest) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]interface{})
	totalPrice, ok, err := parseAmount("totalPrice", req.TotalPrice)
	if err != nil {
		return nil, err
	}
	if ok {
		columns["total_price"] = totalPrice
	}
	monthlyPrice, ok, err := parseAmount("monthlyPrice", req.MonthlyPrice)
	if err != nil {
		return nil, err
	}
	if ok {
		columns["monthly_price"] = monthlyPrice
	}
	if req.Payment40Received != nil {
		columns["payment_40_received"] = *req.Payment40Received
	}
	if req.Payment60Received != nil {
		columns["payment_60_received"] = *req.Payment60Received
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if len(columns) == 0 {
			return noop("Nothing to update"), nil
		}
		return &change{
			columns:    columns,
			activities: []activityEntry{{action: ActionUpdateFinancials}},
			message:    "Project financials updated",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationFinancials, actor, outcome), nil
}

// UpdatePreviewLinks sets the review links and notes shown to the client
func (s *WorkflowService) UpdatePreviewLinks(ctx context.Context, projectID uint, req *domain.UpdatePreviewLinksRequest) (*TransitionResult, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]interface{})
	if req.DeveloperMockLink != nil {
		columns["developer_mock_link"] = strings.TrimSpace(*req.DeveloperMockLink)
	}
	if req.FinalDeliveryLink != nil {
		columns["final_delivery_link"] = strings.TrimSpace(*req.FinalDeliveryLink)
	}
	if req.DeveloperNotes != nil {
		columns["developer_notes"] = *req.DeveloperNotes
	}

	outcome, err := s.mutate(ctx, projectID, func(p *domain.Project) (*change, error) {
		if len(columns) == 0 {
			return noop("Nothing to update"), nil
		}
		return &change{
			columns:    columns,
			activities: []activityEntry{{action: ActionUpdatePreviewLinks}},
			message:    "Preview links updated",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, MutationPreviewLinks, actor, outcome), nil
}

// normalizeLinks keeps one trimmed link per line
func normalizeLinks(raw string) string {
	var links []string
	for _, line := range strings.Split(raw, "\n") {
		if link := strings.TrimSpace(line); link != "" {
			links = append(links, link)
		}
	}
	return strings.Join(links, "\n")
}

// PostUpdate appends a progress note from someone working on the project
func (s *WorkflowService) PostUpdate(ctx context.Context, projectID uint, req *domain.PostUpdateRequest) (*domain.ProjectUpdate, error) {
	actor, err := requireRoles(ctx, "execution role required", auth.ExecutionRoles...)
	if err != nil {
		return nil, err
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: update message is required", ErrInvalidInput)
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if !auth.IsAdmin(actor.Profile) && !project.IsInvolved(actor.UserID) {
		return nil, fmt.Errorf("%w: not assigned to this project", ErrPermissionDenied)
	}

	authorID := actor.UserID
	update := &domain.ProjectUpdate{
		ProjectID: project.ID,
		AuthorID:  &authorID,
		Message:   message,
		Links:     normalizeLinks(req.Links),
		CreatedAt: time.Now(),
	}
	if err := s.updateRepo.Append(ctx, update); err != nil {
		return nil, fmt.Errorf("failed to save update: %w", err)
	}

	s.activities.Record(ctx, ActionProjectUpdate, EntityProject, project.ID, actor, message)
	s.invalidator.Invalidate(ctx, MutationPostUpdate, project, project)
	return update, nil
}
