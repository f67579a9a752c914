package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowService_AdvanceStage(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	ctx := f.as(t, pm)

	t.Run("moves one stage forward", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign, Status: domain.ProjectStatusInProgress})

		result, err := f.workflow.AdvanceStage(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Equal(t, domain.StageLandingDev, result.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusInProgress, result.Project.Status)
		assert.Equal(t, 2, result.Project.Version)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionAdvanceStage))
	})

	t.Run("reaching the final stage completes the project", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageSEOGBPOngoing, Status: domain.ProjectStatusInProgress})

		result, err := f.workflow.AdvanceStage(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageCompleted, result.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusCompleted, result.Project.Status)
		assert.NotNil(t, result.Project.DateCompleted)
	})

	t.Run("final stage is a no-op", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageCompleted, Status: domain.ProjectStatusCompleted})

		result, err := f.workflow.AdvanceStage(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, "Project is already at the final stage", result.Message)
		assert.Equal(t, 1, f.reload(t, p.ID).Version)
		assert.Zero(t, f.activityCount(t, p.ID, service.ActionAdvanceStage))
	})

	t.Run("requires project management", func(t *testing.T) {
		dev := testutil.CreateUser(t, f.db, "dev-advance", domain.RoleDeveloper)
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign})

		_, err := f.workflow.AdvanceStage(f.as(t, dev), p.ID)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
		assert.Equal(t, domain.StageDesign, f.reload(t, p.ID).CurrentStage)
	})

	t.Run("unauthenticated caller is denied", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign})

		_, err := f.workflow.AdvanceStage(context.Background(), p.ID)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := f.workflow.AdvanceStage(ctx, 99999)
		assert.ErrorIs(t, err, service.ErrProjectNotFound)
	})
}

func TestWorkflowService_RevertStage(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	ctx := f.as(t, pm)

	t.Run("advance then revert returns to the same stage", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageFullDev, Status: domain.ProjectStatusInProgress})

		_, err := f.workflow.AdvanceStage(ctx, p.ID)
		require.NoError(t, err)
		result, err := f.workflow.RevertStage(ctx, p.ID, &domain.RevertStageRequest{Note: "client asked for changes"})
		require.NoError(t, err)

		assert.True(t, result.Changed)
		assert.Equal(t, domain.StageFullDev, result.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusInProgress, result.Project.Status)

		var updates []domain.ProjectUpdate
		require.NoError(t, f.db.Where("project_id = ?", p.ID).Find(&updates).Error)
		require.Len(t, updates, 1)
		assert.Equal(t, "Stage reverted to Full Website Development by pm. Note: client asked for changes", updates[0].Message)
		require.NotNil(t, updates[0].AuthorID)
		assert.Equal(t, pm.ID, *updates[0].AuthorID)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionRevertStage))
	})

	t.Run("leaving completed puts the project back in progress", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageCompleted, Status: domain.ProjectStatusCompleted})

		result, err := f.workflow.RevertStage(ctx, p.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StageSEOGBPOngoing, result.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusInProgress, result.Project.Status)
	})

	t.Run("first stage is a no-op", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		result, err := f.workflow.RevertStage(ctx, p.ID, nil)
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, "Project is already at the earliest stage", result.Message)

		var n int64
		require.NoError(t, f.db.Model(&domain.ProjectUpdate{}).Where("project_id = ?", p.ID).Count(&n).Error)
		assert.Zero(t, n)
	})
}

func TestWorkflowService_Assign(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	alice := testutil.CreateUser(t, f.db, "alice", domain.RoleDeveloper)
	bob := testutil.CreateUser(t, f.db, "bob", domain.RoleDesigner)
	ctx := f.as(t, pm)

	t.Run("staffs the project and parses assigned payments", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		result, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{
			DeveloperID:          alice.ID,
			TeamIDs:              []uint{bob.ID, bob.ID},
			DeveloperPayout:      strPtr("3000"),
			DesignerPayout:       strPtr(" 450.50 "),
			AssignedPaymentsText: fmt.Sprintf("alice:2500\n%d:1000\nbadline", bob.ID),
		})
		require.NoError(t, err)
		assert.True(t, result.Changed)

		got := result.Project
		assert.Equal(t, domain.ProjectStatusAssigned, got.Status)
		assert.Equal(t, domain.StageDesign, got.CurrentStage)
		require.NotNil(t, got.AssignedToID)
		assert.Equal(t, alice.ID, *got.AssignedToID)
		assert.Equal(t, []uint{bob.ID}, got.TeamIDs())
		assert.NotNil(t, got.DateAssigned)
		assert.True(t, got.DeveloperPayoutAmount.Decimal.Equal(decimal.NewFromInt(3000)))
		assert.True(t, got.DesignerPayoutAmount.Decimal.Equal(decimal.RequireFromString("450.50")))

		assert.True(t, got.AssignedPayments.Amount(alice.ID).Equal(decimal.NewFromInt(2500)))
		assert.True(t, got.AssignedPayments.Amount(bob.ID).Equal(decimal.NewFromInt(1000)))
		require.Len(t, result.SkippedPaymentLines, 1)
		assert.Equal(t, 3, result.SkippedPaymentLines[0].Line)
		assert.Equal(t, ledger.SkipNoSeparator, result.SkippedPaymentLines[0].Reason)

		assert.True(t, ledger.PayoutFor(got, alice.ID).Equal(decimal.NewFromInt(5500)))
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionAssignDeveloper))
	})

	t.Run("reassignment replaces the team and keeps payments when no line parses", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{
			CreatedByID:      pm.ID,
			CurrentStage:     domain.StageDesign,
			AssignedPayments: domain.AssignedPayments{domain.PaymentKey(alice.ID): decimal.NewFromInt(700)},
			AssignedTeam:     []domain.User{*bob},
		})

		result, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{
			DeveloperID:          alice.ID,
			AssignedPaymentsText: "nobody:100",
		})
		require.NoError(t, err)
		assert.Empty(t, result.Project.AssignedTeam)
		assert.Equal(t, domain.StageDesign, result.Project.CurrentStage)
		assert.True(t, result.Project.AssignedPayments.Amount(alice.ID).Equal(decimal.NewFromInt(700)))
		require.Len(t, result.SkippedPaymentLines, 1)
		assert.Equal(t, ledger.SkipUnknownUser, result.SkippedPaymentLines[0].Reason)
	})

	t.Run("parsed payments replace the stored map and removed members are invalidated", func(t *testing.T) {
		carol := testutil.CreateUser(t, f.db, "carol", domain.RoleSEO)
		p := testutil.CreateProject(t, f.db, &domain.Project{
			CreatedByID:      pm.ID,
			CurrentStage:     domain.StageDesign,
			AssignedPayments: domain.AssignedPayments{domain.PaymentKey(alice.ID): decimal.NewFromInt(700)},
			AssignedTeam:     []domain.User{*bob, *carol},
		})
		bg := context.Background()
		for _, id := range []uint{alice.ID, bob.ID, carol.ID} {
			require.NoError(t, f.cache.Set(bg, cache.ExecutionProjectsKey(id), []string{"stale"}, time.Minute))
		}

		result, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{
			DeveloperID:          alice.ID,
			TeamIDs:              []uint{bob.ID},
			AssignedPaymentsText: fmt.Sprintf("%d:100", bob.ID),
		})
		require.NoError(t, err)
		require.Empty(t, result.SkippedPaymentLines)

		stored := f.reload(t, p.ID).AssignedPayments
		assert.Len(t, stored, 1)
		assert.NotContains(t, stored, domain.PaymentKey(alice.ID))
		assert.True(t, stored.Amount(bob.ID).Equal(decimal.NewFromInt(100)))
		assert.True(t, stored.Amount(alice.ID).IsZero())

		assert.False(t, f.cached(t, cache.ExecutionProjectsKey(carol.ID)), "removed member")
		assert.False(t, f.cached(t, cache.ExecutionProjectsKey(bob.ID)))
		assert.False(t, f.cached(t, cache.ExecutionProjectsKey(alice.ID)))
	})

	t.Run("developer must hold the developer role", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		_, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{DeveloperID: bob.ID})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		assert.Nil(t, f.reload(t, p.ID).AssignedToID)
	})

	t.Run("team members must hold an execution role", func(t *testing.T) {
		caller := testutil.CreateUser(t, f.db, "caller", domain.RoleColdCaller)
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		_, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{DeveloperID: alice.ID, TeamIDs: []uint{caller.ID}})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown team member", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		_, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{DeveloperID: alice.ID, TeamIDs: []uint{424242}})
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("malformed payout writes nothing", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageAssigned})

		_, err := f.workflow.Assign(ctx, p.ID, &domain.AssignProjectRequest{DeveloperID: alice.ID, SEOPayout: strPtr("lots")})
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		got := f.reload(t, p.ID)
		assert.Nil(t, got.AssignedToID)
		assert.Equal(t, domain.ProjectStatusNew, got.Status)
		assert.Equal(t, 1, got.Version)
	})
}

func TestWorkflowService_UpdateExecutionStatus(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	dev := testutil.CreateUser(t, f.db, "dev", domain.RoleDeveloper)
	designer := testutil.CreateUser(t, f.db, "designer", domain.RoleDesigner)
	outsider := testutil.CreateUser(t, f.db, "outsider", domain.RoleDeveloper)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)

	staffed := func(stage domain.Stage) *domain.Project {
		return testutil.CreateProject(t, f.db, &domain.Project{
			CreatedByID:  pm.ID,
			Status:       domain.ProjectStatusAssigned,
			CurrentStage: stage,
			AssignedToID: uintPtr(dev.ID),
			AssignedTeam: []domain.User{*designer},
		})
	}

	t.Run("developer reports progress", func(t *testing.T) {
		p := staffed(domain.StageLandingDev)

		result, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{
			Status:         string(domain.ProjectStatusInProgress),
			DeveloperNotes: strPtr("hero section done"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusInProgress, result.Project.Status)
		assert.Equal(t, "hero section done", result.Project.DeveloperNotes)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionDeveloperUpdate))
	})

	t.Run("submitting for approval moves to the approval pause", func(t *testing.T) {
		p := staffed(domain.StageFullDev)

		result, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{
			SubmitForClientApproval: true,
			Status:                  string(domain.ProjectStatusCompleted),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageClientApprovalFinal, result.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusAssigned, result.Project.Status)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionSubmitForClientApproval))
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionDeveloperUpdate))
	})

	t.Run("cannot submit from a non development stage", func(t *testing.T) {
		p := staffed(domain.StageDeployment)

		_, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{SubmitForClientApproval: true})
		assert.ErrorIs(t, err, service.ErrInvalidTransition)
	})

	t.Run("stage gate rejects the wrong role", func(t *testing.T) {
		p := staffed(domain.StageLandingDev)

		_, err := f.workflow.UpdateExecutionStatus(f.as(t, designer), p.ID, &domain.ExecutionUpdateRequest{
			Status: string(domain.ProjectStatusInProgress),
		})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
		assert.Equal(t, domain.ProjectStatusAssigned, f.reload(t, p.ID).Status)
	})

	t.Run("designer may update the design stage", func(t *testing.T) {
		p := staffed(domain.StageDesign)

		result, err := f.workflow.UpdateExecutionStatus(f.as(t, designer), p.ID, &domain.ExecutionUpdateRequest{
			DeveloperMockLink: strPtr("https://mock.example.com"),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://mock.example.com", result.Project.DeveloperMockLink)
	})

	t.Run("outsider is denied", func(t *testing.T) {
		p := staffed(domain.StageLandingDev)

		_, err := f.workflow.UpdateExecutionStatus(f.as(t, outsider), p.ID, &domain.ExecutionUpdateRequest{
			Status: string(domain.ProjectStatusInProgress),
		})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("admin passes every gate", func(t *testing.T) {
		p := staffed(domain.StageSEOGBPOngoing)

		result, err := f.workflow.UpdateExecutionStatus(f.as(t, admin), p.ID, &domain.ExecutionUpdateRequest{
			Status: string(domain.ProjectStatusCompleted),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusCompleted, result.Project.Status)
		assert.NotNil(t, result.Project.DateCompleted)
	})

	t.Run("released project is frozen", func(t *testing.T) {
		p := staffed(domain.StageCompleted)
		require.NoError(t, f.db.Model(&domain.Project{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"status": domain.ProjectStatusPaymentDone, "admin_payment_released": true}).Error)

		_, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{
			Status: string(domain.ProjectStatusInProgress),
		})
		assert.ErrorIs(t, err, service.ErrInvalidTransition)
	})

	t.Run("status outside the execution set is rejected", func(t *testing.T) {
		p := staffed(domain.StageLandingDev)

		_, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{
			Status: string(domain.ProjectStatusPaymentDone),
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("empty request is a no-op", func(t *testing.T) {
		p := staffed(domain.StageLandingDev)

		result, err := f.workflow.UpdateExecutionStatus(f.as(t, dev), p.ID, &domain.ExecutionUpdateRequest{})
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Zero(t, f.activityCount(t, p.ID, service.ActionDeveloperUpdate))
	})
}

func TestWorkflowService_ReleasePayment(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	ctx := f.as(t, pm)

	t.Run("completed project is released", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageCompleted, Status: domain.ProjectStatusCompleted})

		result, err := f.workflow.ReleasePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.True(t, result.Project.AdminPaymentReleased)
		assert.Equal(t, domain.ProjectStatusPaymentDone, result.Project.Status)

		again, err := f.workflow.ReleasePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, again.Changed)
		assert.Equal(t, result.Project.Version, again.Project.Version)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionMarkPaymentReleased))
	})

	t.Run("revert and advance cannot reopen a released project", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageCompleted, Status: domain.ProjectStatusCompleted})

		_, err := f.workflow.ReleasePayment(ctx, p.ID)
		require.NoError(t, err)

		reverted, err := f.workflow.RevertStage(ctx, p.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusPaymentDone, reverted.Project.Status)

		advanced, err := f.workflow.AdvanceStage(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageCompleted, advanced.Project.CurrentStage)
		assert.Equal(t, domain.ProjectStatusPaymentDone, advanced.Project.Status)
		assert.True(t, advanced.Project.AdminPaymentReleased)

		again, err := f.workflow.ReleasePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, again.Changed)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionMarkPaymentReleased))
	})

	t.Run("released flag alone blocks a second release", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{
			CreatedByID:          pm.ID,
			CurrentStage:         domain.StageCompleted,
			Status:               domain.ProjectStatusCompleted,
			AdminPaymentReleased: true,
		})

		result, err := f.workflow.ReleasePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Zero(t, f.activityCount(t, p.ID, service.ActionMarkPaymentReleased))
	})

	t.Run("unfinished project cannot be released", func(t *testing.T) {
		for _, status := range []domain.ProjectStatus{domain.ProjectStatusNew, domain.ProjectStatusAssigned, domain.ProjectStatusInProgress} {
			p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDeployment, Status: status})

			_, err := f.workflow.ReleasePayment(ctx, p.ID)
			assert.ErrorIs(t, err, service.ErrInvalidTransition, "status %s", status)
			assert.False(t, f.reload(t, p.ID).AdminPaymentReleased)
		}
	})

	t.Run("concurrent releases apply once", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageCompleted, Status: domain.ProjectStatusCompleted})

		const workers = 8
		var wg sync.WaitGroup
		results := make([]*service.TransitionResult, workers)
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = f.workflow.ReleasePayment(ctx, p.ID)
			}(i)
		}
		wg.Wait()

		changed := 0
		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			if results[i].Changed {
				changed++
			}
		}
		assert.Equal(t, 1, changed)
		assert.Equal(t, 2, f.reload(t, p.ID).Version)
		assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionMarkPaymentReleased))
	})
}

func TestWorkflowService_UpdateFinancials(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	ctx := f.as(t, pm)

	t.Run("applies supplied fields", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign})

		result, err := f.workflow.UpdateFinancials(ctx, p.ID, &domain.UpdateFinancialsRequest{
			TotalPrice:        strPtr("12000"),
			Payment40Received: boolPtr(true),
		})
		require.NoError(t, err)
		assert.True(t, result.Project.TotalPrice.Valid)
		assert.True(t, result.Project.TotalPrice.Decimal.Equal(decimal.NewFromInt(12000)))
		assert.False(t, result.Project.MonthlyPrice.Valid)
		assert.True(t, result.Project.Payment40Received)
		assert.False(t, result.Project.Payment60Received)
	})

	t.Run("one bad field writes nothing", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign})

		_, err := f.workflow.UpdateFinancials(ctx, p.ID, &domain.UpdateFinancialsRequest{
			TotalPrice:        strPtr("12000"),
			MonthlyPrice:      strPtr("abc"),
			Payment60Received: boolPtr(true),
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		got := f.reload(t, p.ID)
		assert.False(t, got.TotalPrice.Valid)
		assert.False(t, got.Payment60Received)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageDesign})

		_, err := f.workflow.UpdateFinancials(ctx, p.ID, &domain.UpdateFinancialsRequest{TotalPrice: strPtr("-5")})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestWorkflowService_CreateProject(t *testing.T) {
	f := newFixture(t)
	fetcher := testutil.CreateUser(t, f.db, "fetcher", domain.RoleColdCaller)
	client := testutil.CreateClient(t, f.db, "acme", fetcher.ID)
	require.NoError(t, f.db.Model(client).Update("default_fetcher_commission", decimal.NewFromInt(200)).Error)

	result, err := f.workflow.CreateProject(f.as(t, fetcher), &domain.CreateProjectRequest{
		ClientID: client.ID,
		Title:    "  Acme website ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme website", result.Project.Title)
	assert.Equal(t, domain.ProjectStatusNew, result.Project.Status)
	assert.Equal(t, domain.StageDesign, result.Project.CurrentStage)
	assert.Equal(t, fetcher.ID, result.Project.CreatedByID)
	assert.True(t, result.Project.FetcherCommissionAmount.Decimal.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, int64(1), f.activityCount(t, result.Project.ID, service.ActionProjectCreated))

	dev := testutil.CreateUser(t, f.db, "dev", domain.RoleDeveloper)
	_, err = f.workflow.CreateProject(f.as(t, dev), &domain.CreateProjectRequest{ClientID: client.ID, Title: "x"})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	_, err = f.workflow.CreateProject(f.as(t, fetcher), &domain.CreateProjectRequest{ClientID: 9999, Title: "x"})
	assert.ErrorIs(t, err, service.ErrClientNotFound)
}

func TestWorkflowService_PostUpdate(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	dev := testutil.CreateUser(t, f.db, "dev", domain.RoleDeveloper)
	other := testutil.CreateUser(t, f.db, "other", domain.RoleDeveloper)
	p := testutil.CreateProject(t, f.db, &domain.Project{CreatedByID: pm.ID, CurrentStage: domain.StageLandingDev, AssignedToID: uintPtr(dev.ID)})

	update, err := f.workflow.PostUpdate(f.as(t, dev), p.ID, &domain.PostUpdateRequest{
		Message: "staging is up",
		Links:   " https://staging.example.com \n\n https://figma.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "staging is up", update.Message)
	assert.Equal(t, "https://staging.example.com\nhttps://figma.example.com", update.Links)
	assert.Equal(t, int64(1), f.activityCount(t, p.ID, service.ActionProjectUpdate))

	_, err = f.workflow.PostUpdate(f.as(t, other), p.ID, &domain.PostUpdateRequest{Message: "hi"})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	_, err = f.workflow.PostUpdate(f.as(t, dev), p.ID, &domain.PostUpdateRequest{Message: "   "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestWorkflowService_InvalidatesCachedAggregates(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	dev := testutil.CreateUser(t, f.db, "dev", domain.RoleDeveloper)
	ctx := f.as(t, admin)
	p := testutil.CreateProject(t, f.db, &domain.Project{
		CreatedByID:  admin.ID,
		Status:       domain.ProjectStatusInProgress,
		CurrentStage: domain.StageSEOGBPOngoing,
		AssignedToID: uintPtr(dev.ID),
	})

	before, err := f.dashboard.AdminStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), before.Counts[string(domain.ProjectStatusInProgress)])
	_, err = f.dashboard.ExecutionProjects(f.as(t, dev))
	require.NoError(t, err)
	require.True(t, f.cached(t, cache.KeyAdminStatusCounts))
	require.True(t, f.cached(t, cache.ExecutionProjectsKey(dev.ID)))

	_, err = f.workflow.AdvanceStage(ctx, p.ID)
	require.NoError(t, err)

	assert.False(t, f.cached(t, cache.KeyAdminStatusCounts))
	assert.False(t, f.cached(t, cache.ExecutionProjectsKey(dev.ID)))

	after, err := f.dashboard.AdminStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Counts[string(domain.ProjectStatusInProgress)])
	assert.Equal(t, int64(1), after.Counts[string(domain.ProjectStatusCompleted)])
}
