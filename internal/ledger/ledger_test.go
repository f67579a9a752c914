package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func uintPtr(v uint) *uint {
	return &v
}

func profileWith(userID uint, roles ...domain.RoleName) *domain.UserProfile {
	p := &domain.UserProfile{UserID: userID}
	for _, r := range roles {
		p.Roles = append(p.Roles, domain.Role{Name: r})
	}
	return p
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestPayoutFor(t *testing.T) {
	t.Run("developer payout and override are additive", func(t *testing.T) {
		p := &domain.Project{
			AssignedToID:          uintPtr(7),
			DeveloperPayoutAmount: amount("4000.00"),
			AssignedPayments:      domain.AssignedPayments{"7": decimal.RequireFromString("500.00")},
		}
		assertDecimal(t, "4500.00", ledger.PayoutFor(p, 7))
	})

	t.Run("team member gets only the override", func(t *testing.T) {
		p := &domain.Project{
			AssignedToID:          uintPtr(7),
			DeveloperPayoutAmount: amount("4000.00"),
			AssignedPayments:      domain.AssignedPayments{"9": decimal.RequireFromString("300")},
		}
		assertDecimal(t, "300", ledger.PayoutFor(p, 9))
	})

	t.Run("missing values are zero", func(t *testing.T) {
		p := &domain.Project{AssignedToID: uintPtr(7)}
		assertDecimal(t, "0", ledger.PayoutFor(p, 7))
		assertDecimal(t, "0", ledger.PayoutFor(p, 8))
		assertDecimal(t, "0", ledger.PayoutFor(nil, 8))
	})

	t.Run("malformed map entries are skipped", func(t *testing.T) {
		var payments domain.AssignedPayments
		require.NoError(t, payments.Scan(`{"7": "abc", "8": 125.5}`))
		p := &domain.Project{AssignedPayments: payments}
		assertDecimal(t, "0", ledger.PayoutFor(p, 7))
		assertDecimal(t, "125.5", ledger.PayoutFor(p, 8))
	})
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.ProjectStatus
		released bool
		expected ledger.Bucket
	}{
		{"new", domain.ProjectStatusNew, false, ledger.BucketNone},
		{"assigned", domain.ProjectStatusAssigned, false, ledger.BucketNone},
		{"in progress", domain.ProjectStatusInProgress, false, ledger.BucketNone},
		{"completed", domain.ProjectStatusCompleted, false, ledger.BucketPending},
		{"payment done", domain.ProjectStatusPaymentDone, true, ledger.BucketReleased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Project{Status: tt.status, AdminPaymentReleased: tt.released}
			assert.Equal(t, tt.expected, ledger.BucketOf(p))
		})
	}
}

func TestSummarize_DesignerPendingThenReleased(t *testing.T) {
	const designer uint = 3
	profile := profileWith(designer, domain.RoleDesigner)
	project := domain.Project{
		BaseModel:            domain.BaseModel{ID: 1},
		Status:               domain.ProjectStatusCompleted,
		DesignerPayoutAmount: amount("150.00"),
		AssignedTeam:         []domain.User{{BaseModel: domain.BaseModel{ID: designer}}},
	}

	summary := ledger.Summarize(designer, profile, []domain.Project{project})
	assertDecimal(t, "150.00", summary.Pending)
	assertDecimal(t, "0", summary.Total)

	project.AdminPaymentReleased = true
	project.Status = domain.ProjectStatusPaymentDone
	summary = ledger.Summarize(designer, profile, []domain.Project{project})
	assertDecimal(t, "0", summary.Pending)
	assertDecimal(t, "150.00", summary.Total)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, ledger.ChannelDesignerPayout, summary.Lines[0].Channel)
}

func TestSummarize_InProgressContributesNothing(t *testing.T) {
	const dev uint = 4
	project := domain.Project{
		Status:                  domain.ProjectStatusInProgress,
		AssignedToID:            uintPtr(dev),
		DeveloperPayoutAmount:   amount("1000"),
		FetcherCommissionAmount: amount("200"),
		CreatedByID:             dev,
	}
	summary := ledger.Summarize(dev, profileWith(dev, domain.RoleDeveloper), []domain.Project{project})
	assertDecimal(t, "0", summary.Total)
	assertDecimal(t, "0", summary.Pending)
	assert.Empty(t, summary.Lines)
}

func TestSummarize_ChannelsAreAdditive(t *testing.T) {
	const user uint = 5
	profile := profileWith(user, domain.RoleDesigner, domain.RoleSEO)
	projects := []domain.Project{
		{
			// developer, on the team and with an override: payout counted once
			BaseModel:             domain.BaseModel{ID: 1},
			Status:                domain.ProjectStatusCompleted,
			AssignedToID:          uintPtr(user),
			AssignedTeam:          []domain.User{{BaseModel: domain.BaseModel{ID: user}}},
			DeveloperPayoutAmount: amount("1000"),
			AssignedPayments:      domain.AssignedPayments{"5": decimal.RequireFromString("100")},
			DesignerPayoutAmount:  amount("150"),
			SEOPayoutAmount:       amount("250"),
			GBPPayoutAmount:       amount("999"),
		},
		{
			// originated by the user and released
			BaseModel:               domain.BaseModel{ID: 2},
			Status:                  domain.ProjectStatusPaymentDone,
			AdminPaymentReleased:    true,
			CreatedByID:             user,
			FetcherCommissionAmount: amount("300"),
		},
		{
			// someone else's project
			BaseModel:               domain.BaseModel{ID: 3},
			Status:                  domain.ProjectStatusCompleted,
			CreatedByID:             99,
			FetcherCommissionAmount: amount("700"),
		},
	}

	summary := ledger.Summarize(user, profile, projects)
	// 1000 + 100 + 150 + 250, gbp not held
	assertDecimal(t, "1500", summary.Pending)
	assertDecimal(t, "300", summary.Total)
	assert.Len(t, summary.Lines, 4)
}

func TestSummarize_AdminDoesNotEarnUnheldRolePayouts(t *testing.T) {
	const admin uint = 1
	project := domain.Project{
		Status:               domain.ProjectStatusCompleted,
		AssignedTeam:         []domain.User{{BaseModel: domain.BaseModel{ID: admin}}},
		DesignerPayoutAmount: amount("150"),
	}
	summary := ledger.Summarize(admin, profileWith(admin, domain.RoleAdmin), []domain.Project{project})
	assertDecimal(t, "0", summary.Pending)
}

func TestFetcherCommissionAndAgencyProfit(t *testing.T) {
	projects := []domain.Project{
		{Status: domain.ProjectStatusPaymentDone, AdminPaymentReleased: true, CreatedByID: 2, FetcherCommissionAmount: amount("100"), AgencyProfit: amount("1000")},
		{Status: domain.ProjectStatusCompleted, CreatedByID: 2, FetcherCommissionAmount: amount("50"), AgencyProfit: amount("400")},
		{Status: domain.ProjectStatusInProgress, CreatedByID: 2, FetcherCommissionAmount: amount("75"), AgencyProfit: amount("800")},
		{Status: domain.ProjectStatusCompleted, CreatedByID: 3, FetcherCommissionAmount: amount("60")},
	}

	commission := ledger.FetcherCommission(2, projects)
	assertDecimal(t, "100", commission.Total)
	assertDecimal(t, "50", commission.Pending)

	profit := ledger.AgencyProfit(projects)
	assertDecimal(t, "1000", profit.Total)
	assertDecimal(t, "400", profit.Pending)
}
