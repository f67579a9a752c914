// Package ledger computes what a project owes each payee and splits it into
// released and pending buckets. Everything here is pure over loaded projects.
package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// Bucket classifies a project's payouts
type Bucket int

const (
	// BucketNone contributes to neither total nor pending
	BucketNone Bucket = iota
	// BucketPending is completed work awaiting release
	BucketPending
	// BucketReleased has been disbursed by an admin
	BucketReleased
)

func (b Bucket) String() string {
	switch b {
	case BucketPending:
		return "pending"
	case BucketReleased:
		return "released"
	default:
		return "none"
	}
}

// BucketOf returns where the project's payouts currently count
func BucketOf(p *domain.Project) Bucket {
	switch {
	case p.AdminPaymentReleased:
		return BucketReleased
	case p.Status == domain.ProjectStatusCompleted:
		return BucketPending
	default:
		return BucketNone
	}
}

// Channel names the source of an earnings line
type Channel string

const (
	ChannelPayout            Channel = "payout"
	ChannelFetcherCommission Channel = "fetcher_commission"
	ChannelDesignerPayout    Channel = "designer_payout"
	ChannelSEOPayout         Channel = "seo_payout"
	ChannelGBPPayout         Channel = "gbp_payout"
	ChannelSocialMediaPayout Channel = "social_media_payout"
)

// roleChannels binds each team role to the flat amount it earns
var roleChannels = []struct {
	role    domain.RoleName
	channel Channel
	amount  func(*domain.Project) decimal.NullDecimal
}{
	{domain.RoleDesigner, ChannelDesignerPayout, func(p *domain.Project) decimal.NullDecimal { return p.DesignerPayoutAmount }},
	{domain.RoleSEO, ChannelSEOPayout, func(p *domain.Project) decimal.NullDecimal { return p.SEOPayoutAmount }},
	{domain.RoleGBP, ChannelGBPPayout, func(p *domain.Project) decimal.NullDecimal { return p.GBPPayoutAmount }},
	{domain.RoleSocialMedia, ChannelSocialMediaPayout, func(p *domain.Project) decimal.NullDecimal { return p.SocialMediaPayoutAmount }},
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// PayoutFor is the developer payout when userID is the assigned developer,
// plus userID's assigned_payments entry. The two are additive.
func PayoutFor(p *domain.Project, userID uint) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	amount := decimal.Zero
	if p.IsAssignedTo(userID) {
		amount = amount.Add(orZero(p.DeveloperPayoutAmount))
	}
	return amount.Add(p.AssignedPayments.Amount(userID))
}

// Line is one project's contribution through one channel
type Line struct {
	ProjectID    uint
	ProjectTitle string
	Channel      Channel
	Amount       decimal.Decimal
	Bucket       Bucket
}

// Summary is a payee's released total and pending amount
type Summary struct {
	Total   decimal.Decimal
	Pending decimal.Decimal
	Lines   []Line
}

func (s *Summary) add(p *domain.Project, channel Channel, amount decimal.Decimal) {
	bucket := BucketOf(p)
	if bucket == BucketNone || amount.IsZero() {
		return
	}
	switch bucket {
	case BucketReleased:
		s.Total = s.Total.Add(amount)
	case BucketPending:
		s.Pending = s.Pending.Add(amount)
	}
	s.Lines = append(s.Lines, Line{
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		Channel:      channel,
		Amount:       amount,
		Bucket:       bucket,
	})
}

// Summarize aggregates userID's earnings over projects. The channels are
// additive: developer or team payout, fetcher commission on projects the user
// originated, and the flat amount of every team role the user holds. Role
// attribution uses plain membership, so admin does not earn role payouts it
// does not hold.
func Summarize(userID uint, profile *domain.UserProfile, projects []domain.Project) Summary {
	summary := Summary{Total: decimal.Zero, Pending: decimal.Zero}

	for i := range projects {
		p := &projects[i]

		if p.IsInvolved(userID) {
			summary.add(p, ChannelPayout, PayoutFor(p, userID))
		}

		if p.CreatedByID == userID {
			summary.add(p, ChannelFetcherCommission, orZero(p.FetcherCommissionAmount))
		}

		if p.IsTeamMember(userID) {
			for _, rc := range roleChannels {
				if profile.Holds(rc.role) {
					summary.add(p, rc.channel, orZero(rc.amount(p)))
				}
			}
		}
	}
	return summary
}

// Split is a released/pending pair
type Split struct {
	Total   decimal.Decimal
	Pending decimal.Decimal
}

func splitBy(projects []domain.Project, amount func(*domain.Project) decimal.Decimal) Split {
	split := Split{Total: decimal.Zero, Pending: decimal.Zero}
	for i := range projects {
		p := &projects[i]
		switch BucketOf(p) {
		case BucketReleased:
			split.Total = split.Total.Add(amount(p))
		case BucketPending:
			split.Pending = split.Pending.Add(amount(p))
		}
	}
	return split
}

// FetcherCommission splits the commission userID earns on projects they originated
func FetcherCommission(userID uint, projects []domain.Project) Split {
	return splitBy(projects, func(p *domain.Project) decimal.Decimal {
		if p.CreatedByID != userID {
			return decimal.Zero
		}
		return orZero(p.FetcherCommissionAmount)
	})
}

// AgencyProfit splits the agency's margin across projects
func AgencyProfit(projects []domain.Project) Split {
	return splitBy(projects, func(p *domain.Project) decimal.Decimal {
		return orZero(p.AgencyProfit)
	})
}
