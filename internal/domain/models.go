package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// RoleName is the unique name of a role tag
type RoleName string

const (
	RoleAdmin          RoleName = "admin"
	RoleProjectManager RoleName = "project_manager"
	RoleColdCaller     RoleName = "cold_caller"
	RoleSalesCloser    RoleName = "sales_closer"
	RoleDesigner       RoleName = "designer"
	RoleDeveloper      RoleName = "developer"
	RoleSEO            RoleName = "seo"
	RoleGBP            RoleName = "gbp"
	RoleSocialMedia    RoleName = "social_media"
	RoleClient         RoleName = "client"
)

var roleLabels = map[RoleName]string{
	RoleAdmin:          "Admin",
	RoleProjectManager: "Project Manager",
	RoleColdCaller:     "Cold Caller",
	RoleSalesCloser:    "Sales Closer",
	RoleDesigner:       "Designer",
	RoleDeveloper:      "Developer",
	RoleSEO:            "SEO",
	RoleGBP:            "Google Business Profile",
	RoleSocialMedia:    "Social Media",
	RoleClient:         "Client",
}

// Label returns the display label for a known role, or the raw name otherwise
func (r RoleName) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// User is an account that can act on the pipeline
type User struct {
	BaseModel
	Username    string `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email       string `gorm:"type:varchar(255)"`
	DisplayName string `gorm:"type:varchar(200);column:display_name"`
	IsActive    bool   `gorm:"not null;column:is_active"`
}

// Role is a named permission tag. Created lazily on first use.
type Role struct {
	ID          uint      `gorm:"primaryKey"`
	Name        RoleName  `gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(100);column:display_name"`
	CreatedAt   time.Time `gorm:"not null"`
}

// UserProfile owns the role set of exactly one user
type UserProfile struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex;not null;column:user_id"`
	User      *User     `gorm:"foreignKey:UserID"`
	Roles     []Role    `gorm:"many2many:user_profile_roles"`
	CreatedAt time.Time `gorm:"not null"`
}

// Holds reports plain membership of role in the profile's role set.
// It does not apply the admin override; see auth.HasRole for authorization.
func (p *UserProfile) Holds(role RoleName) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r.Name == role {
			return true
		}
	}
	return false
}

// RoleNames returns the profile's role names as strings
func (p *UserProfile) RoleNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		names[i] = string(r.Name)
	}
	return names
}

// Username returns the linked user's username, or an empty string
func (p *UserProfile) Username() string {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.Username
}

// Client is a business that owns projects. A client may be linked to a login user.
type Client struct {
	BaseModel
	BusinessName             string              `gorm:"type:varchar(200);not null;column:business_name"`
	ContactEmail             string              `gorm:"type:varchar(255);column:contact_email"`
	UserID                   *uint               `gorm:"index;column:user_id"`
	User                     *User               `gorm:"foreignKey:UserID"`
	CreatedByID              uint                `gorm:"not null;index;column:created_by_id"`
	DefaultDeveloperPayout   decimal.NullDecimal `gorm:"type:decimal(10,2);column:default_developer_payout"`
	DefaultFetcherCommission decimal.NullDecimal `gorm:"type:decimal(10,2);column:default_fetcher_commission"`
	DefaultAgencyProfit      decimal.NullDecimal `gorm:"type:decimal(10,2);column:default_agency_profit"`
}

// LeadStatus represents the sales status of a lead
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusMeetingBooked LeadStatus = "meeting_booked"
	LeadStatusDealWon       LeadStatus = "deal_won"
	LeadStatusDealLost      LeadStatus = "deal_lost"
)

// LeadStatuses lists every lead status in pipeline order
var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusMeetingBooked,
	LeadStatusDealWon,
	LeadStatusDealLost,
}

// Lead is a prospective client captured by a fetcher
type Lead struct {
	BaseModel
	BusinessName          string     `gorm:"type:varchar(200);not null;column:business_name"`
	Phone                 string     `gorm:"type:varchar(50)"`
	Category              string     `gorm:"type:varchar(100)"`
	Status                LeadStatus `gorm:"type:varchar(30);not null;index"`
	CreatedByID           uint       `gorm:"not null;index;column:created_by_id"`
	AssignedSalesCloserID *uint      `gorm:"index;column:assigned_sales_closer_id"`
}

// ProjectStatus is the coarse lifecycle bucket of a project
type ProjectStatus string

const (
	ProjectStatusNew         ProjectStatus = "new"
	ProjectStatusAssigned    ProjectStatus = "assigned"
	ProjectStatusInProgress  ProjectStatus = "in_progress"
	ProjectStatusCompleted   ProjectStatus = "completed"
	ProjectStatusPaymentDone ProjectStatus = "payment_done"
)

// ProjectStatuses lists every project status in lifecycle order
var ProjectStatuses = []ProjectStatus{
	ProjectStatusNew,
	ProjectStatusAssigned,
	ProjectStatusInProgress,
	ProjectStatusCompleted,
	ProjectStatusPaymentDone,
}

// IsValid checks if the status is one of the known values
func (s ProjectStatus) IsValid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Project is the central entity moving through the production pipeline
type Project struct {
	BaseModel
	Title        string        `gorm:"type:varchar(200);not null"`
	Description  string        `gorm:"type:text"`
	ClientID     uint          `gorm:"not null;index;column:client_id"`
	Client       *Client       `gorm:"foreignKey:ClientID"`
	LeadID       *uint         `gorm:"index;column:lead_id"`
	CreatedByID  uint          `gorm:"not null;index;column:created_by_id"`
	CreatedBy    *User         `gorm:"foreignKey:CreatedByID"`
	Status       ProjectStatus `gorm:"type:varchar(20);not null;index"`
	CurrentStage Stage         `gorm:"type:varchar(40);not null;column:current_stage"`

	AssignedToID *uint  `gorm:"index;column:assigned_to_id"`
	AssignedTo   *User  `gorm:"foreignKey:AssignedToID"`
	AssignedTeam []User `gorm:"many2many:project_team_members"`

	FetcherCommissionAmount decimal.NullDecimal `gorm:"type:decimal(10,2);column:fetcher_commission_amount"`
	DeveloperPayoutAmount   decimal.NullDecimal `gorm:"type:decimal(10,2);column:developer_payout_amount"`
	AgencyProfit            decimal.NullDecimal `gorm:"type:decimal(10,2);column:agency_profit"`
	DesignerPayoutAmount    decimal.NullDecimal `gorm:"type:decimal(10,2);column:designer_payout_amount"`
	SEOPayoutAmount         decimal.NullDecimal `gorm:"type:decimal(10,2);column:seo_payout_amount"`
	GBPPayoutAmount         decimal.NullDecimal `gorm:"type:decimal(10,2);column:gbp_payout_amount"`
	SocialMediaPayoutAmount decimal.NullDecimal `gorm:"type:decimal(10,2);column:social_media_payout_amount"`
	AssignedPayments        AssignedPayments    `gorm:"type:text;column:assigned_payments"`
	AdminPaymentReleased    bool                `gorm:"not null;column:admin_payment_released"`

	TotalPrice        decimal.NullDecimal `gorm:"type:decimal(10,2);column:total_price"`
	MonthlyPrice      decimal.NullDecimal `gorm:"type:decimal(10,2);column:monthly_price"`
	Payment40Received bool                `gorm:"not null;column:payment_40_received"`
	Payment60Received bool                `gorm:"not null;column:payment_60_received"`

	DeveloperMockLink string `gorm:"type:varchar(500);column:developer_mock_link"`
	FinalDeliveryLink string `gorm:"type:varchar(500);column:final_delivery_link"`
	DeveloperNotes    string `gorm:"type:text;column:developer_notes"`

	DateAssigned  *time.Time `gorm:"column:date_assigned"`
	DateCompleted *time.Time `gorm:"column:date_completed"`

	// Version is bumped on every write and guards read-modify-write cycles.
	Version int `gorm:"not null"`
}

// IsAssignedTo reports whether userID is the project's single developer
func (p *Project) IsAssignedTo(userID uint) bool {
	return p.AssignedToID != nil && *p.AssignedToID == userID
}

// IsTeamMember reports whether userID is on the assigned team
func (p *Project) IsTeamMember(userID uint) bool {
	for _, u := range p.AssignedTeam {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// IsInvolved reports whether userID works on the project (developer or team)
func (p *Project) IsInvolved(userID uint) bool {
	return p.IsAssignedTo(userID) || p.IsTeamMember(userID)
}

// TeamIDs returns the ids of the assigned team
func (p *Project) TeamIDs() []uint {
	ids := make([]uint, len(p.AssignedTeam))
	for i, u := range p.AssignedTeam {
		ids[i] = u.ID
	}
	return ids
}

// ProjectUpdate is an append-only note authored against a project
type ProjectUpdate struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID uint      `gorm:"not null;index;column:project_id"`
	AuthorID  *uint     `gorm:"index;column:author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID"`
	Message   string    `gorm:"type:text;not null"`
	Links     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// ActivityLog is one entry of the append-only audit trail
type ActivityLog struct {
	ID            uint      `gorm:"primaryKey"`
	Action        string    `gorm:"type:varchar(100);not null;index"`
	EntityType    string    `gorm:"type:varchar(50);not null;index:idx_activity_entity;column:entity_type"`
	EntityID      uint      `gorm:"not null;index:idx_activity_entity;column:entity_id"`
	PerformedByID *uint     `gorm:"index;column:performed_by_id"`
	PerformedBy   *User     `gorm:"foreignKey:PerformedByID"`
	Note          string    `gorm:"type:text"`
	Timestamp     time.Time `gorm:"not null;index"`
}
