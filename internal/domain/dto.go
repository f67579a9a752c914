package domain

import (
	"github.com/shopspring/decimal"
)

// DTOs for API responses

type UserDTO struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ProfileDTO describes a user together with the roles they hold
type ProfileDTO struct {
	UserID   uint     `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type ProjectDTO struct {
	ID                   uint                       `json:"id"`
	Title                string                     `json:"title"`
	Description          string                     `json:"description,omitempty"`
	ClientID             uint                       `json:"clientId"`
	LeadID               *uint                      `json:"leadId,omitempty"`
	CreatedByID          uint                       `json:"createdById"`
	Status               ProjectStatus              `json:"status"`
	CurrentStage         Stage                      `json:"currentStage"`
	CurrentStageDisplay  string                     `json:"currentStageDisplay"`
	StageIndex           int                        `json:"stageIndex"`
	AssignedTo           *UserDTO                   `json:"assignedTo,omitempty"`
	AssignedTeam         []UserDTO                  `json:"assignedTeam"`
	Payouts              PayoutFieldsDTO            `json:"payouts"`
	AssignedPayments     map[string]decimal.Decimal `json:"assignedPayments,omitempty"`
	AdminPaymentReleased bool                       `json:"adminPaymentReleased"`
	TotalPrice           *decimal.Decimal           `json:"totalPrice,omitempty"`
	MonthlyPrice         *decimal.Decimal           `json:"monthlyPrice,omitempty"`
	Payment40Received    bool                       `json:"payment40Received"`
	Payment60Received    bool                       `json:"payment60Received"`
	DeveloperMockLink    string                     `json:"developerMockLink,omitempty"`
	FinalDeliveryLink    string                     `json:"finalDeliveryLink,omitempty"`
	DeveloperNotes       string                     `json:"developerNotes,omitempty"`
	DateAssigned         *string                    `json:"dateAssigned,omitempty"`  // ISO 8601
	DateCompleted        *string                    `json:"dateCompleted,omitempty"` // ISO 8601
	CreatedAt            string                     `json:"createdAt"`
	UpdatedAt            string                     `json:"updatedAt"`
}

// PayoutFieldsDTO holds the flat per-role amounts of a project
type PayoutFieldsDTO struct {
	FetcherCommission *decimal.Decimal `json:"fetcherCommission,omitempty"`
	DeveloperPayout   *decimal.Decimal `json:"developerPayout,omitempty"`
	AgencyProfit      *decimal.Decimal `json:"agencyProfit,omitempty"`
	DesignerPayout    *decimal.Decimal `json:"designerPayout,omitempty"`
	SEOPayout         *decimal.Decimal `json:"seoPayout,omitempty"`
	GBPPayout         *decimal.Decimal `json:"gbpPayout,omitempty"`
	SocialMediaPayout *decimal.Decimal `json:"socialMediaPayout,omitempty"`
}

// ProjectSummaryDTO is the compact form used in dashboard listings
type ProjectSummaryDTO struct {
	ID           uint          `json:"id"`
	Title        string        `json:"title"`
	ClientID     uint          `json:"clientId"`
	Status       ProjectStatus `json:"status"`
	CurrentStage Stage         `json:"currentStage"`
	UpdatedAt    string        `json:"updatedAt"`
}

type ProjectUpdateDTO struct {
	ID         uint     `json:"id"`
	ProjectID  uint     `json:"projectId"`
	AuthorID   *uint    `json:"authorId,omitempty"`
	AuthorName string   `json:"authorName,omitempty"`
	Message    string   `json:"message"`
	Links      []string `json:"links,omitempty"`
	CreatedAt  string   `json:"createdAt"`
}

type ActivityLogDTO struct {
	ID              uint   `json:"id"`
	Action          string `json:"action"`
	EntityType      string `json:"entityType"`
	EntityID        uint   `json:"entityId"`
	PerformedByID   *uint  `json:"performedById,omitempty"`
	PerformedByName string `json:"performedByName,omitempty"`
	Note            string `json:"note,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// SkippedPaymentLineDTO reports a payments text line that was dropped
type SkippedPaymentLineDTO struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// TransitionResultDTO is returned by every workflow mutation
type TransitionResultDTO struct {
	Project             ProjectDTO              `json:"project"`
	Changed             bool                    `json:"changed"`
	Message             string                  `json:"message,omitempty"`
	SkippedPaymentLines []SkippedPaymentLineDTO `json:"skippedPaymentLines,omitempty"`
}

// AmountSplitDTO is a released/pending money pair
type AmountSplitDTO struct {
	Total   decimal.Decimal `json:"total"`
	Pending decimal.Decimal `json:"pending"`
}

type EarningsLineDTO struct {
	ProjectID    uint            `json:"projectId"`
	ProjectTitle string          `json:"projectTitle"`
	Channel      string          `json:"channel"`
	Amount       decimal.Decimal `json:"amount"`
	Released     bool            `json:"released"`
}

type EarningsSummaryDTO struct {
	UserID  uint              `json:"userId"`
	Total   decimal.Decimal   `json:"total"`
	Pending decimal.Decimal   `json:"pending"`
	Lines   []EarningsLineDTO `json:"lines"`
}

type PayoutDTO struct {
	ProjectID uint            `json:"projectId"`
	UserID    uint            `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
}

// CountsDTO is a keyed count breakdown with its total
type CountsDTO struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

type ExecutionProjectsDTO struct {
	Ongoing   []ProjectSummaryDTO `json:"ongoing"`
	Completed []ProjectSummaryDTO `json:"completed"`
}

// Request DTOs

type CreateProjectRequest struct {
	ClientID    uint   `json:"clientId" validate:"required,gt=0"`
	LeadID      *uint  `json:"leadId,omitempty"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=5000"`
}

type RevertStageRequest struct {
	Note string `json:"note,omitempty" validate:"max=2000"`
}

type AssignProjectRequest struct {
	DeveloperID          uint    `json:"developerId" validate:"required,gt=0"`
	TeamIDs              []uint  `json:"teamIds" validate:"dive,gt=0"`
	FetcherCommission    *string `json:"fetcherCommissionAmount,omitempty"`
	DeveloperPayout      *string `json:"developerPayoutAmount,omitempty"`
	AgencyProfit         *string `json:"agencyProfit,omitempty"`
	DesignerPayout       *string `json:"designerPayoutAmount,omitempty"`
	SEOPayout            *string `json:"seoPayoutAmount,omitempty"`
	GBPPayout            *string `json:"gbpPayoutAmount,omitempty"`
	SocialMediaPayout    *string `json:"socialMediaPayoutAmount,omitempty"`
	AssignedPaymentsText string  `json:"assignedPaymentsText,omitempty"`
}

type ExecutionUpdateRequest struct {
	Status                  string  `json:"status,omitempty" validate:"omitempty,oneof=in_progress completed"`
	DeveloperNotes          *string `json:"developerNotes,omitempty" validate:"omitempty,max=5000"`
	DeveloperMockLink       *string `json:"developerMockLink,omitempty" validate:"omitempty,url"`
	FinalDeliveryLink       *string `json:"finalDeliveryLink,omitempty" validate:"omitempty,url"`
	SubmitForClientApproval bool    `json:"submitForClientApproval"`
}

type PostUpdateRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
	Links   string `json:"links,omitempty" validate:"max=5000"`
}

type UpdateFinancialsRequest struct {
	TotalPrice        *string `json:"totalPrice,omitempty"`
	MonthlyPrice      *string `json:"monthlyPrice,omitempty"`
	Payment40Received *bool   `json:"payment40Received,omitempty"`
	Payment60Received *bool   `json:"payment60Received,omitempty"`
}

type UpdatePreviewLinksRequest struct {
	DeveloperMockLink *string `json:"developerMockLink,omitempty" validate:"omitempty,url"`
	FinalDeliveryLink *string `json:"finalDeliveryLink,omitempty" validate:"omitempty,url"`
	DeveloperNotes    *string `json:"developerNotes,omitempty" validate:"omitempty,max=5000"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required,max=50"`
}

type LinkClientUserRequest struct {
	UserID uint `json:"userId" validate:"required,gt=0"`
}

type ClientDTO struct {
	ID           uint     `json:"id"`
	BusinessName string   `json:"businessName"`
	ContactEmail string   `json:"contactEmail,omitempty"`
	User         *UserDTO `json:"user,omitempty"`
	CreatedByID  uint     `json:"createdById"`
	CreatedAt    string   `json:"createdAt"`
}

// Pagination
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// HealthDTO is the liveness payload
type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}
