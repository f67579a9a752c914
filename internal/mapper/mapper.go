package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/ledger"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
}

// ToUserDTOs converts a slice of users
func ToUserDTOs(users []domain.User) []domain.UserDTO {
	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = ToUserDTO(&users[i])
	}
	return dtos
}

// ToProfileDTO converts UserProfile to ProfileDTO
func ToProfileDTO(profile *domain.UserProfile) domain.ProfileDTO {
	roles := profile.RoleNames()
	if roles == nil {
		roles = []string{}
	}
	return domain.ProfileDTO{
		UserID:   profile.UserID,
		Username: profile.Username(),
		Roles:    roles,
	}
}

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	dto := domain.ProjectDTO{
		ID:                  project.ID,
		Title:               project.Title,
		Description:         project.Description,
		ClientID:            project.ClientID,
		LeadID:              project.LeadID,
		CreatedByID:         project.CreatedByID,
		Status:              project.Status,
		CurrentStage:        project.CurrentStage,
		CurrentStageDisplay: project.CurrentStage.DisplayName(),
		StageIndex:          int(project.CurrentStage),
		AssignedTeam:        ToUserDTOs(project.AssignedTeam),
		Payouts: domain.PayoutFieldsDTO{
			FetcherCommission: decimalPtr(project.FetcherCommissionAmount),
			DeveloperPayout:   decimalPtr(project.DeveloperPayoutAmount),
			AgencyProfit:      decimalPtr(project.AgencyProfit),
			DesignerPayout:    decimalPtr(project.DesignerPayoutAmount),
			SEOPayout:         decimalPtr(project.SEOPayoutAmount),
			GBPPayout:         decimalPtr(project.GBPPayoutAmount),
			SocialMediaPayout: decimalPtr(project.SocialMediaPayoutAmount),
		},
		AssignedPayments:     project.AssignedPayments,
		AdminPaymentReleased: project.AdminPaymentReleased,
		TotalPrice:           decimalPtr(project.TotalPrice),
		MonthlyPrice:         decimalPtr(project.MonthlyPrice),
		Payment40Received:    project.Payment40Received,
		Payment60Received:    project.Payment60Received,
		DeveloperMockLink:    project.DeveloperMockLink,
		FinalDeliveryLink:    project.FinalDeliveryLink,
		DeveloperNotes:       project.DeveloperNotes,
		DateAssigned:         formatTimePtr(project.DateAssigned),
		DateCompleted:        formatTimePtr(project.DateCompleted),
		CreatedAt:            formatTime(project.CreatedAt),
		UpdatedAt:            formatTime(project.UpdatedAt),
	}

	if project.AssignedTo != nil {
		dev := ToUserDTO(project.AssignedTo)
		dto.AssignedTo = &dev
	} else if project.AssignedToID != nil {
		dto.AssignedTo = &domain.UserDTO{ID: *project.AssignedToID}
	}

	return dto
}

// ToProjectSummaryDTO converts Project to the compact listing form
func ToProjectSummaryDTO(project *domain.Project) domain.ProjectSummaryDTO {
	return domain.ProjectSummaryDTO{
		ID:           project.ID,
		Title:        project.Title,
		ClientID:     project.ClientID,
		Status:       project.Status,
		CurrentStage: project.CurrentStage,
		UpdatedAt:    formatTime(project.UpdatedAt),
	}
}

// ToProjectUpdateDTO converts ProjectUpdate to ProjectUpdateDTO
func ToProjectUpdateDTO(update *domain.ProjectUpdate) domain.ProjectUpdateDTO {
	dto := domain.ProjectUpdateDTO{
		ID:        update.ID,
		ProjectID: update.ProjectID,
		AuthorID:  update.AuthorID,
		Message:   update.Message,
		CreatedAt: formatTime(update.CreatedAt),
	}
	if update.Author != nil {
		dto.AuthorName = update.Author.Username
	}
	for _, line := range strings.Split(update.Links, "\n") {
		if link := strings.TrimSpace(line); link != "" {
			dto.Links = append(dto.Links, link)
		}
	}
	return dto
}

// ToActivityLogDTO converts ActivityLog to ActivityLogDTO
func ToActivityLogDTO(entry *domain.ActivityLog) domain.ActivityLogDTO {
	dto := domain.ActivityLogDTO{
		ID:            entry.ID,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		PerformedByID: entry.PerformedByID,
		Note:          entry.Note,
		Timestamp:     formatTime(entry.Timestamp),
	}
	if entry.PerformedBy != nil {
		dto.PerformedByName = entry.PerformedBy.Username
	}
	return dto
}

// ToSkippedPaymentLineDTOs converts parser skips for the response
func ToSkippedPaymentLineDTOs(lines []ledger.SkippedLine) []domain.SkippedPaymentLineDTO {
	if len(lines) == 0 {
		return nil
	}
	dtos := make([]domain.SkippedPaymentLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = domain.SkippedPaymentLineDTO{Line: l.Line, Text: l.Text, Reason: l.Reason}
	}
	return dtos
}

// ToEarningsSummaryDTO converts a ledger summary for userID
func ToEarningsSummaryDTO(userID uint, summary ledger.Summary) domain.EarningsSummaryDTO {
	lines := make([]domain.EarningsLineDTO, 0, len(summary.Lines))
	for _, l := range summary.Lines {
		lines = append(lines, domain.EarningsLineDTO{
			ProjectID:    l.ProjectID,
			ProjectTitle: l.ProjectTitle,
			Channel:      string(l.Channel),
			Amount:       l.Amount,
			Released:     l.Bucket == ledger.BucketReleased,
		})
	}
	return domain.EarningsSummaryDTO{
		UserID:  userID,
		Total:   summary.Total,
		Pending: summary.Pending,
		Lines:   lines,
	}
}

// ToAmountSplitDTO converts a released/pending pair
func ToAmountSplitDTO(split ledger.Split) domain.AmountSplitDTO {
	return domain.AmountSplitDTO{Total: split.Total, Pending: split.Pending}
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}

// ToClientDTO converts Client entity to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	dto := domain.ClientDTO{
		ID:           client.ID,
		BusinessName: client.BusinessName,
		ContactEmail: client.ContactEmail,
		CreatedByID:  client.CreatedByID,
		CreatedAt:    formatTime(client.CreatedAt),
	}
	if client.User != nil {
		user := ToUserDTO(client.User)
		dto.User = &user
	}
	return dto
}

// ToPaginatedResponse wraps a page of DTOs
func ToPaginatedResponse(data interface{}, total int64, page, pageSize int) domain.PaginatedResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
