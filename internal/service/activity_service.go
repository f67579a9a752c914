package service

import (
	"context"
	"time"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// Activity actions
const (
	ActionProjectCreated          = "project_created"
	ActionAdvanceStage            = "advance_stage"
	ActionRevertStage             = "revert_stage"
	ActionAssignDeveloper         = "assign_developer"
	ActionDeveloperUpdate         = "developer_update"
	ActionSubmitForClientApproval = "submit_for_client_approval"
	ActionMarkPaymentReleased     = "mark_payment_released"
	ActionUpdateFinancials        = "update_financials"
	ActionUpdatePreviewLinks      = "update_preview_links"
	ActionProjectUpdate           = "project_update"
	ActionRoleAdded               = "role_added"
	ActionRoleRemoved             = "role_removed"
	ActionClientLinked            = "client_linked"
	ActionClientUnlinked          = "client_unlinked"
)

// Activity entity types
const (
	EntityProject = "project"
	EntityUser    = "user"
	EntityClient  = "client"
)

// ActivityService is the write-only audit sink. Recording never fails the
// calling operation.
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	timeout      time.Duration
	logger       *zap.Logger
}

func NewActivityService(activityRepo *repository.ActivityRepository, timeout time.Duration, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		timeout:      timeout,
		logger:       logger,
	}
}

// Record appends an entry. Failures are logged at Warn. The write is detached
// from ctx cancellation so a caller that has already succeeded still gets its
// trail, bounded by the configured timeout.
func (s *ActivityService) Record(ctx context.Context, action, entityType string, entityID uint, actor *auth.UserContext, note string) {
	entry := &domain.ActivityLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Note:       note,
		Timestamp:  time.Now(),
	}
	if actor != nil {
		id := actor.UserID
		entry.PerformedByID = &id
	}

	writeCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, s.timeout)
		defer cancel()
	}

	if err := s.activityRepo.Create(writeCtx, entry); err != nil {
		s.logger.Warn("failed to log activity",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Uint("entity_id", entityID),
			zap.Error(err))
	}
}
