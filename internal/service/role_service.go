package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrCannotRemoveLastAdmin is returned when revoking admin would leave no admin
var ErrCannotRemoveLastAdmin = errors.New("cannot remove the last admin role")

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// RoleService grants and revokes roles. Admin only.
type RoleService struct {
	roleRepo    *repository.RoleRepository
	activities  *ActivityService
	invalidator *Invalidator
	logger      *zap.Logger
}

// NewRoleService creates a new role service
func NewRoleService(
	roleRepo *repository.RoleRepository,
	activities *ActivityService,
	invalidator *Invalidator,
	logger *zap.Logger,
) *RoleService {
	return &RoleService{
		roleRepo:    roleRepo,
		activities:  activities,
		invalidator: invalidator,
		logger:      logger,
	}
}

// ParseRoleName normalizes a role name. Unknown names are allowed and the
// role is created on first grant.
func ParseRoleName(raw string) (domain.RoleName, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if !roleNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return domain.RoleName(name), nil
}

// GetProfile returns the roles of userID. Callers may read their own
// profile; project management may read anyone's.
func (s *RoleService) GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	actor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.UserID != userID && !auth.Authorize(actor.Profile, auth.ProjectManagementRoles...) {
		return nil, fmt.Errorf("%w: cannot view another user's roles", ErrPermissionDenied)
	}
	return s.loadProfile(ctx, userID)
}

func (s *RoleService) loadProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	profile, err := s.roleRepo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

// AddRole grants role to userID
func (s *RoleService) AddRole(ctx context.Context, userID uint, rawRole string) (*domain.UserProfile, error) {
	actor, err := requireRoles(ctx, "admin role required", domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	role, err := ParseRoleName(rawRole)
	if err != nil {
		return nil, err
	}

	existing, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.Holds(role) {
		return existing, nil
	}

	if _, err := s.roleRepo.AddRole(ctx, userID, role); err != nil {
		return nil, fmt.Errorf("failed to add role: %w", err)
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logRoleChange(ctx, actor, userID, role, ActionRoleAdded)
	return profile, nil
}

// RemoveRole revokes role from userID. The last admin cannot be removed.
func (s *RoleService) RemoveRole(ctx context.Context, userID uint, rawRole string) (*domain.UserProfile, error) {
	actor, err := requireRoles(ctx, "admin role required", domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	role, err := ParseRoleName(rawRole)
	if err != nil {
		return nil, err
	}

	existing, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !existing.Holds(role) {
		return existing, nil
	}

	if role == domain.RoleAdmin {
		last, err := s.isLastAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if last {
			return nil, ErrCannotRemoveLastAdmin
		}
	}

	profile, err := s.roleRepo.RemoveRole(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to remove role: %w", err)
	}

	s.logRoleChange(ctx, actor, userID, role, ActionRoleRemoved)
	return profile, nil
}

func (s *RoleService) isLastAdmin(ctx context.Context) (bool, error) {
	admins, err := s.roleRepo.ListUsersWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return len(admins) <= 1, nil
}

func (s *RoleService) logRoleChange(ctx context.Context, actor *auth.UserContext, userID uint, role domain.RoleName, action string) {
	s.activities.Record(ctx, action, EntityUser, userID, actor, string(role))
	s.invalidator.Invalidate(ctx, MutationRoleChange, nil, nil)

	s.logger.Info("role changed",
		zap.String("action", action),
		zap.Uint("user_id", userID),
		zap.String("role", string(role)),
		zap.Uint("changed_by", actor.UserID))
}
