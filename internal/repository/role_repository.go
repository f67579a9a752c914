package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RoleRepository is the role store: roles, user profiles and their membership
type RoleRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB, logger *zap.Logger) *RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the role with name, creating it on first use
func (r *RoleRepository) GetOrCreate(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	if strings.TrimSpace(string(name)) == "" {
		return nil, fmt.Errorf("role name is required")
	}
	var role domain.Role
	err := r.db.WithContext(ctx).
		Where(domain.Role{Name: name}).
		Attrs(domain.Role{DisplayName: name.Label()}).
		FirstOrCreate(&role).Error
	if err != nil {
		r.logger.Error("failed to get or create role", zap.String("role", string(name)), zap.Error(err))
		return nil, err
	}
	return &role, nil
}

// GetByName returns an existing role
func (r *RoleRepository) GetByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// GetProfile returns the profile of userID with its roles and user loaded.
// A user without a profile gets an empty one. Unknown users return gorm.ErrRecordNotFound.
func (r *RoleRepository) GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Preload("User").
		Where("user_id = ?", userID).
		First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return r.ensureProfile(ctx, userID)
}

func (r *RoleRepository) ensureProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	profile := domain.UserProfile{UserID: userID}
	if err := r.db.WithContext(ctx).Where(domain.UserProfile{UserID: userID}).FirstOrCreate(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	profile.User = &user
	return &profile, nil
}

// AddRole grants role to userID. Granting a held role is a no-op.
func (r *RoleRepository) AddRole(ctx context.Context, userID uint, name domain.RoleName) (*domain.UserProfile, error) {
	role, err := r.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Holds(name) {
		return profile, nil
	}
	if err := r.db.WithContext(ctx).Model(profile).Association("Roles").Append(role); err != nil {
		r.logger.Error("failed to add role",
			zap.Uint("user_id", userID),
			zap.String("role", string(name)),
			zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// RemoveRole revokes role from userID. Revoking a role that is not held is a no-op.
func (r *RoleRepository) RemoveRole(ctx context.Context, userID uint, name domain.RoleName) (*domain.UserProfile, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var role *domain.Role
	for i := range profile.Roles {
		if profile.Roles[i].Name == name {
			role = &profile.Roles[i]
			break
		}
	}
	if role == nil {
		return profile, nil
	}

	if err := r.db.WithContext(ctx).Model(profile).Association("Roles").Delete(role); err != nil {
		r.logger.Error("failed to remove role",
			zap.Uint("user_id", userID),
			zap.String("role", string(name)),
			zap.Error(err))
		return nil, err
	}
	return r.GetProfile(ctx, userID)
}

// ListUsersWithRole returns users holding role directly
func (r *RoleRepository) ListUsersWithRole(ctx context.Context, name domain.RoleName) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
		Joins("JOIN user_profile_roles ON user_profile_roles.user_profile_id = user_profiles.id").
		Joins("JOIN roles ON roles.id = user_profile_roles.role_id").
		Where("roles.name = ?", name).
		Order("users.username ASC").
		Find(&users).Error
	return users, err
}

// ResolveUser finds a user by numeric id (all digits) or by username
func (r *RoleRepository) ResolveUser(ctx context.Context, key string) (*domain.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var user domain.User
	query := r.db.WithContext(ctx)
	if isDigits(key) {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, gorm.ErrRecordNotFound
		}
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("username = ?", key)
	}
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
