package auth

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
)

// UserContext holds the authenticated caller
type UserContext struct {
	UserID   uint
	Username string
	Profile  *domain.UserProfile
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// ProfileFromContext returns the caller's profile, or nil when unauthenticated
func ProfileFromContext(ctx context.Context) *domain.UserProfile {
	if user, ok := FromContext(ctx); ok && user != nil {
		return user.Profile
	}
	return nil
}

// HasRole checks the caller's profile, honoring the admin override
func (u *UserContext) HasRole(role domain.RoleName) bool {
	if u == nil {
		return false
	}
	return HasRole(u.Profile, role)
}

// HasAnyRole checks if the caller satisfies any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.RoleName) bool {
	if u == nil {
		return false
	}
	return Authorize(u.Profile, roles...)
}

// RolesAsStrings returns the held role names
func (u *UserContext) RolesAsStrings() []string {
	if u == nil {
		return nil
	}
	return u.Profile.RoleNames()
}
