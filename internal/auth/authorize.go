package auth

import "github.com/straye-as/pipeline-api/internal/domain"

// Role groups used to gate workflow operations
var (
	// ProjectManagementRoles may assign, transition and release payment on projects
	ProjectManagementRoles = []domain.RoleName{domain.RoleProjectManager, domain.RoleAdmin}

	// FetcherRoles may originate projects
	FetcherRoles = []domain.RoleName{
		domain.RoleColdCaller,
		domain.RoleSalesCloser,
		domain.RoleProjectManager,
		domain.RoleAdmin,
	}

	// ExecutionRoles are the roles that staff a project team
	ExecutionRoles = []domain.RoleName{
		domain.RoleDesigner,
		domain.RoleDeveloper,
		domain.RoleSEO,
		domain.RoleGBP,
		domain.RoleSocialMedia,
	}
)

// HasRole reports whether the profile satisfies role. Admin satisfies every
// role, including names that were never created. A nil profile has no roles.
func HasRole(profile *domain.UserProfile, role domain.RoleName) bool {
	if profile == nil {
		return false
	}
	if profile.Holds(domain.RoleAdmin) {
		return true
	}
	return profile.Holds(role)
}

// Authorize reports whether the profile satisfies at least one allowed role.
// An empty allowed set denies everyone.
func Authorize(profile *domain.UserProfile, allowed ...domain.RoleName) bool {
	for _, role := range allowed {
		if HasRole(profile, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the profile holds the admin role
func IsAdmin(profile *domain.UserProfile) bool {
	return profile.Holds(domain.RoleAdmin)
}
