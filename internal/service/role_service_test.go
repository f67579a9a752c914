package service_test

import (
	"testing"

	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleName(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.RoleName
		wantErr bool
	}{
		{raw: "developer", want: domain.RoleDeveloper},
		{raw: "  SEO ", want: domain.RoleSEO},
		{raw: "video_editor", want: "video_editor"},
		{raw: "", wantErr: true},
		{raw: "9lives", wantErr: true},
		{raw: "with space", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := service.ParseRoleName(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, service.ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleService(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	user := testutil.CreateUser(t, f.db, "newbie")
	ctx := f.as(t, admin)

	t.Run("add creates unknown roles lazily and is idempotent", func(t *testing.T) {
		profile, err := f.roles.AddRole(ctx, user.ID, "video_editor")
		require.NoError(t, err)
		assert.True(t, profile.Holds("video_editor"))

		profile, err = f.roles.AddRole(ctx, user.ID, "video_editor")
		require.NoError(t, err)
		assert.Len(t, profile.Roles, 1)

		var n int64
		require.NoError(t, f.db.Model(&domain.ActivityLog{}).
			Where("entity_type = ? AND entity_id = ? AND action = ?", service.EntityUser, user.ID, service.ActionRoleAdded).
			Count(&n).Error)
		assert.Equal(t, int64(1), n)
	})

	t.Run("granting developer clears the cached developer list", func(t *testing.T) {
		_, err := f.dashboard.DevelopersList(ctx)
		require.NoError(t, err)
		require.True(t, f.cached(t, cache.KeyAdminDevelopers))

		_, err = f.roles.AddRole(ctx, user.ID, "developer")
		require.NoError(t, err)
		assert.False(t, f.cached(t, cache.KeyAdminDevelopers))

		devs, err := f.dashboard.DevelopersList(ctx)
		require.NoError(t, err)
		require.Len(t, devs, 1)
		assert.Equal(t, "newbie", devs[0].Username)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		profile, err := f.roles.RemoveRole(ctx, user.ID, "developer")
		require.NoError(t, err)
		assert.False(t, profile.Holds(domain.RoleDeveloper))

		profile, err = f.roles.RemoveRole(ctx, user.ID, "developer")
		require.NoError(t, err)
		assert.False(t, profile.Holds(domain.RoleDeveloper))
	})

	t.Run("last admin cannot be removed", func(t *testing.T) {
		_, err := f.roles.RemoveRole(ctx, admin.ID, "admin")
		assert.ErrorIs(t, err, service.ErrCannotRemoveLastAdmin)
	})

	t.Run("only admin manages roles", func(t *testing.T) {
		_, err := f.roles.AddRole(f.as(t, pm), user.ID, "designer")
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("profile visibility", func(t *testing.T) {
		_, err := f.roles.GetProfile(f.as(t, user), user.ID)
		assert.NoError(t, err)
		_, err = f.roles.GetProfile(f.as(t, user), pm.ID)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
		_, err = f.roles.GetProfile(f.as(t, pm), 98765)
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

func TestClientService(t *testing.T) {
	f := newFixture(t)
	pm := testutil.CreateUser(t, f.db, "pm", domain.RoleProjectManager)
	owner := testutil.CreateUser(t, f.db, "owner")
	client := testutil.CreateClient(t, f.db, "acme", pm.ID)
	ctx := f.as(t, pm)

	linked, err := f.clients.LinkUser(ctx, client.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	assert.Equal(t, owner.ID, *linked.UserID)
	assert.True(t, testutil.LoadProfile(t, f.db, owner.ID).Holds(domain.RoleClient))

	unlinked, err := f.clients.UnlinkUser(ctx, client.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.UserID)
	assert.False(t, testutil.LoadProfile(t, f.db, owner.ID).Holds(domain.RoleClient))

	_, err = f.clients.LinkUser(ctx, client.ID, 5555)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
	_, err = f.clients.LinkUser(ctx, 5555, owner.ID)
	assert.ErrorIs(t, err, service.ErrClientNotFound)
	_, err = f.clients.GetClient(f.as(t, owner), client.ID)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}
