package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with the schema
// migrated. A single connection keeps the database alive and serializes
// writers the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pipeline_test_%d?mode=memory&cache=shared&_busy_timeout=5000", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given roles and returns it
func CreateUser(t *testing.T, db *gorm.DB, username string, roles ...domain.RoleName) *domain.User {
	t.Helper()

	user := &domain.User{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)

	profile := &domain.UserProfile{UserID: user.ID}
	require.NoError(t, db.Omit("User").Create(profile).Error)

	for _, name := range roles {
		role := domain.Role{Name: name}
		require.NoError(t, db.Where(domain.Role{Name: name}).Attrs(domain.Role{DisplayName: name.Label()}).FirstOrCreate(&role).Error)
		require.NoError(t, db.Model(profile).Association("Roles").Append(&role))
	}
	return user
}

// LoadProfile returns the user's profile with roles and user preloaded
func LoadProfile(t *testing.T, db *gorm.DB, userID uint) *domain.UserProfile {
	t.Helper()

	var profile domain.UserProfile
	require.NoError(t, db.Preload("Roles").Preload("User").Where("user_id = ?", userID).First(&profile).Error)
	return &profile
}

// UserContext builds an authenticated caller for userID
func UserContext(t *testing.T, db *gorm.DB, user *domain.User) *auth.UserContext {
	t.Helper()

	return &auth.UserContext{
		UserID:   user.ID,
		Username: user.Username,
		Profile:  LoadProfile(t, db, user.ID),
	}
}

// CreateClient inserts a client owned by createdBy
func CreateClient(t *testing.T, db *gorm.DB, name string, createdBy uint) *domain.Client {
	t.Helper()

	client := &domain.Client{
		BusinessName: name,
		ContactEmail: "contact@" + name + ".example.com",
		CreatedByID:  createdBy,
	}
	require.NoError(t, db.Omit("User").Create(client).Error)
	return client
}

// CreateProject inserts a project at the given position. Team members are
// linked through the join table.
func CreateProject(t *testing.T, db *gorm.DB, project *domain.Project) *domain.Project {
	t.Helper()

	if project.Title == "" {
		project.Title = "Test Project"
	}
	if project.Status == "" {
		project.Status = domain.ProjectStatusNew
	}
	if project.Version == 0 {
		project.Version = 1
	}
	if project.ClientID == 0 {
		client := CreateClient(t, db, fmt.Sprintf("client%d", dbCounter.Add(1)), project.CreatedByID)
		project.ClientID = client.ID
	}
	require.NoError(t, db.Omit("AssignedTeam.*", "Client", "CreatedBy", "AssignedTo").Create(project).Error)
	return project
}
