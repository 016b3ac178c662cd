// Package testutil opens throwaway sqlite databases with the production schema.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated sqlite database stored under t.TempDir. A single
// connection is used so concurrent tests serialize like row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "projmatch.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(domain.AllModels()...))
	return db
}

// CreateStudent inserts a student with the given email.
func CreateStudent(t testing.TB, db *gorm.DB, first, last, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: "x",
		Role:         domain.RoleStudent,
		Student:      &domain.StudentProfile{Major: "Software Engineering", Faculty: "Engineering and IT"},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateSupervisor inserts a supervisor with the given quota.
func CreateSupervisor(t testing.TB, db *gorm.DB, first, last, email string, quota int) *domain.User {
	t.Helper()
	u := &domain.User{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: "x",
		Role:         domain.RoleSupervisor,
		Supervisor:   &domain.SupervisorProfile{Expertise: "machine learning, databases", Faculty: "Engineering and IT", Quota: quota},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
