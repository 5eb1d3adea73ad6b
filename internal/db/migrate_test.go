package db

import (
	"errors"
	"testing"

	"github.com/diewo77/taskflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestMigrate_IsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	v, err := CurrentVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, len(Steps), v)

	var count int64
	conn.Model(&models.SchemaVersion{}).Count(&count)
	assert.Equal(t, int64(len(Steps)), count)

	for _, table := range []string{"tenants", "users", "team_members", "tasks", "task_activity", "daily_reports", "employee_profiles", "leave_requests"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestMigrate_UniqueConstraints(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn))

	require.NoError(t, conn.Create(&models.Tenant{Name: "Acme", Slug: "acme"}).Error)
	assert.Error(t, conn.Create(&models.Tenant{Name: "Acme 2", Slug: "acme"}).Error, "slug must be unique")

	require.NoError(t, conn.Create(&models.User{TenantID: 1, Name: "A", Email: "a@acme.com", PasswordHash: "x", Role: models.RoleUser}).Error)
	assert.Error(t, conn.Create(&models.User{TenantID: 1, Name: "A2", Email: "a@acme.com", PasswordHash: "x", Role: models.RoleUser}).Error)
	assert.NoError(t, conn.Create(&models.User{TenantID: 2, Name: "A3", Email: "a@acme.com", PasswordHash: "x", Role: models.RoleUser}).Error,
		"the same email may exist in another tenant")

	require.NoError(t, conn.Create(&models.DailyReport{TenantID: 1, UserID: 1, ReportDate: "2024-01-10"}).Error)
	assert.Error(t, conn.Create(&models.DailyReport{TenantID: 1, UserID: 1, ReportDate: "2024-01-10"}).Error)
}

func TestMigrateSteps_FailedStepIsNotRecorded(t *testing.T) {
	conn := openTestDB(t)
	boom := errors.New("boom")
	steps := []Step{
		{Version: 1, Name: "ok", Apply: func(tx *gorm.DB) error { return nil }},
		{Version: 2, Name: "broken", Apply: func(tx *gorm.DB) error { return boom }},
	}
	err := MigrateSteps(conn, steps)
	require.ErrorIs(t, err, boom)

	v, err := CurrentVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestReset(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn))
	require.NoError(t, conn.Create(&models.Tenant{Name: "Acme", Slug: "acme"}).Error)

	require.NoError(t, Reset(conn))

	var count int64
	conn.Model(&models.Tenant{}).Count(&count)
	assert.Zero(t, count)
	v, _ := CurrentVersion(conn)
	assert.Equal(t, len(Steps), v)
}
