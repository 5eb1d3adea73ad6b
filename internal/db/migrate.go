package db

import (
	"fmt"
	"time"

	"github.com/diewo77/taskflow/internal/models"
	"gorm.io/gorm"
)

// Step is one versioned schema change.
type Step struct {
	Version int
	Name    string
	Apply   func(tx *gorm.DB) error
}

// Steps is the ordered schema history. Append only; never edit an applied step.
var Steps = []Step{
	{Version: 1, Name: "initial schema", Apply: func(tx *gorm.DB) error {
		return tx.AutoMigrate(models.All()...)
	}},
	{Version: 2, Name: "report and leave lookup indexes", Apply: func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_leave_requests_tenant_status ON leave_requests (tenant_id, status)").Error; err != nil {
			return err
		}
		return tx.Exec("CREATE INDEX IF NOT EXISTS idx_daily_reports_tenant_date ON daily_reports (tenant_id, report_date)").Error
	}},
}

// Migrate applies every step that is not yet recorded in schema_versions.
// It is idempotent and meant to run once at startup.
func Migrate(conn *gorm.DB) error {
	return MigrateSteps(conn, Steps)
}

// MigrateSteps applies steps in version order, each in its own transaction.
func MigrateSteps(conn *gorm.DB, steps []Step) error {
	if err := conn.AutoMigrate(&models.SchemaVersion{}); err != nil {
		return fmt.Errorf("schema_versions: %w", err)
	}
	var applied []int
	if err := conn.Model(&models.SchemaVersion{}).Pluck("version", &applied).Error; err != nil {
		return fmt.Errorf("read schema versions: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, step := range steps {
		if done[step.Version] {
			continue
		}
		err := conn.Transaction(func(tx *gorm.DB) error {
			if err := step.Apply(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaVersion{Version: step.Version, Name: step.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", step.Version, step.Name, err)
		}
	}
	return nil
}

// CurrentVersion returns the highest applied version, 0 when none.
func CurrentVersion(conn *gorm.DB) (int, error) {
	var v int
	err := conn.Model(&models.SchemaVersion{}).Select("COALESCE(MAX(version), 0)").Scan(&v).Error
	return v, err
}

// Reset drops every table and re-applies the schema.
func Reset(conn *gorm.DB) error {
	tables := append(models.All(), &models.SchemaVersion{})
	for i := len(tables) - 1; i >= 0; i-- {
		if err := conn.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("drop %T: %w", tables[i], err)
		}
	}
	return Migrate(conn)
}
