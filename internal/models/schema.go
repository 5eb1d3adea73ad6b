package models

import "time"

// SchemaVersion records an applied schema migration step.
type SchemaVersion struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	AppliedAt time.Time `gorm:"not null" json:"applied_at"`
}

// All returns every persisted model in dependency order.
func All() []any {
	return []any{
		&Tenant{}, &User{}, &Team{}, &TeamMember{}, &Project{},
		&Task{}, &TaskComment{}, &TaskActivity{}, &TaskAttachment{},
		&DailyReport{}, &EmployeeProfile{}, &LeaveRequest{},
	}
}
