package models

import "time"

const ReportSubmitted = "submitted"

// DailyReport is the single work report a user files for a calendar date.
type DailyReport struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    uint      `gorm:"not null;index" json:"tenant_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_daily_reports_user_date,priority:1" json:"user_id"`
	ReportDate  string    `gorm:"size:10;not null;uniqueIndex:idx_daily_reports_user_date,priority:2;index" json:"report_date"`
	StartTime   string    `gorm:"size:8;not null;default:''" json:"start_time"`
	EndTime     string    `gorm:"size:8;not null;default:''" json:"end_time"`
	TotalHours  float64   `gorm:"not null;default:0" json:"total_hours"`
	WorkSummary string    `gorm:"type:text;not null;default:''" json:"work_summary"`
	Blockers    string    `gorm:"type:text;not null;default:''" json:"blockers"`
	NextPlan    string    `gorm:"type:text;not null;default:''" json:"next_plan"`
	Status      string    `gorm:"size:16;not null;default:submitted" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *DailyReport) ScopeID() uint { return r.TenantID }
