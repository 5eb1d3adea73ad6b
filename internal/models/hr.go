package models

import (
	"strings"
	"time"
)

type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentContract EmploymentType = "contract"
	EmploymentIntern   EmploymentType = "intern"
)

// DefaultWeeklyHours applies when a profile is saved without a positive target.
const DefaultWeeklyHours = 40

var EmploymentTypes = []EmploymentType{EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentIntern}

// ParseEmploymentType falls back to full_time.
func ParseEmploymentType(s string) EmploymentType {
	e := EmploymentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EmploymentTypes {
		if e == known {
			return e
		}
	}
	return EmploymentFullTime
}

// EmployeeProfile holds HR data; at most one per user.
type EmployeeProfile struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TenantID         uint      `gorm:"not null;index" json:"tenant_id"`
	UserID           uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Department       string    `gorm:"size:255;not null;default:''" json:"department"`
	Designation      string    `gorm:"size:255;not null;default:''" json:"designation"`
	EmploymentType   string    `gorm:"size:32;not null;default:full_time" json:"employment_type"`
	Location         string    `gorm:"size:255;not null;default:''" json:"location"`
	ManagerUserID    *uint     `json:"manager_user_id,omitempty"`
	JoiningDate      *string   `gorm:"size:10" json:"joining_date,omitempty"`
	WeeklyHourTarget int       `gorm:"not null;default:40" json:"weekly_hour_target"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p *EmployeeProfile) ScopeID() uint { return p.TenantID }

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

func ParseLeaveStatus(s string) (LeaveStatus, bool) {
	st := LeaveStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case LeavePending, LeaveApproved, LeaveRejected:
		return st, true
	}
	return "", false
}

type LeaveType string

const (
	LeavePaid   LeaveType = "paid"
	LeaveSick   LeaveType = "sick"
	LeaveCasual LeaveType = "casual"
	LeaveUnpaid LeaveType = "unpaid"
)

var LeaveTypes = []LeaveType{LeavePaid, LeaveSick, LeaveCasual, LeaveUnpaid}

// ParseLeaveType falls back to paid.
func ParseLeaveType(s string) LeaveType {
	l := LeaveType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range LeaveTypes {
		if l == known {
			return l
		}
	}
	return LeavePaid
}

type LeaveRequest struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	TenantID  uint        `gorm:"not null;index" json:"tenant_id"`
	UserID    uint        `gorm:"not null;index" json:"user_id"`
	LeaveType LeaveType   `gorm:"size:32;not null;default:paid" json:"leave_type"`
	StartDate string      `gorm:"size:10;not null" json:"start_date"`
	EndDate   string      `gorm:"size:10;not null" json:"end_date"`
	TotalDays int         `gorm:"not null;default:1" json:"total_days"`
	Reason    string      `gorm:"type:text;not null;default:''" json:"reason"`
	Status    LeaveStatus `gorm:"size:16;not null;default:pending" json:"status"`
	DecidedBy *uint       `json:"decided_by,omitempty"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (l *LeaveRequest) ScopeID() uint { return l.TenantID }
