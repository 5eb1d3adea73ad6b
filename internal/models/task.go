package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

var TaskStatuses = []TaskStatus{StatusOpen, StatusInProgress, StatusDone}

func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusOpen, StatusInProgress, StatusDone:
		return st, true
	}
	return "", false
}

func (s TaskStatus) Label() string {
	switch s {
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	}
	return "Open"
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority falls back to medium for anything outside the enum.
func ParsePriority(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityMedium
}

// Task is a unit of work assigned to one user.
// CompletedAt is set exactly when Status is done.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TenantID    uint       `gorm:"not null;index:idx_tasks_tenant_created,priority:1" json:"tenant_id"`
	ProjectID   *uint      `gorm:"index" json:"project_id,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text;not null;default:''" json:"description"`
	Priority    Priority   `gorm:"size:16;not null;default:medium" json:"priority"`
	Status      TaskStatus `gorm:"size:16;not null;default:open" json:"status"`
	DueDate     *string    `gorm:"size:10" json:"due_date,omitempty"` // YYYY-MM-DD
	CreatedBy   uint       `gorm:"not null;index" json:"created_by"`
	AssignedTo  uint       `gorm:"not null;index" json:"assigned_to"`
	CreatedAt   time.Time  `gorm:"index:idx_tasks_tenant_created,priority:2" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (t *Task) ScopeID() uint { return t.TenantID }

func (t *Task) IsDone() bool { return t.Status == StatusDone }

// SetStatus applies a status change and keeps CompletedAt consistent.
// Entering done stamps now, staying done keeps the original stamp, leaving done clears it.
func (t *Task) SetStatus(s TaskStatus, now time.Time) {
	switch {
	case s == StatusDone && t.CompletedAt == nil:
		ts := now
		t.CompletedAt = &ts
	case s != StatusDone:
		t.CompletedAt = nil
	}
	t.Status = s
}

// DueDateValue returns the due date or "" when unset.
func (t *Task) DueDateValue() string {
	if t.DueDate == nil {
		return ""
	}
	return *t.DueDate
}

type TaskComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskActivity is the audit trail row appended by every task mutation.
type TaskActivity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Action    string    `gorm:"size:255;not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

func (TaskActivity) TableName() string { return "task_activity" }

type TaskAttachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	FilePath  string    `gorm:"size:512;not null" json:"file_path"`
	FileSize  int64     `gorm:"not null;default:0" json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}
