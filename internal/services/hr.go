package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaveInput struct {
	LeaveType string
	StartDate string
	EndDate   string
	Reason    string
}

type ProfileInput struct {
	UserID           uint
	Department       string
	Designation      string
	EmploymentType   string
	Location         string
	ManagerUserID    uint
	JoiningDate      string
	WeeklyHourTarget int
}

// LeaveRow is a leave request with its requester and decider names.
type LeaveRow struct {
	models.LeaveRequest
	UserName    string  `json:"user_name"`
	DeciderName *string `json:"decider_name,omitempty"`
}

// ProfileRow is an employee profile with the employee's and manager's names.
type ProfileRow struct {
	models.EmployeeProfile
	UserName    string  `json:"user_name"`
	UserEmail   string  `json:"user_email"`
	ManagerName *string `json:"manager_name,omitempty"`
}

// HRService holds employee profiles and leave requests.
type HRService struct {
	db      *gorm.DB
	log     *zap.Logger
	gate    *policy.AuthGate
	index   *MembershipIndex
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewHRService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate, idx *MembershipIndex, m *metrics.Metrics) *HRService {
	if log == nil {
		log = zap.NewNop()
	}
	return &HRService{db: db, log: log, gate: g, index: idx, metrics: m, now: time.Now}
}

// SetClock replaces the time source used for decision stamps.
func (s *HRService) SetClock(now func() time.Time) { s.now = now }

// TotalDays counts the calendar days of an inclusive date range, at least 1.
func TotalDays(start, end string) int {
	from, err1 := time.Parse(validation.DateLayout, start)
	to, err2 := time.Parse(validation.DateLayout, end)
	if err1 != nil || err2 != nil {
		return 1
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// CreateLeave files a pending leave request for the actor.
func (s *HRService) CreateLeave(ctx context.Context, actor models.Actor, in LeaveInput) (*models.LeaveRequest, error) {
	req := models.LeaveRequest{
		TenantID:  actor.TenantID,
		UserID:    actor.UserID,
		LeaveType: models.ParseLeaveType(in.LeaveType),
		StartDate: strings.TrimSpace(in.StartDate),
		EndDate:   strings.TrimSpace(in.EndDate),
		Reason:    strings.TrimSpace(in.Reason),
		Status:    models.LeavePending,
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceLeave, &req)); err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	validation.Required("start_date", req.StartDate, v)
	validation.Required("end_date", req.EndDate, v)
	if !v.Empty() {
		return nil, invalidFields("Start and end date are required.", v)
	}
	validation.Date("start_date", req.StartDate, v)
	validation.Date("end_date", req.EndDate, v)
	if !v.Empty() {
		return nil, invalidFields("Dates must be in YYYY-MM-DD format.", v)
	}
	if req.EndDate < req.StartDate {
		return nil, invalidFields("End date must be on or after start date.", validation.Violations{"end_date": "before_start"})
	}
	req.TotalDays = TotalDays(req.StartDate, req.EndDate)
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, fmt.Errorf("create leave request: %w", err)
	}
	s.log.Info("leave requested", zap.Uint("leave_id", req.ID), zap.Uint("user_id", req.UserID), zap.Int("days", req.TotalDays))
	return &req, nil
}

// DecideLeave sets the status of a leave request of someone actor oversees.
func (s *HRService) DecideLeave(ctx context.Context, actor models.Actor, leaveID uint, status string) (*models.LeaveRequest, error) {
	if leaveID == 0 {
		return nil, invalid("Invalid leave request.")
	}
	var req models.LeaveRequest
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", actor.TenantID, leaveID).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionDecide, policy.ResourceLeave, &req)); err != nil {
		return nil, err
	}
	st, ok := models.ParseLeaveStatus(status)
	if !ok {
		return nil, invalidFields("Invalid leave status.", validation.Violations{"status": "invalid_choice"})
	}
	now := s.now()
	decider := actor.UserID
	err := s.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("tenant_id = ? AND id = ?", req.TenantID, req.ID).
		Updates(map[string]any{"status": st, "decided_by": decider, "decided_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("decide leave request: %w", err)
	}
	req.Status, req.DecidedBy, req.DecidedAt = st, &decider, &now
	s.metrics.LeaveDecided(string(st))
	s.log.Info("leave decided", zap.Uint("leave_id", req.ID), zap.String("status", string(st)), zap.Uint("decided_by", decider))
	return &req, nil
}

func (s *HRService) leaveRows(ctx context.Context, tenantID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Select("leave_requests.*, requester.name AS user_name, decider.name AS decider_name").
		Joins("JOIN users AS requester ON requester.id = leave_requests.user_id").
		Joins("LEFT JOIN users AS decider ON decider.id = leave_requests.decided_by").
		Where("leave_requests.tenant_id = ?", tenantID).
		Order("leave_requests.created_at DESC, leave_requests.id DESC")
}

// ListMine returns the actor's own leave requests, newest first.
func (s *HRService) ListMine(ctx context.Context, actor models.Actor) ([]LeaveRow, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionList, policy.ResourceLeave, nil)); err != nil {
		return nil, err
	}
	var rows []LeaveRow
	err := s.leaveRows(ctx, actor.TenantID).Where("leave_requests.user_id = ?", actor.UserID).Scan(&rows).Error
	return rows, err
}

// ListVisible returns the leave requests of every user actor oversees.
func (s *HRService) ListVisible(ctx context.Context, actor models.Actor) ([]LeaveRow, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionDecide, policy.ResourceLeave, nil)); err != nil {
		return nil, err
	}
	q := s.leaveRows(ctx, actor.TenantID)
	if !actor.IsAdmin() {
		ids, err := s.index.VisibleUserIDs(ctx, actor)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		q = q.Where("leave_requests.user_id IN ?", ids)
	}
	var rows []LeaveRow
	err := q.Scan(&rows).Error
	return rows, err
}

// UpsertProfile creates or replaces the HR profile of a user actor oversees.
func (s *HRService) UpsertProfile(ctx context.Context, actor models.Actor, in ProfileInput) (*models.EmployeeProfile, error) {
	if in.UserID == 0 {
		return nil, invalidFields("User is required.", validation.Violations{"user_id": "required"})
	}
	var subject models.User
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", actor.TenantID, in.UserID).First(&subject).Error; err != nil {
		return nil, notFound(err)
	}
	profile := models.EmployeeProfile{
		TenantID:         actor.TenantID,
		UserID:           subject.ID,
		Department:       strings.TrimSpace(in.Department),
		Designation:      strings.TrimSpace(in.Designation),
		EmploymentType:   string(models.ParseEmploymentType(in.EmploymentType)),
		Location:         strings.TrimSpace(in.Location),
		WeeklyHourTarget: in.WeeklyHourTarget,
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionUpdate, policy.ResourceHRProfile, &profile)); err != nil {
		return nil, err
	}
	if profile.WeeklyHourTarget <= 0 {
		profile.WeeklyHourTarget = models.DefaultWeeklyHours
	}
	if joining := strings.TrimSpace(in.JoiningDate); joining != "" {
		v := make(validation.Violations)
		if validation.Date("joining_date", joining, v); !v.Empty() {
			return nil, invalidFields("Joining date must be in YYYY-MM-DD format.", v)
		}
		profile.JoiningDate = &joining
	}
	if in.ManagerUserID > 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ? AND id = ?", actor.TenantID, in.ManagerUserID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, invalidFields("Select a valid manager.", validation.Violations{"manager_user_id": "invalid_choice"})
		}
		mid := in.ManagerUserID
		profile.ManagerUserID = &mid
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"department", "designation", "employment_type", "location",
			"manager_user_id", "joining_date", "weekly_hour_target", "updated_at",
		}),
	}).Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("save employee profile: %w", err)
	}
	s.log.Info("employee profile saved", zap.Uint("user_id", profile.UserID))
	return s.ProfileFor(ctx, actor.TenantID, profile.UserID)
}

// ProfileFor returns a user's HR profile, or nil when none exists.
func (s *HRService) ProfileFor(ctx context.Context, tenantID, userID uint) (*models.EmployeeProfile, error) {
	var profiles []models.EmployeeProfile
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ?", tenantID, userID).Limit(1).Find(&profiles).Error
	if err != nil || len(profiles) == 0 {
		return nil, err
	}
	return &profiles[0], nil
}

// ListProfiles returns the profiles of the users actor oversees.
func (s *HRService) ListProfiles(ctx context.Context, actor models.Actor) ([]ProfileRow, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionList, policy.ResourceHRProfile, nil)); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.EmployeeProfile{}).
		Select("employee_profiles.*, employee.name AS user_name, employee.email AS user_email, mgr.name AS manager_name").
		Joins("JOIN users AS employee ON employee.id = employee_profiles.user_id").
		Joins("LEFT JOIN users AS mgr ON mgr.id = employee_profiles.manager_user_id").
		Where("employee_profiles.tenant_id = ?", actor.TenantID)
	if !actor.IsAdmin() {
		ids, err := s.index.VisibleUserIDs(ctx, actor)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		q = q.Where("employee_profiles.user_id IN ?", ids)
	}
	var rows []ProfileRow
	err := q.Order("employee.name").Scan(&rows).Error
	return rows, err
}
