package services

import (
	"context"
	"fmt"
	"math"
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

// RecentReportDays is the window of the "last days" list on the report page.
const RecentReportDays = 7

type ReportInput struct {
	Date        string
	StartTime   string
	EndTime     string
	WorkSummary string
	Blockers    string
	NextPlan    string
}

// ReportRow is a daily report with its author.
type ReportRow struct {
	models.DailyReport
	UserName string `json:"user_name"`
	UserRole string `json:"user_role"`
}

// DaySummary is the team view of one report date.
type DaySummary struct {
	Date       string        `json:"date"`
	Reports    []ReportRow   `json:"reports"`
	Pending    []models.User `json:"pending"`
	Tracked    []models.User `json:"-"`
	Submitted  int           `json:"submitted"`
	TotalHours float64       `json:"total_hours"`
}

type ReportService struct {
	db      *gorm.DB
	log     *zap.Logger
	gate    *policy.AuthGate
	index   *MembershipIndex
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
}

func NewReportService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate, idx *MembershipIndex, m *metrics.Metrics, loc *time.Location) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{db: db, log: log, gate: g, index: idx, metrics: m, loc: loc, now: time.Now}
}

// SetClock replaces the time source used to resolve "today".
func (s *ReportService) SetClock(now func() time.Time) { s.now = now }

// Today is the current date in the configured location.
func (s *ReportService) Today() string {
	return s.now().In(s.loc).Format(validation.DateLayout)
}

func parseClock(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CalculateHours returns the hours between two HH:MM times rounded to two
// decimals, or 0 when either is missing or end is not after start.
func CalculateHours(start, end string) float64 {
	from, ok := parseClock(start)
	if !ok {
		return 0
	}
	to, ok := parseClock(end)
	if !ok || !to.After(from) {
		return 0
	}
	return math.Round(to.Sub(from).Hours()*100) / 100
}

// Upsert saves the actor's report for a date. A second save for the same date
// overwrites the first.
func (s *ReportService) Upsert(ctx context.Context, actor models.Actor, in ReportInput) (*models.DailyReport, error) {
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.Today()
	}
	report := models.DailyReport{
		TenantID:    actor.TenantID,
		UserID:      actor.UserID,
		ReportDate:  date,
		StartTime:   strings.TrimSpace(in.StartTime),
		EndTime:     strings.TrimSpace(in.EndTime),
		WorkSummary: strings.TrimSpace(in.WorkSummary),
		Blockers:    strings.TrimSpace(in.Blockers),
		NextPlan:    strings.TrimSpace(in.NextPlan),
		Status:      models.ReportSubmitted,
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceReport, &report)); err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	if validation.Date("report_date", date, v); !v.Empty() {
		return nil, invalidFields("Report date must be a date in YYYY-MM-DD format.", v)
	}
	if report.WorkSummary == "" {
		return nil, invalidFields("Work summary is required.", validation.Violations{"work_summary": "required"})
	}
	report.TotalHours = CalculateHours(report.StartTime, report.EndTime)

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "report_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_time", "end_time", "total_hours", "work_summary",
			"blockers", "next_plan", "status", "updated_at",
		}),
	}).Create(&report).Error
	if err != nil {
		return nil, fmt.Errorf("save daily report: %w", err)
	}
	s.metrics.ReportSubmitted()
	saved, err := s.ForUserDate(ctx, actor.TenantID, actor.UserID, date)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, ErrNotFound
	}
	return saved, nil
}

// ForUserDate returns a user's report for date, or nil when none was filed.
func (s *ReportService) ForUserDate(ctx context.Context, tenantID, userID uint, date string) (*models.DailyReport, error) {
	var reports []models.DailyReport
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND report_date = ?", tenantID, userID, date).
		Limit(1).Find(&reports).Error
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

// RecentForUser returns the actor's reports of the last days days, newest first.
func (s *ReportService) RecentForUser(ctx context.Context, actor models.Actor, days int) ([]models.DailyReport, error) {
	if days <= 0 {
		days = RecentReportDays
	}
	now := s.now().In(s.loc)
	from := now.AddDate(0, 0, -(days - 1)).Format(validation.DateLayout)
	to := now.Format(validation.DateLayout)
	var reports []models.DailyReport
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND report_date BETWEEN ? AND ?", actor.TenantID, actor.UserID, from, to).
		Order("report_date DESC").
		Find(&reports).Error
	return reports, err
}

// TeamDay summarizes one date over the users actor oversees, optionally
// narrowed to a single user.
func (s *ReportService) TeamDay(ctx context.Context, actor models.Actor, date string, filterUserID uint) (*DaySummary, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionList, policy.ResourceTeamReport, nil)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(date) == "" {
		date = s.Today()
	}
	v := make(validation.Violations)
	if validation.Date("date", date, v); !v.Empty() {
		return nil, invalidFields("Report date must be a date in YYYY-MM-DD format.", v)
	}
	visible, err := s.index.VisibleUsers(ctx, actor)
	if err != nil {
		return nil, err
	}
	tracked := visible
	if filterUserID > 0 {
		tracked = nil
		for _, u := range visible {
			if u.ID == filterUserID {
				tracked = append(tracked, u)
			}
		}
	}

	summary := &DaySummary{Date: date, Tracked: tracked}
	if len(tracked) == 0 {
		return summary, nil
	}
	ids := make([]uint, 0, len(tracked))
	for _, u := range tracked {
		ids = append(ids, u.ID)
	}
	err = s.db.WithContext(ctx).Model(&models.DailyReport{}).
		Select("daily_reports.*, users.name AS user_name, users.role AS user_role").
		Joins("JOIN users ON users.id = daily_reports.user_id").
		Where("daily_reports.tenant_id = ? AND daily_reports.report_date = ? AND daily_reports.user_id IN ?", actor.TenantID, date, ids).
		Order("users.name, daily_reports.id").
		Scan(&summary.Reports).Error
	if err != nil {
		return nil, err
	}

	submitted := make(map[uint]bool, len(summary.Reports))
	for _, r := range summary.Reports {
		submitted[r.UserID] = true
		summary.TotalHours += r.TotalHours
	}
	summary.TotalHours = math.Round(summary.TotalHours*100) / 100
	summary.Submitted = len(summary.Reports)
	for _, u := range tracked {
		if !submitted[u.ID] {
			summary.Pending = append(summary.Pending, u)
		}
	}
	return summary, nil
}
