package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHours(t *testing.T) {
	assert.Equal(t, 8.5, CalculateHours("09:00", "17:30"))
	assert.Equal(t, 0.33, CalculateHours("09:00", "09:20"))
	assert.Equal(t, 1.0, CalculateHours("09:00:00", "10:00"))
	assert.Zero(t, CalculateHours("", "17:00"))
	assert.Zero(t, CalculateHours("18:00", "09:00"))
	assert.Zero(t, CalculateHours("nine", "ten"))
}

func TestReports_UpsertOverwritesSameDay(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{Date: "2026-03-02", StartTime: "09:00", EndTime: "17:30", WorkSummary: "draft", Blockers: "none"})
	require.NoError(t, err)
	assert.Equal(t, 8.5, first.TotalHours)

	second, err := f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{Date: "2026-03-02", StartTime: "10:00", EndTime: "12:00", WorkSummary: "final"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "final", second.WorkSummary)
	assert.Equal(t, 2.0, second.TotalHours)
	assert.Empty(t, second.Blockers)

	got, err := f.svc.Reports.ForUserDate(f.ctx, f.bob.TenantID, f.bob.UserID, "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "final", got.WorkSummary)

	none, err := f.svc.Reports.ForUserDate(f.ctx, f.bob.TenantID, f.bob.UserID, "2026-03-03")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReports_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{Date: "2026-03-02", WorkSummary: "  "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Work summary is required.", ve.Message)

	_, err = f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{Date: "yesterday", WorkSummary: "x"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Report date must be a date in YYYY-MM-DD format.", ve.Message)
}

func TestReports_DefaultsToToday(t *testing.T) {
	f := newFixture(t)
	f.svc.Reports.SetClock(fixedClock("2026-03-02T23:30:00Z"))
	r, err := f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{WorkSummary: "x"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", r.ReportDate)

	recent, err := f.svc.Reports.RecentForUser(f.ctx, f.bob, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestReports_TeamDay(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reports.Upsert(f.ctx, f.bob, ReportInput{Date: "2026-03-02", StartTime: "09:00", EndTime: "12:15", WorkSummary: "x"})
	require.NoError(t, err)
	_, err = f.svc.Reports.Upsert(f.ctx, f.dave, ReportInput{Date: "2026-03-02", StartTime: "09:00", EndTime: "10:00", WorkSummary: "y"})
	require.NoError(t, err)

	day, err := f.svc.Reports.TeamDay(f.ctx, f.manager, "2026-03-02", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, day.Submitted)
	assert.Equal(t, 3.25, day.TotalHours)
	require.Len(t, day.Reports, 1)
	assert.Equal(t, "Bob", day.Reports[0].UserName)
	require.Len(t, day.Pending, 1)
	assert.Equal(t, "Carol", day.Pending[0].Name)

	all, err := f.svc.Reports.TeamDay(f.ctx, f.admin, "2026-03-02", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Submitted)
	assert.Len(t, all.Pending, 2)

	one, err := f.svc.Reports.TeamDay(f.ctx, f.admin, "2026-03-02", f.dave.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, one.Submitted)
	assert.Empty(t, one.Pending)

	_, err = f.svc.Reports.TeamDay(f.ctx, f.bob, "2026-03-02", 0)
	assert.ErrorIs(t, err, ErrForbidden)
}
