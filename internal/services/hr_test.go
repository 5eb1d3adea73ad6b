package services

import (
	"testing"

	"github.com/diewo77/taskflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalDays(t *testing.T) {
	assert.Equal(t, 1, TotalDays("2026-03-02", "2026-03-02"))
	assert.Equal(t, 5, TotalDays("2026-03-02", "2026-03-06"))
	assert.Equal(t, 1, TotalDays("2026-03-06", "2026-03-02"))
	assert.Equal(t, 1, TotalDays("bad", "2026-03-02"))
}

func TestLeave_Lifecycle(t *testing.T) {
	f := newFixture(t)
	f.svc.HR.SetClock(fixedClock("2026-03-01T08:00:00Z"))

	req, err := f.svc.HR.CreateLeave(f.ctx, f.bob, LeaveInput{LeaveType: "sick", StartDate: "2026-03-02", EndDate: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, req.TotalDays)
	assert.Equal(t, models.LeavePending, req.Status)
	assert.Equal(t, models.LeaveSick, req.LeaveType)

	_, err = f.svc.HR.DecideLeave(f.ctx, f.manager, req.ID, "approved")
	require.NoError(t, err)

	daves, err := f.svc.HR.CreateLeave(f.ctx, f.dave, LeaveInput{StartDate: "2026-03-02", EndDate: "2026-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 3, daves.TotalDays)
	// dave is outside the manager's teams
	_, err = f.svc.HR.DecideLeave(f.ctx, f.manager, daves.ID, "approved")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.HR.DecideLeave(f.ctx, f.admin, daves.ID, "maybe")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Invalid leave status.", ve.Message)

	decided, err := f.svc.HR.DecideLeave(f.ctx, f.admin, daves.ID, "rejected")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveRejected, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, f.admin.UserID, *decided.DecidedBy)

	_, err = f.svc.HR.DecideLeave(f.ctx, f.bob, req.ID, "approved")
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.HR.ListMine(f.ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.LeaveApproved, mine[0].Status)
	require.NotNil(t, mine[0].DeciderName)
	assert.Equal(t, "Carol", *mine[0].DeciderName)

	visible, err := f.svc.HR.ListVisible(f.ctx, f.manager)
	require.NoError(t, err)
	assert.Len(t, visible, 1)
	visible, err = f.svc.HR.ListVisible(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestLeave_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		in   LeaveInput
		want string
	}{
		{LeaveInput{StartDate: "2026-03-02"}, "Start and end date are required."},
		{LeaveInput{StartDate: "2026-03-02", EndDate: "03/04"}, "Dates must be in YYYY-MM-DD format."},
		{LeaveInput{StartDate: "2026-03-05", EndDate: "2026-03-02"}, "End date must be on or after start date."},
	}
	for _, c := range cases {
		_, err := f.svc.HR.CreateLeave(f.ctx, f.bob, c.in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, c.want, ve.Message)
	}
}

func TestProfiles_Upsert(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.HR.UpsertProfile(f.ctx, f.manager, ProfileInput{UserID: f.bob.UserID, Department: "Eng", EmploymentType: "contract", ManagerUserID: f.manager.UserID, JoiningDate: "2025-01-15"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeeklyHours, p.WeeklyHourTarget)
	assert.Equal(t, "contract", p.EmploymentType)

	p, err = f.svc.HR.UpsertProfile(f.ctx, f.manager, ProfileInput{UserID: f.bob.UserID, Department: "Platform", WeeklyHourTarget: 32})
	require.NoError(t, err)
	assert.Equal(t, "Platform", p.Department)
	assert.Equal(t, 32, p.WeeklyHourTarget)
	assert.Nil(t, p.ManagerUserID)

	_, err = f.svc.HR.UpsertProfile(f.ctx, f.manager, ProfileInput{UserID: f.dave.UserID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.HR.UpsertProfile(f.ctx, f.admin, ProfileInput{UserID: f.dave.UserID, ManagerUserID: f.other.UserID})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Select a valid manager.", ve.Message)

	_, err = f.svc.HR.UpsertProfile(f.ctx, f.admin, ProfileInput{UserID: f.other.UserID})
	assert.ErrorIs(t, err, ErrNotFound)

	rows, err := f.svc.HR.ListProfiles(f.ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob@acme.test", rows[0].UserEmail)

	mine, err := f.svc.HR.ProfileFor(f.ctx, f.bob.TenantID, f.bob.UserID)
	require.NoError(t, err)
	require.NotNil(t, mine)
}
