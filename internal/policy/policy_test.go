package policy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// teamIndex is an in-memory Visibility: manager id -> visible user ids.
type teamIndex map[uint][]uint

func (ti teamIndex) CanSee(_ context.Context, a models.Actor, userID uint) (bool, error) {
	if a.IsAdmin() {
		return true, nil
	}
	for _, id := range ti[a.UserID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

var (
	admin   = models.Actor{UserID: 1, TenantID: 1, Role: models.RoleAdmin}
	manager = models.Actor{UserID: 2, TenantID: 1, Role: models.RoleManager}
	bob     = models.Actor{UserID: 3, TenantID: 1, Role: models.RoleUser}
	dave    = models.Actor{UserID: 4, TenantID: 1, Role: models.RoleUser}
	foreign = models.Actor{UserID: 9, TenantID: 2, Role: models.RoleAdmin}
)

func newGate() *AuthGate {
	return NewAuthGate(teamIndex{2: {2, 3}})
}

func TestRoleProfiles_AreNested(t *testing.T) {
	assert.True(t, ProfileFor(models.RoleManager).Includes(ProfileFor(models.RoleUser)))
	assert.True(t, ProfileFor(models.RoleAdmin).Includes(ProfileFor(models.RoleManager)))
	assert.False(t, ProfileFor(models.RoleUser).Includes(ProfileFor(models.RoleManager)))
	assert.Nil(t, ProfileFor(models.Role("root")))
}

func TestAuthGate_RolePermissions(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    models.Actor
		action   gate.Action
		resource string
		want     bool
	}{
		{"user cannot create tasks", bob, gate.ActionCreate, ResourceTask, false},
		{"manager creates tasks", manager, gate.ActionCreate, ResourceTask, true},
		{"manager cannot delete tasks", manager, gate.ActionDelete, ResourceTask, false},
		{"admin deletes tasks", admin, gate.ActionDelete, ResourceTask, true},
		{"manager cannot create users", manager, gate.ActionCreate, ResourceUser, false},
		{"manager cannot create teams", manager, gate.ActionCreate, ResourceTeam, false},
		{"admin creates projects", admin, gate.ActionCreate, ResourceProject, true},
		{"manager cannot create projects", manager, gate.ActionCreate, ResourceProject, false},
		{"user uses no AI", bob, gate.ActionCreate, ResourceAI, false},
		{"manager uses AI", manager, gate.ActionCreate, ResourceAI, true},
		{"anonymous denied", models.Actor{}, gate.ActionList, ResourceTask, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Can(ctx, tt.actor, tt.action, tt.resource, nil))
		})
	}
}

func TestTaskPolicy(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	task := &models.Task{ID: 10, TenantID: 1, CreatedBy: 2, AssignedTo: 3}

	// completion is the assignee's alone, whatever the role
	assert.NoError(t, g.Authorize(ctx, bob, gate.ActionComplete, ResourceTask, task))
	err := g.Authorize(ctx, admin, gate.ActionComplete, ResourceTask, task)
	require.ErrorIs(t, err, gate.ErrUnauthorized)
	assert.Equal(t, "Only the assignee can mark this task as done.", gate.ReasonOf(err))

	// viewing
	assert.NoError(t, g.Authorize(ctx, bob, gate.ActionView, ResourceTask, task))
	assert.NoError(t, g.Authorize(ctx, manager, gate.ActionView, ResourceTask, task))
	assert.ErrorIs(t, g.Authorize(ctx, dave, gate.ActionView, ResourceTask, task), gate.ErrNotFound)

	// editing by a manager is limited to the teams' assignees
	assert.NoError(t, g.Authorize(ctx, manager, gate.ActionUpdate, ResourceTask, task))
	outside := &models.Task{ID: 11, TenantID: 1, CreatedBy: 1, AssignedTo: 4}
	assert.ErrorIs(t, g.Authorize(ctx, manager, gate.ActionUpdate, ResourceTask, outside), gate.ErrUnauthorized)
	assert.NoError(t, g.Authorize(ctx, admin, gate.ActionUpdate, ResourceTask, outside))

	// another tenant never sees it, not even its admin
	assert.ErrorIs(t, g.Authorize(ctx, foreign, gate.ActionView, ResourceTask, task), gate.ErrNotFound)
	assert.ErrorIs(t, g.Authorize(ctx, foreign, gate.ActionDelete, ResourceTask, task), gate.ErrNotFound)
}

func TestUserPolicy_SelfProtection(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	self := &models.User{ID: 1, TenantID: 1, Role: models.RoleAdmin}
	other := &models.User{ID: 3, TenantID: 1, Role: models.RoleUser}

	err := g.Authorize(ctx, admin, gate.ActionUpdate, ResourceUser, self)
	assert.Equal(t, "You cannot change your own role.", gate.ReasonOf(err))
	err = g.Authorize(ctx, admin, gate.ActionDelete, ResourceUser, self)
	assert.Equal(t, "You cannot delete yourself.", gate.ReasonOf(err))

	assert.NoError(t, g.Authorize(ctx, admin, gate.ActionDelete, ResourceUser, other))
	assert.ErrorIs(t, g.Authorize(ctx, foreign, gate.ActionDelete, ResourceUser, other), gate.ErrNotFound)
}

func TestLeaveAndHRPolicies(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	bobsLeave := &models.LeaveRequest{ID: 1, TenantID: 1, UserID: 3}
	davesLeave := &models.LeaveRequest{ID: 2, TenantID: 1, UserID: 4}

	assert.NoError(t, g.Authorize(ctx, bob, gate.ActionCreate, ResourceLeave, bobsLeave))
	assert.Error(t, g.Authorize(ctx, bob, gate.ActionCreate, ResourceLeave, davesLeave))

	assert.NoError(t, g.Authorize(ctx, manager, gate.ActionDecide, ResourceLeave, bobsLeave))
	assert.ErrorIs(t, g.Authorize(ctx, manager, gate.ActionDecide, ResourceLeave, davesLeave), gate.ErrUnauthorized)
	assert.NoError(t, g.Authorize(ctx, admin, gate.ActionDecide, ResourceLeave, davesLeave))
	assert.ErrorIs(t, g.Authorize(ctx, bob, gate.ActionDecide, ResourceLeave, bobsLeave), gate.ErrUnauthorized)

	bobsProfile := &models.EmployeeProfile{TenantID: 1, UserID: 3}
	davesProfile := &models.EmployeeProfile{TenantID: 1, UserID: 4}
	assert.NoError(t, g.Authorize(ctx, manager, gate.ActionUpdate, ResourceHRProfile, bobsProfile))
	assert.ErrorIs(t, g.Authorize(ctx, manager, gate.ActionUpdate, ResourceHRProfile, davesProfile), gate.ErrUnauthorized)
	assert.NoError(t, g.Authorize(ctx, bob, gate.ActionView, ResourceHRProfile, bobsProfile))
	assert.Error(t, g.Authorize(ctx, bob, gate.ActionUpdate, ResourceHRProfile, bobsProfile))
}

func TestReportPolicy(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	bobsReport := &models.DailyReport{TenantID: 1, UserID: 3}

	assert.NoError(t, g.Authorize(ctx, bob, gate.ActionCreate, ResourceReport, bobsReport))
	assert.ErrorIs(t, g.Authorize(ctx, dave, gate.ActionCreate, ResourceReport, bobsReport), gate.ErrUnauthorized)
	assert.ErrorIs(t, g.Authorize(ctx, dave, gate.ActionView, ResourceReport, bobsReport), gate.ErrNotFound)
	assert.NoError(t, g.Authorize(ctx, manager, gate.ActionView, ResourceReport, bobsReport))
	assert.NoError(t, g.Authorize(ctx, admin, gate.ActionView, ResourceReport, bobsReport))
}

type fakeLoader map[uint]models.Actor

func (f fakeLoader) LoadActor(_ context.Context, userID, tenantID uint) (models.Actor, error) {
	a, ok := f[userID]
	if !ok || a.TenantID != tenantID {
		return models.Actor{}, errors.New("gone")
	}
	return a, nil
}

func TestRequireRole(t *testing.T) {
	loader := fakeLoader{1: admin, 3: bob}
	h := auth.Middleware(ActorMiddleware(loader)(RequireRole(models.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))))

	do := func(s *auth.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/manage", nil)
		if s != nil {
			rec := httptest.NewRecorder()
			auth.CreateSession(rec, *s)
			for _, c := range rec.Result().Cookies() {
				req.AddCookie(c)
			}
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusSeeOther, do(nil).Code)
	assert.Equal(t, http.StatusNoContent, do(&auth.Session{UserID: 1, TenantID: 1}).Code)
	assert.Equal(t, http.StatusForbidden, do(&auth.Session{UserID: 3, TenantID: 1}).Code)

	stale := do(&auth.Session{UserID: 42, TenantID: 1})
	assert.Equal(t, http.StatusSeeOther, stale.Code)
	cleared := false
	for _, c := range stale.Result().Cookies() {
		if c.Name == "session" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "stale sessions are cleared")
}
