package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/i18n"
	"github.com/diewo77/taskflow/internal/ai"
	"github.com/diewo77/taskflow/internal/db"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/services"
	"github.com/diewo77/taskflow/internal/storage"
	"github.com/diewo77/taskflow/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&services.ValidationError{Message: "bad"}, http.StatusUnprocessableEntity},
		{&services.ConflictError{Field: "email", Message: "taken"}, http.StatusConflict},
		{&services.ExternalError{Service: "ai", Message: "down"}, http.StatusBadGateway},
		{services.ErrAuthenticationRequired, http.StatusUnauthorized},
		{gate.ErrUnauthenticated, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", gate.ErrUnauthorized), http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{gate.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), "%v", c.err)
	}
}

func TestMessageFor_HidesInternalErrors(t *testing.T) {
	assert.Equal(t, "Something went wrong. Please try again.", messageFor(errors.New("pq: connection refused")))
	assert.Equal(t, "bad", messageFor(&services.ValidationError{Message: "bad"}))
	assert.Equal(t, "The page you are looking for does not exist.", messageFor(services.ErrNotFound))
}

func TestFieldErrors_Translated(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(i18n.WithLang(r.Context(), "fr"))
	err := &services.ValidationError{Message: "x", Fields: validation.Violations{"title": "required"}}
	assert.Equal(t, map[string]string{"title": "Requis"}, fieldErrors(r, err))

	conflict := &services.ConflictError{Field: "email", Message: "taken"}
	assert.Equal(t, map[string]string{"email": "Déjà utilisé"}, fieldErrors(r, conflict))
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/dashboard", localPath("/dashboard", "/x"))
	assert.Equal(t, "/x", localPath("", "/x"))
	assert.Equal(t, "/x", localPath("https://evil.test/", "/x"))
	assert.Equal(t, "/x", localPath("//evil.test", "/x"))
	assert.Equal(t, "/x", localPath("/\\evil.test", "/x"))
}

func TestRedirect_AddsNotice(t *testing.T) {
	rr := httptest.NewRecorder()
	redirect(rr, httptest.NewRequest(http.MethodPost, "/", nil), "/reports/daily?date=2030-01-02", "report_saved")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/reports/daily?date=2030-01-02&notice=report_saved", rr.Header().Get("Location"))
}

func TestNotice_OnlyKnownCodes(t *testing.T) {
	assert.Equal(t, "Task created.", notice(httptest.NewRequest(http.MethodGet, "/?notice=task_created", nil)))
	assert.Empty(t, notice(httptest.NewRequest(http.MethodGet, "/?notice=anything", nil)))
	assert.Empty(t, notice(httptest.NewRequest(http.MethodGet, "/", nil)))
}

// handler tests run against the real templates and an in-memory database.

type env struct {
	svc     *services.Services
	admin   models.Actor
	manager models.Actor
	bob     models.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))
	auth.SetHashCost(bcrypt.MinCost)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := services.New(conn, nil, services.Options{Store: store, MaxUploadBytes: 1024, Location: time.UTC})

	ctx := context.Background()
	reg := func(name, email string) models.Actor {
		u, err := svc.Tenants.Register(ctx, services.RegisterInput{
			Name: name, Email: email, Company: "Acme", CompanySlug: "acme", Password: "secret123",
		})
		require.NoError(t, err)
		return models.ActorFor(u)
	}
	e := &env{svc: svc}
	e.admin = reg("Alice", "alice@acme.test")
	e.bob = reg("Bob", "bob@acme.test")
	carol := reg("Carol", "carol@acme.test")
	promoted, err := svc.Users.ChangeRole(ctx, e.admin, carol.UserID, "manager")
	require.NoError(t, err)
	e.manager = models.ActorFor(promoted)

	team, err := svc.Teams.CreateTeam(ctx, e.admin, "Eng")
	require.NoError(t, err)
	require.NoError(t, svc.Teams.AddMember(ctx, e.admin, team.ID, e.bob.UserID))
	require.NoError(t, svc.Teams.AddMember(ctx, e.admin, team.ID, e.manager.UserID))
	return e
}

func as(r *http.Request, a models.Actor) *http.Request {
	return r.WithContext(policy.WithActor(r.Context(), a))
}

func postForm(path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestDailyReport_SubmitThenView(t *testing.T) {
	e := newEnv(t)
	h := NewReportHandler(e.svc)

	rr := httptest.NewRecorder()
	h.SubmitDaily(rr, as(postForm("/reports/daily", url.Values{
		"report_date": {"2030-01-02"}, "start_time": {"09:00"}, "end_time": {"17:30"},
		"work_summary": {"Shipped the importer"},
	}), e.bob))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/reports/daily?date=2030-01-02&notice=report_saved", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.Daily(rr, as(httptest.NewRequest(http.MethodGet, "/reports/daily?date=2030-01-02&notice=report_saved", nil), e.bob))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Daily report saved.")
	assert.Contains(t, body, "Shipped the importer")
	assert.Contains(t, body, "8.50")
}

func TestDailyReport_MissingSummary(t *testing.T) {
	e := newEnv(t)
	rr := httptest.NewRecorder()
	NewReportHandler(e.svc).SubmitDaily(rr, as(postForm("/reports/daily", url.Values{"report_date": {"2030-01-02"}}), e.bob))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Work summary is required.")
}

func TestTeamDaily_ManagerSeesTeam(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Reports.Upsert(context.Background(), e.bob, services.ReportInput{Date: "2030-01-02", WorkSummary: "Fixed login"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	NewReportHandler(e.svc).TeamDaily(rr, as(httptest.NewRequest(http.MethodGet, "/manage/daily-reports?date=2030-01-02", nil), e.manager))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Fixed login")
	assert.Contains(t, rr.Body.String(), "1 submitted")
}

func TestLeave_RequestAndDecide(t *testing.T) {
	e := newEnv(t)
	h := NewHRHandler(e.svc)

	rr := httptest.NewRecorder()
	h.RequestLeave(rr, as(postForm("/hr/me", url.Values{
		"leave_type": {"sick"}, "start_date": {"2030-03-01"}, "end_date": {"2030-03-03"},
	}), e.bob))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	leaves, err := e.svc.HR.ListMine(context.Background(), e.bob)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, 3, leaves[0].TotalDays)

	req := as(postForm(fmt.Sprintf("/hr/leave/%d/decision", leaves[0].ID), url.Values{"status": {"approved"}}), e.manager)
	req.SetPathValue("id", fmt.Sprint(leaves[0].ID))
	rr = httptest.NewRecorder()
	h.Decide(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/manage/hr?notice=leave_updated", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.Me(rr, as(httptest.NewRequest(http.MethodGet, "/hr/me", nil), e.bob))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "approved")
}

func TestLeave_EndBeforeStart(t *testing.T) {
	e := newEnv(t)
	rr := httptest.NewRecorder()
	NewHRHandler(e.svc).RequestLeave(rr, as(postForm("/hr/me", url.Values{
		"start_date": {"2030-03-03"}, "end_date": {"2030-03-01"}, "reason": {"trip"},
	}), e.bob))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "End date must be on or after start date.")
	assert.Contains(t, body, "trip")
}

func TestAdmin_CreateUserConflict(t *testing.T) {
	e := newEnv(t)
	rr := httptest.NewRecorder()
	NewAdminHandler(e.svc).CreateUser(rr, as(postForm("/admin/users", url.Values{
		"name": {"Bob again"}, "email": {"BOB@acme.test"}, "password": {"secret123"}, "role": {"user"},
	}), e.admin))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Already taken")
}

func TestAdmin_CreateUserJSON(t *testing.T) {
	e := newEnv(t)
	req := as(postForm("/admin/users", url.Values{
		"name": {"Dave"}, "email": {"dave@acme.test"}, "password": {"secret123"}, "role": {"manager"},
	}), e.admin)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	NewAdminHandler(e.svc).CreateUser(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"manager"`)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestManage_NoTeamAlert(t *testing.T) {
	e := newEnv(t)
	loner, err := e.svc.Users.Create(context.Background(), e.admin, services.CreateUserInput{
		Name: "Mia", Email: "mia@acme.test", Password: "secret123", Role: "manager",
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	NewDashboardHandler(e.svc, time.UTC).Manage(rr, as(httptest.NewRequest(http.MethodGet, "/manage", nil), models.ActorFor(loner)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "You are not assigned to a team yet.")
}

func TestTaskBoard_NoAssigneesDisablesForm(t *testing.T) {
	e := newEnv(t)
	loner, err := e.svc.Users.Create(context.Background(), e.admin, services.CreateUserInput{
		Name: "Mia", Email: "mia@acme.test", Password: "secret123", Role: "manager",
	})
	require.NoError(t, err)
	h := NewTaskHandler(e.svc, time.UTC)

	rr := httptest.NewRecorder()
	h.List(rr, as(httptest.NewRequest(http.MethodGet, "/manage/tasks", nil), models.ActorFor(loner)))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="no-assignees"`)
	assert.Contains(t, body, `<select name="assigned_to" required disabled>`)
	assert.Contains(t, body, `<button type="submit" disabled>Create task</button>`)

	rr = httptest.NewRecorder()
	h.List(rr, as(httptest.NewRequest(http.MethodGet, "/manage/tasks", nil), e.manager))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `id="no-assignees"`)
	assert.Contains(t, rr.Body.String(), `<button type="submit">Create task</button>`)
}

func TestTaskView_CrossTeamIsHidden(t *testing.T) {
	e := newEnv(t)
	task, err := e.svc.Tasks.Create(context.Background(), e.admin, services.CreateTaskInput{Title: "Admin only", AssigneeID: e.admin.UserID})
	require.NoError(t, err)

	req := as(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil), e.bob)
	req.SetPathValue("id", fmt.Sprint(task.ID))
	rr := httptest.NewRecorder()
	NewTaskHandler(e.svc, time.UTC).View(rr, req)
	assert.NotEqual(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Admin only")
}

func TestAttachment_UploadAndDownload(t *testing.T) {
	e := newEnv(t)
	task, err := e.svc.Tasks.Create(context.Background(), e.manager, services.CreateTaskInput{Title: "Logs", AssigneeID: e.bob.UserID})
	require.NoError(t, err)
	h := NewTaskHandler(e.svc, time.UTC)

	var buf strings.Builder
	boundary := "xTaskflowBoundary"
	fmt.Fprintf(&buf, "--%s\r\nContent-Disposition: form-data; name=\"action\"\r\n\r\nattach\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Disposition: form-data; name=\"attachment\"; filename=\"notes.txt\"\r\nContent-Type: text/plain\r\n\r\nhello\r\n", boundary)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/tasks/%d", task.ID), strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.SetPathValue("id", fmt.Sprint(task.ID))
	rr := httptest.NewRecorder()
	h.Act(rr, as(req, e.bob))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	detail, err := e.svc.Tasks.Get(context.Background(), e.bob, task.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("id", fmt.Sprint(task.ID))
	req.SetPathValue("aid", fmt.Sprint(detail.Attachments[0].ID))
	rr = httptest.NewRecorder()
	h.Download(rr, as(req, e.manager))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename=notes.txt`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestAI_NotConfigured(t *testing.T) {
	e := newEnv(t)
	h := NewAIHandler(ai.NewAssistant(nil, e.svc.Gate))

	rr := httptest.NewRecorder()
	h.Draft(rr, as(postForm("/ai", url.Values{"mode": {"task_plan"}, "goal": {"Launch"}}), e.manager))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), ai.NotConfiguredMessage)
	assert.Contains(t, rr.Body.String(), "Launch")

	rr = httptest.NewRecorder()
	h.Draft(rr, as(postForm("/ai", url.Values{"mode": {"task_plan"}}), e.bob))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
