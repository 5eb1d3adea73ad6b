package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/services"
)

// recentTaskCount is how many tasks the admin overview lists.
const recentTaskCount = 5

// DashboardHandler serves the landing page of each role.
type DashboardHandler struct {
	svc *services.Services
	loc *time.Location
	now func() time.Time
}

func NewDashboardHandler(svc *services.Services, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardHandler{svc: svc, loc: loc, now: time.Now}
}

// Dashboard lists the tasks assigned to and created by the current user.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	assigned, err := h.svc.Tasks.ListForUser(r.Context(), actor.TenantID, actor.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := h.svc.Tasks.ListCreatedBy(r.Context(), actor.TenantID, actor.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	stats := services.Summarize(assigned, h.svc.Reports.Today())
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"assigned": assigned, "created": created, "stats": stats})
		return
	}
	render(w, r, "dashboard.html", map[string]any{
		"Groups":  services.GroupByDay(assigned, h.now(), h.loc),
		"Created": created,
		"Stats":   stats,
	})
}

// Manage is the manager overview: team size and the team's task counters.
func (h *DashboardHandler) Manage(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	teams, err := h.svc.Teams.ListTeams(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	members, err := h.svc.Index.VisibleUsers(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	tasks, err := h.svc.Tasks.ListVisible(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	stats := services.Summarize(tasks, h.svc.Reports.Today())
	noTeam := !actor.IsAdmin() && len(teams) == 0
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"teams": teams, "members": len(members), "stats": stats})
		return
	}
	data := map[string]any{
		"Teams":   teams,
		"Members": len(members),
		"Stats":   stats,
		"NoTeam":  noTeam,
	}
	if noTeam {
		data["Alert"] = "You are not assigned to a team yet. Ask an admin to add you to a team to see team metrics."
	}
	render(w, r, "manage.html", data)
}

// Admin is the tenant-wide overview.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	users, err := h.svc.Users.List(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	teams, err := h.svc.Teams.ListTeams(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	projects, err := h.svc.Projects.List(r.Context(), actor.TenantID)
	if err != nil {
		fail(w, r, err)
		return
	}
	tasks, err := h.svc.Tasks.ListAll(r.Context(), actor.TenantID)
	if err != nil {
		fail(w, r, err)
		return
	}
	recent := tasks
	if len(recent) > recentTaskCount {
		recent = recent[:recentTaskCount]
	}
	counts := map[string]int{
		"Users":    len(users),
		"Teams":    len(teams),
		"Projects": len(projects),
	}
	stats := services.Summarize(tasks, h.svc.Reports.Today())
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"counts": counts, "stats": stats, "recent": recent})
		return
	}
	render(w, r, "admin.html", map[string]any{
		"Counts": counts,
		"Stats":  stats,
		"Recent": recent,
	})
}
