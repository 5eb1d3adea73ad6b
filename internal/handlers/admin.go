package handlers

import (
	"net/http"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/services"
)

// AdminHandler manages the accounts, teams and projects of a tenant.
type AdminHandler struct {
	svc *services.Services
}

func NewAdminHandler(svc *services.Services) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) usersData(r *http.Request) (map[string]any, error) {
	users, err := h.svc.Users.List(r.Context(), actorOf(r))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"Users": users,
		"Roles": models.Roles,
		"Form":  services.CreateUserInput{Role: string(models.RoleUser)},
	}, nil
}

// Users lists the tenant's accounts with the create form.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	data, err := h.usersData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, data["Users"])
		return
	}
	render(w, r, "admin_users.html", data)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	in := services.CreateUserInput{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Role:     r.FormValue("role"),
	}
	u, err := h.svc.Users.Create(r.Context(), actorOf(r), in)
	if err != nil {
		if !isFormError(err) || httpx.WantsJSON(r) {
			formFailure(w, r, "admin_users.html", nil, err)
			return
		}
		data, lerr := h.usersData(r)
		if lerr != nil {
			fail(w, r, lerr)
			return
		}
		in.Password = ""
		data["Form"] = in
		formFailure(w, r, "admin_users.html", data, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, u)
		return
	}
	redirect(w, r, "/admin/users", "user_created")
}

func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.ChangeRole(r.Context(), actorOf(r), pathID(r, "id"), r.FormValue("role"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, u)
		return
	}
	redirect(w, r, "/admin/users", "role_updated")
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.Delete(r.Context(), actorOf(r), pathID(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.NoContent(w)
		return
	}
	redirect(w, r, "/admin/users", "user_deleted")
}

func (h *AdminHandler) teamsData(r *http.Request) (map[string]any, error) {
	actor := actorOf(r)
	teams, err := h.svc.Teams.ListTeams(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	users, err := h.svc.Users.List(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"Teams": teams, "Users": users}, nil
}

// Teams lists teams with their members.
func (h *AdminHandler) Teams(w http.ResponseWriter, r *http.Request) {
	data, err := h.teamsData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, data["Teams"])
		return
	}
	render(w, r, "admin_teams.html", data)
}

func (h *AdminHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.Teams.CreateTeam(r.Context(), actorOf(r), r.FormValue("name"))
	if err != nil {
		h.teamFailure(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, team)
		return
	}
	redirect(w, r, "/admin/teams", "team_created")
}

func (h *AdminHandler) teamFailure(w http.ResponseWriter, r *http.Request, err error) {
	if !isFormError(err) || httpx.WantsJSON(r) {
		formFailure(w, r, "admin_teams.html", nil, err)
		return
	}
	data, lerr := h.teamsData(r)
	if lerr != nil {
		fail(w, r, lerr)
		return
	}
	formFailure(w, r, "admin_teams.html", data, err)
}

func (h *AdminHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Teams.AddMember(r.Context(), actorOf(r), pathID(r, "id"), formID(r, "user_id")); err != nil {
		h.teamFailure(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.NoContent(w)
		return
	}
	redirect(w, r, "/admin/teams", "member_added")
}

func (h *AdminHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Teams.RemoveMember(r.Context(), actorOf(r), pathID(r, "id"), pathID(r, "uid")); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.NoContent(w)
		return
	}
	redirect(w, r, "/admin/teams", "member_removed")
}

func (h *AdminHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Teams.DeleteTeam(r.Context(), actorOf(r), pathID(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.NoContent(w)
		return
	}
	redirect(w, r, "/admin/teams", "team_deleted")
}

func (h *AdminHandler) projectsData(r *http.Request) (map[string]any, error) {
	actor := actorOf(r)
	projects, err := h.svc.Projects.List(r.Context(), actor.TenantID)
	if err != nil {
		return nil, err
	}
	teams, err := h.svc.Teams.ListTeams(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"Projects": projects, "Teams": teams}, nil
}

func (h *AdminHandler) Projects(w http.ResponseWriter, r *http.Request) {
	data, err := h.projectsData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, data["Projects"])
		return
	}
	render(w, r, "admin_projects.html", data)
}

func (h *AdminHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	teamID := formID(r, "team_id")
	p, err := h.svc.Projects.Create(r.Context(), actorOf(r), &teamID, r.FormValue("name"), r.FormValue("description"))
	if err != nil {
		if !isFormError(err) || httpx.WantsJSON(r) {
			formFailure(w, r, "admin_projects.html", nil, err)
			return
		}
		data, lerr := h.projectsData(r)
		if lerr != nil {
			fail(w, r, lerr)
			return
		}
		data["Name"] = r.FormValue("name")
		data["Description"] = r.FormValue("description")
		formFailure(w, r, "admin_projects.html", data, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, p)
		return
	}
	redirect(w, r, "/admin/projects", "project_created")
}
