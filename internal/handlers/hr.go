package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/services"
)

// HRHandler serves employee profiles and leave requests.
type HRHandler struct {
	svc *services.Services
}

func NewHRHandler(svc *services.Services) *HRHandler {
	return &HRHandler{svc: svc}
}

func (h *HRHandler) meData(r *http.Request) (map[string]any, error) {
	actor := actorOf(r)
	profile, err := h.svc.HR.ProfileFor(r.Context(), actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	leaves, err := h.svc.HR.ListMine(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"Profile":    profile,
		"Leaves":     leaves,
		"LeaveTypes": models.LeaveTypes,
		"Form":       services.LeaveInput{LeaveType: string(models.LeavePaid)},
	}, nil
}

// Me shows the current user's HR profile and leave history.
func (h *HRHandler) Me(w http.ResponseWriter, r *http.Request) {
	data, err := h.meData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"profile": data["Profile"], "leaves": data["Leaves"]})
		return
	}
	render(w, r, "my_hr.html", data)
}

func (h *HRHandler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	in := services.LeaveInput{
		LeaveType: r.FormValue("leave_type"),
		StartDate: r.FormValue("start_date"),
		EndDate:   r.FormValue("end_date"),
		Reason:    r.FormValue("reason"),
	}
	leave, err := h.svc.HR.CreateLeave(r.Context(), actorOf(r), in)
	if err != nil {
		if !isFormError(err) || httpx.WantsJSON(r) {
			formFailure(w, r, "my_hr.html", nil, err)
			return
		}
		data, lerr := h.meData(r)
		if lerr != nil {
			fail(w, r, lerr)
			return
		}
		data["Form"] = in
		formFailure(w, r, "my_hr.html", data, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, leave)
		return
	}
	redirect(w, r, "/hr/me", "leave_requested")
}

func (h *HRHandler) manageData(r *http.Request) (map[string]any, error) {
	actor := actorOf(r)
	leaves, err := h.svc.HR.ListVisible(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	profiles, err := h.svc.HR.ListProfiles(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	employees, err := h.svc.Index.VisibleUsers(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	var managers []models.User
	for _, u := range employees {
		if u.Role.AtLeast(models.RoleManager) {
			managers = append(managers, u)
		}
	}
	return map[string]any{
		"Leaves":          leaves,
		"Profiles":        profiles,
		"Employees":       employees,
		"Managers":        managers,
		"EmploymentTypes": models.EmploymentTypes,
		"NoTeam":          !actor.IsAdmin() && len(employees) == 0,
	}, nil
}

// Manage lists the leave requests and profiles of the users the actor oversees.
func (h *HRHandler) Manage(w http.ResponseWriter, r *http.Request) {
	data, err := h.manageData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"leaves": data["Leaves"], "profiles": data["Profiles"]})
		return
	}
	render(w, r, "manage_hr.html", data)
}

func (h *HRHandler) manageFailure(w http.ResponseWriter, r *http.Request, err error) {
	if !isFormError(err) || httpx.WantsJSON(r) {
		formFailure(w, r, "manage_hr.html", nil, err)
		return
	}
	data, lerr := h.manageData(r)
	if lerr != nil {
		fail(w, r, lerr)
		return
	}
	formFailure(w, r, "manage_hr.html", data, err)
}

func (h *HRHandler) Decide(w http.ResponseWriter, r *http.Request) {
	leave, err := h.svc.HR.DecideLeave(r.Context(), actorOf(r), pathID(r, "id"), r.FormValue("status"))
	if err != nil {
		h.manageFailure(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, leave)
		return
	}
	redirect(w, r, "/manage/hr", "leave_updated")
}

func (h *HRHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("weekly_hour_target")))
	in := services.ProfileInput{
		UserID:           formID(r, "user_id"),
		Department:       r.FormValue("department"),
		Designation:      r.FormValue("designation"),
		EmploymentType:   r.FormValue("employment_type"),
		Location:         r.FormValue("location"),
		ManagerUserID:    formID(r, "manager_user_id"),
		JoiningDate:      r.FormValue("joining_date"),
		WeeklyHourTarget: hours,
	}
	profile, err := h.svc.HR.UpsertProfile(r.Context(), actorOf(r), in)
	if err != nil {
		h.manageFailure(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, profile)
		return
	}
	redirect(w, r, "/manage/hr", "profile_saved")
}
