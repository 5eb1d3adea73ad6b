package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/logger"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/services"
	"go.uber.org/zap"
)

type TaskHandler struct {
	svc *services.Services
	loc *time.Location
	now func() time.Time
}

func NewTaskHandler(svc *services.Services, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.Local
	}
	return &TaskHandler{svc: svc, loc: loc, now: time.Now}
}

// listData loads what the task board shows: visible tasks plus the choices
// of the create form.
func (h *TaskHandler) listData(r *http.Request) (map[string]any, error) {
	actor := actorOf(r)
	tasks, err := h.svc.Tasks.ListVisible(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	assignees, err := h.svc.Tasks.Assignable(r.Context(), actor)
	if err != nil {
		return nil, err
	}
	projects, err := h.svc.Projects.List(r.Context(), actor.TenantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"Tasks":       tasks,
		"Groups":      services.GroupByDay(tasks, h.now(), h.loc),
		"Stats":       services.Summarize(tasks, h.svc.Reports.Today()),
		"Assignees":   assignees,
		"NoAssignees": len(assignees) == 0,
		"Projects":    projects,
		"Priorities":  models.Priorities,
		"Form":        services.CreateTaskInput{Priority: string(models.PriorityMedium)},
	}, nil
}

// List is the task board of managers and admins.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	data, err := h.listData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, data["Tasks"])
		return
	}
	render(w, r, "tasks.html", data)
}

func createInput(r *http.Request) services.CreateTaskInput {
	return services.CreateTaskInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Priority:    r.FormValue("priority"),
		DueDate:     r.FormValue("due_date"),
		AssigneeID:  formID(r, "assigned_to"),
		ProjectID:   formID(r, "project_id"),
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := createInput(r)
	task, err := h.svc.Tasks.Create(r.Context(), actorOf(r), in)
	if err != nil {
		if !isFormError(err) || httpx.WantsJSON(r) {
			formFailure(w, r, "tasks.html", nil, err)
			return
		}
		data, lerr := h.listData(r)
		if lerr != nil {
			fail(w, r, lerr)
			return
		}
		data["Form"] = in
		formFailure(w, r, "tasks.html", data, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, task)
		return
	}
	redirect(w, r, "/manage/tasks", "task_created")
}

// backPath is where the task page's back link points for actor.
func backPath(actor models.Actor) string {
	if actor.IsManager() {
		return "/manage/tasks"
	}
	return "/dashboard"
}

// renderTask shows the task page, optionally with the error of a failed action.
func (h *TaskHandler) renderTask(w http.ResponseWriter, r *http.Request, id uint, actionErr error) {
	actor := actorOf(r)
	detail, err := h.svc.Tasks.Get(r.Context(), actor, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if actionErr == nil && httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, detail)
		return
	}
	data := map[string]any{
		"Detail":     detail,
		"Task":       detail.Task,
		"IsAssignee": detail.Task.AssignedTo == actor.UserID,
		"CanEdit":    actor.IsManager(),
		"CanDelete":  actor.IsAdmin(),
		"BackPath":   backPath(actor),
		"Statuses":   models.TaskStatuses,
		"Priorities": models.Priorities,
	}
	if actor.IsManager() {
		assignees, err := h.svc.Tasks.Assignable(r.Context(), actor)
		if err != nil {
			fail(w, r, err)
			return
		}
		projects, err := h.svc.Projects.List(r.Context(), actor.TenantID)
		if err != nil {
			fail(w, r, err)
			return
		}
		var projectID uint
		if detail.Task.ProjectID != nil {
			projectID = *detail.Task.ProjectID
		}
		data["Assignees"] = assignees
		data["Projects"] = projects
		data["ProjectID"] = projectID
	}
	if actionErr != nil {
		data["Error"] = messageFor(actionErr)
		data["Errors"] = fieldErrors(r, actionErr)
		renderStatus(w, r, statusFor(actionErr), "task.html", data)
		return
	}
	render(w, r, "task.html", data)
}

func (h *TaskHandler) View(w http.ResponseWriter, r *http.Request) {
	h.renderTask(w, r, pathID(r, "id"), nil)
}

// actionFailure re-renders the task page for displayable errors and falls
// back to the generic error answer otherwise.
func (h *TaskHandler) actionFailure(w http.ResponseWriter, r *http.Request, id uint, err error) {
	var ee *services.ExternalError
	if httpx.WantsJSON(r) || !(isFormError(err) || errors.As(err, &ee)) {
		fail(w, r, err)
		return
	}
	h.renderTask(w, r, id, err)
}

// Act handles the forms of the task page: comment and attach.
func (h *TaskHandler) Act(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	id := pathID(r, "id")
	switch r.FormValue("action") {
	case "comment":
		c, err := h.svc.Tasks.AddComment(r.Context(), actor, id, r.FormValue("body"))
		if err != nil {
			h.actionFailure(w, r, id, err)
			return
		}
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusCreated, c)
			return
		}
		redirect(w, r, fmt.Sprintf("/tasks/%d", id), "comment_added")
	case "attach":
		file, header, err := r.FormFile("attachment")
		if err != nil {
			h.actionFailure(w, r, id, &services.ValidationError{Message: "Upload failed."})
			return
		}
		defer file.Close()
		a, err := h.svc.Tasks.AddAttachment(r.Context(), actor, id, services.Upload{
			Name:   filepath.Base(header.Filename),
			Size:   header.Size,
			Reader: file,
		})
		if err != nil {
			h.actionFailure(w, r, id, err)
			return
		}
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusCreated, a)
			return
		}
		redirect(w, r, fmt.Sprintf("/tasks/%d", id), "file_uploaded")
	default:
		fail(w, r, &services.ValidationError{Message: "Unknown action."})
	}
}

// localPath keeps a redirect target on this site.
func localPath(p, fallback string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return fallback
	}
	return p
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	task, err := h.svc.Tasks.MarkComplete(r.Context(), actorOf(r), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, task)
		return
	}
	redirect(w, r, localPath(r.FormValue("next"), fmt.Sprintf("/tasks/%d", id)), "task_completed")
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	in := services.UpdateTaskInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Status:      r.FormValue("status"),
		Priority:    r.FormValue("priority"),
		DueDate:     r.FormValue("due_date"),
		AssigneeID:  formID(r, "assigned_to"),
		ProjectID:   formID(r, "project_id"),
	}
	task, err := h.svc.Tasks.Update(r.Context(), actorOf(r), id, in)
	if err != nil {
		h.actionFailure(w, r, id, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, task)
		return
	}
	redirect(w, r, fmt.Sprintf("/tasks/%d", id), "task_updated")
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Tasks.Delete(r.Context(), actorOf(r), pathID(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.NoContent(w)
		return
	}
	redirect(w, r, "/manage/tasks", "task_deleted")
}

// Download streams an attachment as a file download.
func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	meta, rc, err := h.svc.Tasks.OpenAttachment(r.Context(), actorOf(r), pathID(r, "id"), pathID(r, "aid"))
	if err != nil {
		fail(w, r, err)
		return
	}
	defer rc.Close()
	ctype := mime.TypeByExtension(filepath.Ext(meta.FileName))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		logger.FromContext(r.Context()).Warn("attachment download interrupted", zap.Uint("attachment_id", meta.ID), zap.Error(err))
	}
}
