package handlers

import (
	"net/http"
	"net/url"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/services"
)

// ReportHandler serves daily reports and the task health pages.
type ReportHandler struct {
	svc *services.Services
}

func NewReportHandler(svc *services.Services) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) dailyData(r *http.Request, date string) (map[string]any, error) {
	actor := actorOf(r)
	if date == "" {
		date = h.svc.Reports.Today()
	}
	report, err := h.svc.Reports.ForUserDate(r.Context(), actor.TenantID, actor.UserID, date)
	if err != nil {
		return nil, err
	}
	recent, err := h.svc.Reports.RecentForUser(r.Context(), actor, services.RecentReportDays)
	if err != nil {
		return nil, err
	}
	form := services.ReportInput{Date: date}
	if report != nil {
		form = services.ReportInput{
			Date:        report.ReportDate,
			StartTime:   report.StartTime,
			EndTime:     report.EndTime,
			WorkSummary: report.WorkSummary,
			Blockers:    report.Blockers,
			NextPlan:    report.NextPlan,
		}
	}
	return map[string]any{"Date": date, "Report": report, "Recent": recent, "Form": form}, nil
}

// Daily shows the current user's report for ?date= (default today).
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	data, err := h.dailyData(r, r.URL.Query().Get("date"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"report": data["Report"], "recent": data["Recent"]})
		return
	}
	render(w, r, "daily_report.html", data)
}

// SubmitDaily creates or overwrites the report of the submitted date.
func (h *ReportHandler) SubmitDaily(w http.ResponseWriter, r *http.Request) {
	in := services.ReportInput{
		Date:        r.FormValue("report_date"),
		StartTime:   r.FormValue("start_time"),
		EndTime:     r.FormValue("end_time"),
		WorkSummary: r.FormValue("work_summary"),
		Blockers:    r.FormValue("blockers"),
		NextPlan:    r.FormValue("next_plan"),
	}
	report, err := h.svc.Reports.Upsert(r.Context(), actorOf(r), in)
	if err != nil {
		if !isFormError(err) || httpx.WantsJSON(r) {
			formFailure(w, r, "daily_report.html", nil, err)
			return
		}
		data, lerr := h.dailyData(r, "")
		if lerr != nil {
			fail(w, r, lerr)
			return
		}
		data["Date"] = in.Date
		data["Form"] = in
		formFailure(w, r, "daily_report.html", data, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, report)
		return
	}
	redirect(w, r, "/reports/daily?date="+url.QueryEscape(report.ReportDate), "report_saved")
}

// TeamDaily shows who reported on ?date= among the users the actor oversees.
// Admins may narrow it to one ?user_id=.
func (h *ReportHandler) TeamDaily(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.svc.Reports.Today()
	}
	var userID uint
	if actor.IsAdmin() {
		userID = parseID(r.URL.Query().Get("user_id"))
	}
	day, err := h.svc.Reports.TeamDay(r.Context(), actor, date, userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, day)
		return
	}
	data := map[string]any{
		"Day":    day,
		"Date":   date,
		"UserID": userID,
		"NoTeam": !actor.IsAdmin() && len(day.Tracked) == 0,
	}
	if actor.IsAdmin() {
		users, err := h.svc.Users.List(r.Context(), actor)
		if err != nil {
			fail(w, r, err)
			return
		}
		data["Users"] = users
	}
	render(w, r, "team_reports.html", data)
}

// Stats is the task health page: counters over every task the actor oversees.
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	tasks, err := h.svc.Tasks.ListVisible(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	stats := services.Summarize(tasks, h.svc.Reports.Today())
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, stats)
		return
	}
	scope := "Task health metrics for your team."
	if actor.IsAdmin() {
		scope = "Company task health metrics."
	}
	render(w, r, "stats.html", map[string]any{
		"Stats":          stats,
		"CompletionRate": stats.CompletionRate(),
		"Scope":          scope,
	})
}
