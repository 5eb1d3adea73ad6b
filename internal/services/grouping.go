package services

import (
	"time"

	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/validation"
)

// DayGroup is a run of tasks created on the same local calendar date.
type DayGroup struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Tasks []TaskRow `json:"tasks"`
}

// DayLabel renders a YYYY-MM-DD key as Today, Yesterday or "Jan 2, 2006".
func DayLabel(key string, now time.Time) string {
	today := now.Format(validation.DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(validation.DateLayout)
	switch key {
	case today:
		return "Today"
	case yesterday:
		return "Yesterday"
	}
	d, err := time.Parse(validation.DateLayout, key)
	if err != nil {
		return key
	}
	return d.Format("Jan 2, 2006")
}

// GroupByDay buckets tasks by the date of CreatedAt in loc. Input order is
// kept, so newest-first listings yield newest-first groups.
func GroupByDay(tasks []TaskRow, now time.Time, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	var groups []DayGroup
	index := make(map[string]int)
	for _, t := range tasks {
		key := t.CreatedAt.In(loc).Format(validation.DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Key: key, Label: DayLabel(key, now)})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	return groups
}

// TaskStats are the counters shown on dashboards and report pages.
type TaskStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Overdue    int `json:"overdue"`
	DueSoon    int `json:"due_soon"`
}

// CompletionRate is the done share in whole percent.
func (s TaskStats) CompletionRate() int {
	if s.Total == 0 {
		return 0
	}
	return s.Done * 100 / s.Total
}

// Summarize counts tasks by status and due date relative to today (YYYY-MM-DD).
// Overdue excludes done tasks; due soon covers today through the next seven
// days whatever the status.
func Summarize(tasks []TaskRow, today string) TaskStats {
	var st TaskStats
	soon := today
	if d, err := time.Parse(validation.DateLayout, today); err == nil {
		soon = d.AddDate(0, 0, 7).Format(validation.DateLayout)
	}
	for _, t := range tasks {
		st.Total++
		switch t.Status {
		case models.StatusDone:
			st.Done++
		case models.StatusInProgress:
			st.InProgress++
		}
		due := t.DueDateValue()
		switch {
		case due == "":
		case due < today:
			if t.Status != models.StatusDone {
				st.Overdue++
			}
		case due <= soon:
			st.DueSoon++
		}
	}
	st.Open = st.Total - st.Done - st.InProgress
	return st
}
