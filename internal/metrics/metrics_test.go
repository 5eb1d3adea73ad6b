package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New("taskflow")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, id := range []string{"1", "2", "3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("taskflow", "GET", "GET /tasks/{id}", "404")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.statusCategory.WithLabelValues("taskflow", "4xx")))
}

func TestDomainCounters(t *testing.T) {
	m := New("taskflow")
	m.TaskCreated()
	m.TaskTransition("done")
	m.TaskTransition("done")
	m.LeaveDecided("approved")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.taskTransitions.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.leaveDecisions.WithLabelValues("approved")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TaskCreated()
	m.AIRequest("error")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestHandler_Exposition(t *testing.T) {
	m := New("taskflow")
	m.ReportSubmitted()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "taskflow_daily_reports_submitted_total 1"))
}
