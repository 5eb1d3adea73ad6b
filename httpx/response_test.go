package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONError(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusUnprocessableEntity, "Title is required.", map[string]string{"title": "required"})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Title is required.","details":{"title":"required"}}`, rr.Body.String())
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, WantsJSON(r))
	r.Header.Set("Accept", "application/json")
	assert.True(t, WantsJSON(r))
	r.Header.Set("Accept", "text/html,application/json")
	assert.False(t, WantsJSON(r))
}

func TestStatusWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := NewStatusWriter(rr)
	assert.Equal(t, http.StatusOK, sw.Status)
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sw.Status)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestJSON_NilAndUnencodable(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, nil)
	assert.Equal(t, "null\n", rr.Body.String())

	rr = httptest.NewRecorder()
	JSON(rr, http.StatusOK, map[string]any{"ch": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	NoContent(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}
