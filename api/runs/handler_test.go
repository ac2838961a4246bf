package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/infra/store"
	"github.com/kilianp07/slotplan/pkg/export"
)

type memStore struct {
	runs      []store.RunSummary
	schedules map[string]export.Schedule
	lastQuery []any
}

func (m *memStore) Runs(_ context.Context, project, scenario string, limit int) ([]store.RunSummary, error) {
	m.lastQuery = []any{project, scenario, limit}
	var res []store.RunSummary
	for _, r := range m.runs {
		if r.Project == project && (scenario == "" || r.Scenario == scenario) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Load(_ context.Context, runID string) (export.Schedule, error) {
	s, ok := m.schedules[runID]
	if !ok {
		return export.Schedule{}, fmt.Errorf("%w: run %s", store.ErrNotFound, runID)
	}
	return s, nil
}

func newMemStore() *memStore {
	gen := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return &memStore{
		runs: []store.RunSummary{
			{RunID: "r2", Project: "demo", Scenario: "plan", OK: true, Start: gen.Add(49 * time.Hour), GeneratedAt: gen},
			{RunID: "r1", Project: "demo", Scenario: "fast", Warnings: 2, GeneratedAt: gen},
		},
		schedules: map[string]export.Schedule{"r2": {Project: "demo", Scenario: "plan", RunID: "r2", OK: true}},
	}
}

func get(t *testing.T, h http.Handler, url, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListRuns(t *testing.T) {
	st := newMemStore()
	h := NewHandler(st, "")

	rr := get(t, h, "/api/runs?project=demo&scenario=plan&limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, []any{"demo", "plan", 5}, st.lastQuery)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0]["run_id"])
	assert.Equal(t, "2025-03-03T09:00:00Z", got[0]["start"])
	assert.NotContains(t, got[0], "end")

	rr = get(t, h, "/api/runs?project=demo", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestListRunsBadRequest(t *testing.T) {
	h := NewHandler(newMemStore(), "")
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs?project=demo&limit=x", "").Code)
}

func TestGetRun(t *testing.T) {
	h := NewHandler(newMemStore(), "")
	rr := get(t, h, "/api/runs/r2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var sch export.Schedule
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sch))
	assert.Equal(t, "plan", sch.Scenario)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/nope", "").Code)
}

func TestAuth(t *testing.T) {
	h := NewHandler(newMemStore(), "tok")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/runs?project=demo", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/runs?project=demo", "bad").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/runs?project=demo", "tok").Code)
}
