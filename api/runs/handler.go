// Package runs serves the stored scheduling runs over HTTP.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/slotplan/infra/store"
	"github.com/kilianp07/slotplan/pkg/export"
)

// Reader is the read side of the run history.
type Reader interface {
	Runs(ctx context.Context, project, scenario string, limit int) ([]store.RunSummary, error)
	Load(ctx context.Context, runID string) (export.Schedule, error)
}

// NewHandler returns an HTTP handler exposing
//
//	GET /api/runs?project=<p>[&scenario=<s>][&limit=<n>]
//	GET /api/runs/{id}
//
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(r Reader, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		project := q.Get("project")
		if project == "" {
			http.Error(w, "project is required", http.StatusBadRequest)
			return
		}
		limit := 0
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		runs, err := r.Runs(req.Context(), project, q.Get("scenario"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, newSummaries(runs))
	})
	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		sch, err := r.Load(req.Context(), req.PathValue("id"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, sch)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if token != "" && req.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, req)
	})
}

type summary struct {
	RunID       string `json:"run_id"`
	Project     string `json:"project"`
	Scenario    string `json:"scenario"`
	OK          bool   `json:"ok"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Unscheduled int    `json:"unscheduled"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	GeneratedAt string `json:"generated_at"`
}

func newSummaries(runs []store.RunSummary) []summary {
	out := make([]summary, 0, len(runs))
	for _, r := range runs {
		s := summary{
			RunID:       r.RunID,
			Project:     r.Project,
			Scenario:    r.Scenario,
			OK:          r.OK,
			Unscheduled: r.Unscheduled,
			Errors:      r.Errors,
			Warnings:    r.Warnings,
			GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		}
		if !r.Start.IsZero() {
			s.Start = r.Start.Format(time.RFC3339)
		}
		if !r.End.IsZero() {
			s.End = r.End.Format(time.RFC3339)
		}
		out = append(out, s)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
