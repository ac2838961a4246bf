package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/pkg/export"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "schedules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(t time.Time) *time.Time { return &t }

func sample(runID string, generated time.Time) export.Schedule {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	return export.Schedule{
		Project:     "demo",
		Scenario:    "plan",
		RunID:       runID,
		OK:          true,
		Start:       ptr(start),
		End:         ptr(start.Add(3 * time.Hour)),
		Warnings:    1,
		GeneratedAt: generated,
		Tasks: []export.Task{
			{ID: "a", Name: "Design", Scheduled: true, Start: ptr(start), End: ptr(start.Add(2 * time.Hour)), EffortDone: 0.25, Criticalness: 0.5, Resources: []string{"dev", "ops"}},
			{ID: "a.b", Name: "Review", Parent: "a", Milestone: true},
		},
		Resources: []export.Resource{
			{ID: "dev", Name: "Developer", Allocated: 0.25, Free: 4.75, Cost: 100, Bookings: []export.Booking{
				{Task: "a", Start: start, End: start.Add(2 * time.Hour)},
			}},
			{ID: "ops", Name: "Operator"},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	gen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := sample("r1", gen)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveReplacesRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sch := sample("r1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, sch))
	sch.OK = false
	sch.Tasks = sch.Tasks[:1]
	require.NoError(t, s.Save(ctx, sch))

	got, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, got.OK)
	assert.Len(t, got.Tasks, 1)
	assert.Len(t, got.Resources[0].Bookings, 1)
}

func TestRunsAndLatest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sample("r1", base)))
	require.NoError(t, s.Save(ctx, sample("r2", base.Add(time.Hour))))
	other := sample("r3", base.Add(2*time.Hour))
	other.Scenario = "fast"
	require.NoError(t, s.Save(ctx, other))

	runs, err := s.Runs(ctx, "demo", "plan", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Warnings)
	assert.Equal(t, time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), runs[0].Start)

	all, err := s.Runs(ctx, "demo", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := s.Latest(ctx, "demo", "plan")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)

	_, err = s.Latest(ctx, "demo", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrune(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Save(ctx, sample(id, base.Add(time.Duration(i)*time.Hour))))
	}
	n, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	runs, err := s.Runs(ctx, "demo", "plan", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r3", runs[0].RunID)

	var bookings int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM bookings`).Scan(&bookings))
	assert.Equal(t, 1, bookings)
}

func TestSaveRequiresRunID(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Save(context.Background(), export.Schedule{}))
}
