package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphysics/drumscan"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	require.NoError(t, s.Close())

	// Reopening an up to date database is a no-op.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSweepRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res := &drumscan.SweepResult{Angles: []float64{0.1, 5.05, 9.98}, Values: []float64{0.5, 0.51, 0.49}}
	run := &Run{Params: map[string]any{"r": 60.0, "steps": 3.0}, Notes: "bench test"}
	require.NoError(t, s.SaveSweep(ctx, run, res))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, KindAngle, run.Kind)

	got, err := s.Sweep(ctx, run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(res, got); diff != "" {
		t.Errorf("sweep mismatch (-want +got):\n%s", diff)
	}

	stored, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "bench test", stored.Notes)
	assert.Equal(t, 60.0, stored.Params["r"])
	assert.True(t, run.StartedAt.Equal(stored.StartedAt))
}

func TestSweepLengthMismatch(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveSweep(context.Background(), &Run{}, &drumscan.SweepResult{Angles: []float64{1}})
	assert.Error(t, err)
}

func TestGridRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res := &drumscan.GridScanResult{
		X:         []float64{0, 1, -1},
		Y:         []float64{0, 0, 0.5},
		Commanded: []drumscan.ScanPoint{{R: 0, A: 0}, {R: 1, A: 0}, {R: 1.1, A: 153}},
	}
	run := &Run{ID: "fixed-id"}
	require.NoError(t, s.SaveGrid(ctx, run, res))

	got, err := s.Grid(ctx, "fixed-id")
	require.NoError(t, err)
	if diff := cmp.Diff(res, got); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}

	// Duplicate ids roll back the whole run.
	err = s.SaveGrid(ctx, &Run{ID: "fixed-id"}, res)
	assert.Error(t, err)
	got, err = s.Grid(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestEmptyGrid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := &Run{}
	require.NoError(t, s.SaveGrid(ctx, run, &drumscan.GridScanResult{Commanded: []drumscan.ScanPoint{}}))
	got, err := s.Grid(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestDataBoxRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	d := drumscan.NewDataBox()
	d.SetColumn("t", []float64{0, 1e-5})
	d.SetColumn("V1", []float64{0.25, 0.75})
	d.SetHeader("rate", "100000")
	run := &Run{}
	require.NoError(t, s.SaveDataBox(ctx, run, KindM2K, d))

	got, err := s.DataBox(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "V1"}, got.Columns())
	v1, err := got.Column("V1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, v1)
	rate, ok := got.Header("rate")
	assert.True(t, ok)
	assert.Equal(t, "100000", rate)
}

func TestRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d := drumscan.NewDataBox()
	require.NoError(t, s.SaveDataBox(ctx, &Run{ID: "old", StartedAt: t0}, KindSweep, d))
	require.NoError(t, s.SaveDataBox(ctx, &Run{ID: "new", StartedAt: t0.Add(time.Hour)}, KindSoundcard, d))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, KindSoundcard, runs[0].Kind)
	assert.Equal(t, "old", runs[1].ID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
