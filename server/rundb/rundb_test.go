package rundb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestRunDB(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "runs.sqlite")
	db, err := Open(logs.NewTestingLog(t), dbFile)
	require.NoError(t, err)

	rec := Run{
		CreatedAt:    dbh.MakeIntTime(time.Now()),
		SourceFile:   "field.jpg",
		Status:       RunStatusQueued,
		Width:        512,
		Height:       512,
		TileSize:     256,
		Subdivisions: 2,
		Smooth:       true,
	}
	require.NoError(t, db.AddRun(&rec))
	require.NotZero(t, rec.ID)

	rec.Status = RunStatusFinished
	rec.DurationMsec = 1234
	report := &regions.AreaReport{ScaleFactor: 0.25}
	require.NoError(t, rec.SetReport(report))
	require.NoError(t, db.UpdateRun(&rec))

	loaded, err := db.GetRun(rec.ID)
	require.NoError(t, err)
	require.Equal(t, RunStatusFinished, loaded.Status)
	require.Equal(t, "field.jpg", loaded.SourceFile)
	decoded, err := loaded.DecodeReport()
	require.NoError(t, err)
	require.Equal(t, 0.25, decoded.ScaleFactor)

	_, err = db.GetRun(rec.ID + 999)
	require.Error(t, err)
}

func TestMarkInterrupted(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "runs.sqlite")
	db, err := Open(logs.NewTestingLog(t), dbFile)
	require.NoError(t, err)

	queued := Run{CreatedAt: dbh.MakeIntTime(time.Now()), Status: RunStatusQueued}
	running := Run{CreatedAt: dbh.MakeIntTime(time.Now()), Status: RunStatusRunning}
	finished := Run{CreatedAt: dbh.MakeIntTime(time.Now()), Status: RunStatusFinished}
	require.NoError(t, db.AddRun(&queued))
	require.NoError(t, db.AddRun(&running))
	require.NoError(t, db.AddRun(&finished))

	// Simulate a restart: anything that never finished gets failed.
	require.NoError(t, db.MarkInterrupted())

	for _, id := range []int64{queued.ID, running.ID} {
		rec, err := db.GetRun(id)
		require.NoError(t, err)
		require.Equal(t, RunStatusFailed, rec.Status)
		require.Equal(t, "interrupted by restart", rec.Error)
	}
	rec, err := db.GetRun(finished.ID)
	require.NoError(t, err)
	require.Equal(t, RunStatusFinished, rec.Status)
}

func TestLatestRuns(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "runs.sqlite")
	db, err := Open(logs.NewTestingLog(t), dbFile)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec := Run{CreatedAt: dbh.MakeIntTime(time.Now()), Status: RunStatusFinished}
		require.NoError(t, db.AddRun(&rec))
	}
	runs, err := db.LatestRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first
	require.Greater(t, runs[0].ID, runs[1].ID)
	require.Greater(t, runs[1].ID, runs[2].ID)
}
