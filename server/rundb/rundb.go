// Package rundb persists a summary record of every segmentation run.
package rundb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

type RunDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the run DB
func Open(logger logs.Log, dbFilename string) (*RunDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &RunDB{
		Log: logger,
		DB:  db,
	}, nil
}

func (r *RunDB) AddRun(run *Run) error {
	return r.DB.Create(run).Error
}

// UpdateRun writes the whole record back, so partial updates don't lose fields.
func (r *RunDB) UpdateRun(run *Run) error {
	return r.DB.Save(run).Error
}

// MarkInterrupted fails any runs that were queued or running when the process
// died. Called at startup, before new runs are accepted.
func (r *RunDB) MarkInterrupted() error {
	return r.DB.Exec("UPDATE run SET status = ?, error = ? WHERE status IN (?, ?)",
		RunStatusFailed, "interrupted by restart", RunStatusQueued, RunStatusRunning).Error
}

func (r *RunDB) GetRun(id int64) (*Run, error) {
	run := Run{}
	if err := r.DB.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestRuns returns the most recent runs, newest first.
func (r *RunDB) LatestRuns(limit int) ([]Run, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	runs := []Run{}
	if err := r.DB.Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
