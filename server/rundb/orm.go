package rundb

import (
	"encoding/json"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/landcover/pkg/regions"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

const (
	RunStatusQueued   = "queued"
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run is one segmentation run. The report is stored as JSON text so the schema
// doesn't need to change when the report grows new fields.
type Run struct {
	BaseModel
	CreatedAt    dbh.IntTime `json:"createdAt"`
	SourceFile   string      `json:"sourceFile"`
	Status       string      `json:"status"`
	Error        string      `json:"error" gorm:"default:null"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	TileSize     int         `json:"tileSize"`
	Subdivisions int         `json:"subdivisions"` // 0 for a fast run without blending
	Smooth       bool        `json:"smooth"`
	DurationMsec int64       `json:"durationMsec"`
	Report       string      `json:"report"`
}

func (r *Run) SetReport(report *regions.AreaReport) error {
	j, err := json.Marshal(report)
	if err != nil {
		return err
	}
	r.Report = string(j)
	return nil
}

func (r *Run) DecodeReport() (*regions.AreaReport, error) {
	if r.Report == "" {
		return nil, nil
	}
	report := regions.AreaReport{}
	if err := json.Unmarshal([]byte(r.Report), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
