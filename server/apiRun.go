package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/landcover/pkg/render"
	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/cyclopcam/landcover/server/rundb"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

type runJSON struct {
	ID           int64               `json:"id"`
	CreatedAt    dbh.IntTime         `json:"createdAt"`
	SourceFile   string              `json:"sourceFile"`
	Status       string              `json:"status"`
	Error        string              `json:"error,omitempty"`
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	TileSize     int                 `json:"tileSize"`
	Subdivisions int                 `json:"subdivisions"`
	Smooth       bool                `json:"smooth"`
	DurationMsec int64               `json:"durationMsec"`
	Done         int                 `json:"done"`
	Total        int                 `json:"total"`
	Report       *regions.AreaReport `json:"report,omitempty"`
}

func toRunJSON(rec *rundb.Run, done, total int) *runJSON {
	report, _ := rec.DecodeReport()
	return &runJSON{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt,
		SourceFile:   rec.SourceFile,
		Status:       rec.Status,
		Error:        rec.Error,
		Width:        rec.Width,
		Height:       rec.Height,
		TileSize:     rec.TileSize,
		Subdivisions: rec.Subdivisions,
		Smooth:       rec.Smooth,
		DurationMsec: rec.DurationMsec,
		Done:         done,
		Total:        total,
		Report:       report,
	}
}

// Upload an image and start segmenting it.
// The response is the run ID. Progress is available on the websocket, and the
// results from /api/run/:id once the status is finished.
func (s *Server) httpSegmentStart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	maxSize := int64(s.Config.Server.MaxUploadMB) * 1024 * 1024
	if r.ContentLength > maxSize {
		www.PanicBadRequestf("Request body is too large: %v. Maximum size: %v MB", r.ContentLength, s.Config.Server.MaxUploadMB)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize))
	www.Check(err)
	img, err := cimg.Decompress(body)
	if err != nil {
		www.PanicBadRequestf("Failed to decode image: %v", err)
	}
	if img.NChan() != 3 {
		www.PanicBadRequestf("Image must be RGB, not %v channels", img.NChan())
	}

	smooth := www.QueryValue(r, "smooth") != "0"
	subdivisions := s.Config.Model.Subdivisions
	if v := www.QueryValue(r, "subdivisions"); v != "" {
		subdivisions, err = strconv.Atoi(v)
		if err != nil {
			www.PanicBadRequestf("Invalid subdivisions '%v'", v)
		}
	}
	if !smooth {
		subdivisions = 0
	}
	filename := strings.TrimSpace(www.QueryValue(r, "filename"))
	if len(filename) > 200 {
		filename = filename[:200]
	}

	rec := rundb.Run{
		CreatedAt:    dbh.MakeIntTime(time.Now()),
		SourceFile:   filename,
		Status:       rundb.RunStatusQueued,
		Width:        img.Width,
		Height:       img.Height,
		TileSize:     s.Config.Model.TileSize,
		Subdivisions: subdivisions,
		Smooth:       smooth,
	}
	www.Check(s.RunDB.AddRun(&rec))
	job := &runJob{
		rec: rec,
		src: img,
	}
	if err := s.runs.add(job); err != nil {
		www.SendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.Log.Infof("Run %v queued: %vx%v '%v' (smooth: %v)", rec.ID, img.Width, img.Height, filename, smooth)
	www.SendID(w, rec.ID)
}

func (s *Server) httpRunsList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := 0
	if v := www.QueryValue(r, "limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	runs, err := s.RunDB.LatestRuns(limit)
	www.Check(err)
	// The reports can be large, so the list only carries the summaries.
	for i := range runs {
		runs[i].Report = ""
	}
	www.SendJSON(w, runs)
}

func (s *Server) httpRunGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	if id == 0 {
		www.PanicBadRequestf("Invalid run ID")
	}
	if job := s.runs.get(id); job != nil {
		job.lock.Lock()
		rec := job.rec
		done, total := job.done, job.total
		job.lock.Unlock()
		www.SendJSON(w, toRunJSON(&rec, done, total))
		return
	}
	rec, err := s.RunDB.GetRun(id)
	www.Check(err)
	www.SendJSON(w, toRunJSON(rec, 0, 0))
}

// finishedJobOrPanic returns the in-memory job, or panics with an appropriate
// HTTP error. Old runs survive in the DB, but their pixels are evicted.
func (s *Server) finishedJobOrPanic(idStr string) *runJob {
	id := www.ParseID(idStr)
	if id == 0 {
		www.PanicBadRequestf("Invalid run ID")
	}
	job := s.runs.get(id)
	if job == nil {
		_, err := s.RunDB.GetRun(id)
		www.Check(err)
		www.PanicBadRequestf("Run %v is no longer in memory. Start a new run to view images.", id)
	}
	job.lock.Lock()
	status := job.rec.Status
	job.lock.Unlock()
	if status != rundb.RunStatusFinished {
		www.PanicBadRequestf("Run %v is %v", id, status)
	}
	return job
}

func queryAlpha(r *http.Request) float32 {
	alpha := 0.5
	if v := www.QueryValue(r, "alpha"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 1 {
			www.PanicBadRequestf("Invalid alpha '%v'", v)
		}
		alpha = f
	}
	return float32(alpha)
}

// cleanMask builds the mask of one class with its configured cleanup applied,
// so what you see matches what the report measured.
func (s *Server) cleanMask(labels *seg.LabelMap, classID int) *regions.Mask {
	mask := regions.MaskOf(labels, classID)
	if op, ok := s.cleanup[classID]; ok {
		mask = regions.Apply(mask, op)
	}
	return mask
}

func (s *Server) httpRunOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	job := s.finishedJobOrPanic(params.ByName("id"))
	alpha := queryAlpha(r)

	var img *cimg.Image
	var err error
	job.lock.Lock()
	if v := www.QueryValue(r, "class"); v != "" {
		classID, atoiErr := strconv.Atoi(v)
		if atoiErr != nil {
			job.lock.Unlock()
			www.PanicBadRequestf("Invalid class '%v'", v)
		}
		img, err = render.HighlightMask(job.src, s.cleanMask(job.labels, classID), s.palette.Color(classID), alpha)
	} else {
		img, err = render.Overlay(job.src, job.labels, s.palette, alpha)
	}
	job.lock.Unlock()
	www.Check(err)

	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling444, 95, 0))
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}

func (s *Server) httpRunMask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	job := s.finishedJobOrPanic(params.ByName("id"))
	classList := www.RequiredQueryValue(r, "classes")
	classIDs := []int{}
	for _, part := range strings.Split(classList, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			www.PanicBadRequestf("Invalid class '%v'", part)
		}
		classIDs = append(classIDs, id)
	}

	job.lock.Lock()
	union := regions.NewMask(job.labels.Width, job.labels.Height)
	for _, id := range classIDs {
		mask := s.cleanMask(job.labels, id)
		for i, v := range mask.Pix {
			if v != 0 {
				union.Pix[i] = 255
			}
		}
	}
	img := render.MaskToImage(union)
	job.lock.Unlock()

	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling444, 90, 0))
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}

type inspectJSON struct {
	X         int                   `json:"x"`
	Y         int                   `json:"y"`
	ClassID   int                   `json:"classId"`
	ClassName string                `json:"className"`
	Scores    []float32             `json:"scores,omitempty"`
	Component *inspectComponentJSON `json:"component,omitempty"`
}

type inspectComponentJSON struct {
	ID     int         `json:"id"`
	Pixels int         `json:"pixels"`
	Area   float64     `json:"area"`
	Box    regions.Box `json:"box"`
}

// Inspect a single pixel: its class, the class scores (for smooth runs), and the
// connected component it belongs to.
func (s *Server) httpRunInspect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	job := s.finishedJobOrPanic(params.ByName("id"))
	x, err := strconv.Atoi(www.RequiredQueryValue(r, "x"))
	if err != nil {
		www.PanicBadRequestf("Invalid x")
	}
	y, err := strconv.Atoi(www.RequiredQueryValue(r, "y"))
	if err != nil {
		www.PanicBadRequestf("Invalid y")
	}

	job.lock.Lock()
	width, height := job.labels.Width, job.labels.Height
	if x < 0 || y < 0 || x >= width || y >= height {
		job.lock.Unlock()
		www.PanicBadRequestf("Pixel %v,%v is outside the %vx%v image", x, y, width, height)
	}
	classID := job.labels.At(x, y)
	var scores []float32
	if job.scores != nil {
		scores = append([]float32{}, job.scores.Pixel(x, y)...)
	}
	job.lock.Unlock()

	resp := inspectJSON{
		X:         x,
		Y:         y,
		ClassID:   classID,
		ClassName: s.className(classID),
		Scores:    scores,
	}
	idx, err := s.componentIndex(job, classID)
	www.Check(err)
	if compID := idx.At(x, y); compID != 0 {
		c := idx.Component(compID)
		resp.Component = &inspectComponentJSON{
			ID:     c.ID,
			Pixels: c.Pixels,
			Area:   float64(c.Pixels) * s.Config.Measure.ScaleFactor,
			Box:    c.Box,
		}
	}
	www.SendJSON(w, resp)
}

func (s *Server) className(classID int) string {
	classes := s.model.Config().Classes
	if classID >= 0 && classID < len(classes) {
		return classes[classID]
	}
	return strconv.Itoa(classID)
}

// Progress reporting over a websocket, so a client can show a progress bar
// while a large image segments.
func (s *Server) httpRunProgress(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	if id == 0 {
		www.PanicBadRequestf("Invalid run ID")
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpRunProgress websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	job := s.runs.get(id)
	if job == nil {
		// The run is either unknown or evicted. Send its final state, if we have one.
		msg := RunProgress{RunID: id, Status: rundb.RunStatusFailed, Error: "run not found"}
		if rec, err := s.RunDB.GetRun(id); err == nil {
			msg = RunProgress{RunID: id, Status: rec.Status, Error: rec.Error}
		}
		conn.WriteJSON(msg)
		return
	}

	ch, cancel := s.runs.subscribe(job)
	defer cancel()

	clientGone := make(chan bool)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(clientGone)
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Status == rundb.RunStatusFinished || msg.Status == rundb.RunStatusFailed {
				return
			}
		case <-clientGone:
			return
		}
	}
}
