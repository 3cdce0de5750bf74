package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/cyclopcam/landcover/server/rundb"
	"github.com/cyclopcam/logs"
)

// RunProgress is the message sent to progress websocket subscribers.
type RunProgress struct {
	RunID  int64  `json:"runId"`
	Status string `json:"status"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Error  string `json:"error,omitempty"`
}

// runJob is the in-memory side of a run: the DB record plus the artifacts that
// are too large to persist (source pixels, label map, score volume).
type runJob struct {
	lock        sync.Mutex
	rec         rundb.Run
	done        int
	total       int
	src         *cimg.Image
	labels      *seg.LabelMap
	scores      *seg.ScoreVolume // nil for fast runs
	report      *regions.AreaReport
	indexes     map[int]*regions.ComponentIndex
	subscribers map[chan RunProgress]bool
}

// snapshotRec copies the DB record under the lock, so it can be persisted or
// serialized without holding the lock across IO.
func (j *runJob) snapshotRec() rundb.Run {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.rec
}

func (j *runJob) snapshot() RunProgress {
	return RunProgress{
		RunID:  j.rec.ID,
		Status: j.rec.Status,
		Done:   j.done,
		Total:  j.total,
		Error:  j.rec.Error,
	}
}

// broadcastLocked sends the current state to all subscribers without blocking.
// A subscriber that can't keep up just misses intermediate updates.
func (j *runJob) broadcastLocked() {
	msg := j.snapshot()
	for ch := range j.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// runManager executes runs one at a time on a background goroutine, and keeps
// the artifacts of the most recent finished runs in memory for inspection.
// Within a run, inference is parallel, so a second concurrent run would mostly
// fight the first one for cores.
type runManager struct {
	log     logs.Log
	process func(*runJob)
	keep    int

	lock      sync.Mutex
	jobs      map[int64]*runJob
	doneOrder []int64
	stopped   bool

	queue chan *runJob
	quit  chan bool
	wg    sync.WaitGroup
}

func newRunManager(log logs.Log, keep int, process func(*runJob)) *runManager {
	if keep < 1 {
		keep = 1
	}
	return &runManager{
		log:     log,
		process: process,
		keep:    keep,
		jobs:    map[int64]*runJob{},
		queue:   make(chan *runJob, 64),
		quit:    make(chan bool),
	}
}

func (m *runManager) start() {
	m.wg.Add(1)
	go m.workerLoop()
}

// stop waits for the active run to finish. Queued runs are abandoned, and get
// marked failed by MarkInterrupted on the next startup.
func (m *runManager) stop() {
	m.lock.Lock()
	m.stopped = true
	m.lock.Unlock()
	close(m.quit)
	m.wg.Wait()
}

func (m *runManager) workerLoop() {
	defer m.wg.Done()
	for {
		select {
		case job := <-m.queue:
			m.process(job)
			m.retire(job)
		case <-m.quit:
			return
		}
	}
}

// add registers a job and queues it for processing.
func (m *runManager) add(job *runJob) error {
	job.indexes = map[int]*regions.ComponentIndex{}
	job.subscribers = map[chan RunProgress]bool{}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.stopped {
		return fmt.Errorf("server is shutting down")
	}
	m.jobs[job.rec.ID] = job
	select {
	case m.queue <- job:
		return nil
	default:
		delete(m.jobs, job.rec.ID)
		return fmt.Errorf("run queue is full")
	}
}

func (m *runManager) get(id int64) *runJob {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.jobs[id]
}

// retire makes a finished job eligible for eviction, and evicts the oldest
// finished jobs beyond our memory budget. The DB record outlives eviction.
func (m *runManager) retire(job *runJob) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.doneOrder = append(m.doneOrder, job.rec.ID)
	for len(m.doneOrder) > m.keep {
		evict := m.doneOrder[0]
		m.doneOrder = m.doneOrder[1:]
		delete(m.jobs, evict)
	}
}

func (m *runManager) setProgress(job *runJob, done, total int) {
	job.lock.Lock()
	defer job.lock.Unlock()
	job.done = done
	job.total = total
	job.broadcastLocked()
}

func (m *runManager) setStatus(job *runJob, status, errMsg string) {
	job.lock.Lock()
	defer job.lock.Unlock()
	job.rec.Status = status
	job.rec.Error = errMsg
	job.broadcastLocked()
}

// subscribe returns a channel of progress updates, primed with the current state.
// The caller must call the returned cancel function.
func (m *runManager) subscribe(job *runJob) (chan RunProgress, func()) {
	ch := make(chan RunProgress, 16)
	job.lock.Lock()
	job.subscribers[ch] = true
	ch <- job.snapshot()
	job.lock.Unlock()
	cancel := func() {
		job.lock.Lock()
		delete(job.subscribers, ch)
		job.lock.Unlock()
	}
	return ch, cancel
}

// executeRun is the background worker: segment, measure, persist.
// job.rec is only ever touched under job.lock, because HTTP handlers read it
// concurrently while the run is in flight.
func (s *Server) executeRun(job *runJob) {
	start := time.Now()
	runID := job.snapshotRec().ID
	s.runs.setStatus(job, rundb.RunStatusRunning, "")
	rec := job.snapshotRec()
	if err := s.RunDB.UpdateRun(&rec); err != nil {
		s.Log.Warnf("Failed to mark run %v running: %v", runID, err)
	}

	err := s.runPipeline(job)
	job.lock.Lock()
	job.rec.DurationMsec = time.Since(start).Milliseconds()
	job.lock.Unlock()
	if err != nil {
		s.Log.Errorf("Run %v failed: %v", runID, err)
		s.runs.setStatus(job, rundb.RunStatusFailed, err.Error())
	} else {
		s.Log.Infof("Run %v finished in %.1fs", runID, time.Since(start).Seconds())
		s.runs.setStatus(job, rundb.RunStatusFinished, "")
	}
	rec = job.snapshotRec()
	if err := s.RunDB.UpdateRun(&rec); err != nil {
		s.Log.Errorf("Failed to save run %v: %v", runID, err)
	}
}

func (s *Server) runPipeline(job *runJob) error {
	rec := job.snapshotRec()
	src, err := seg.FloatImageFromCImage(job.src)
	if err != nil {
		return err
	}

	var labels *seg.LabelMap
	var scores *seg.ScoreVolume
	if rec.Smooth {
		opt := seg.BlendOptions{
			TileSize:     rec.TileSize,
			Subdivisions: rec.Subdivisions,
			Workers:      s.Config.Model.Workers,
			Progress: func(done, total int) {
				s.runs.setProgress(job, done, total)
			},
		}
		scores, err = seg.ReconstructSmooth(s.Log, src, s.model, opt)
		if err != nil {
			return err
		}
		labels = scores.ArgmaxLabels()
	} else {
		labels, err = seg.PredictTiled(s.Log, src, s.model, rec.TileSize)
		if err != nil {
			return err
		}
	}

	classIDs := make([]int, s.model.Config().NumClasses())
	for i := range classIDs {
		classIDs[i] = i
	}
	byClass, err := regions.ComponentsByClass(labels, classIDs, s.conn, s.cleanup)
	if err != nil {
		return err
	}
	agg, err := regions.NewAreaAggregator(s.Config.Measure.ScaleFactor, s.model.Config().Classes)
	if err != nil {
		return err
	}
	report := agg.Aggregate(byClass)

	// The tiled baseline crops the image to a whole number of tiles, so the
	// source kept for overlays must be cropped to match.
	croppedSrc := job.src
	if labels.Width != job.src.Width || labels.Height != job.src.Height {
		croppedSrc = cropImage(job.src, labels.Width, labels.Height)
	}

	job.lock.Lock()
	job.rec.Width = labels.Width
	job.rec.Height = labels.Height
	err = job.rec.SetReport(report)
	job.src = croppedSrc
	job.labels = labels
	job.scores = scores
	job.report = report
	job.lock.Unlock()
	return err
}

// componentIndex returns the (lazily built) component index for one class,
// using the same cleanup that the report used, so inspection agrees with it.
func (s *Server) componentIndex(job *runJob, classID int) (*regions.ComponentIndex, error) {
	job.lock.Lock()
	defer job.lock.Unlock()
	if idx, ok := job.indexes[classID]; ok {
		return idx, nil
	}
	mask := regions.MaskOf(job.labels, classID)
	if op, ok := s.cleanup[classID]; ok {
		mask = regions.Apply(mask, op)
	}
	idx, err := regions.NewComponentIndex(mask, s.conn)
	if err != nil {
		return nil, err
	}
	job.indexes[classID] = idx
	return idx, nil
}

func cropImage(src *cimg.Image, width, height int) *cimg.Image {
	out := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		copy(out.Pixels[y*out.Stride:y*out.Stride+width*3], src.Pixels[y*src.Stride:y*src.Stride+width*3])
	}
	return out
}
