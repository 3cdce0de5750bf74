package seg

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
)

// BlendOptions control smooth reconstruction.
type BlendOptions struct {
	TileSize     int // Zero value uses the model's tile size
	Subdivisions int // Overlap factor, even and >= 2. Zero value uses 2.
	// Number of concurrent classifier calls. Zero or 1 runs tiles serially, which is
	// always safe. Only pass more (or -1 for NumCPU) if the classifier is safe for
	// concurrent calls.
	Workers int
	// Optional. Called once per accumulated tile, from a single goroutine.
	Progress func(done, total int)
}

// One classified, window-weighted tile on its way to the accumulator
type tileResult struct {
	spec   TileSpec
	scores []float32 // Size*Size*classes
}

// ReconstructSmooth classifies every tile of the overlapped grid and blends the
// predictions into a seam-free score volume, image-sized, with each pixel's class
// scores normalized to a probability distribution.
//
// Each tile is min-max scaled independently before classification. Tile contributions
// are weighted by the blending window and summed; the per-pixel weight sum divides the
// result, so tile processing order only affects floating point summation order.
// Workers classify tiles; a single accumulator loop owns the sum buffers.
func ReconstructSmooth(logger logs.Log, img *FloatImage, model Classifier, opt BlendOptions) (*ScoreVolume, error) {
	cfg := model.Config()
	if err := validateModel(cfg); err != nil {
		return nil, err
	}
	if img.Channels <= 0 {
		return nil, fmt.Errorf("%w: image has %v channels", ErrConfiguration, img.Channels)
	}
	tileSize := opt.TileSize
	if tileSize == 0 {
		tileSize = cfg.Width
	}
	subdivisions := opt.Subdivisions
	if subdivisions == 0 {
		subdivisions = 2
	}
	workers := opt.Workers
	if workers == 0 {
		workers = 1
	} else if workers < 0 {
		workers = runtime.NumCPU()
	}
	grid, err := OverlappingGrid(img.Width, img.Height, tileSize, subdivisions)
	if err != nil {
		return nil, err
	}
	window, err := BuildWindow(tileSize)
	if err != nil {
		return nil, err
	}
	nclass := cfg.NumClasses()

	logger.Infof("Blending %vx%v image: %v tiles of %v, step %v, %v workers", img.Width, img.Height, len(grid.Tiles), tileSize, grid.Step, workers)

	padded := img.PadReflect(grid.Pad)

	// Accumulators over the padded space. Only the loop near the bottom writes them.
	scores := make([]float32, grid.PaddedWidth*grid.PaddedHeight*nclass)
	weights := make([]float32, grid.PaddedWidth*grid.PaddedHeight)

	jobs := make(chan TileSpec, len(grid.Tiles))
	for _, spec := range grid.Tiles {
		jobs <- spec
	}
	close(jobs)

	results := make(chan tileResult, workers)
	errs := make(chan error, 1)
	failed := atomic.Bool{}
	fail := func(err error) {
		failed.Store(true)
		select {
		case errs <- err:
		default:
		}
	}

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tile := NewFloatImage(tileSize, tileSize, img.Channels)
			for spec := range jobs {
				if failed.Load() {
					continue
				}
				padded.CopyTile(tile, spec)
				scaleTileMinMax(tile)
				pred, err := model.ClassifyTile(tile)
				if err != nil {
					fail(err)
					continue
				}
				if pred.Width != tileSize || pred.Height != tileSize || pred.Classes != nclass {
					fail(fmt.Errorf("%w: classifier returned %vx%vx%v for a %vx%v tile with %v classes",
						ErrReconstruction, pred.Width, pred.Height, pred.Classes, tileSize, tileSize, nclass))
					continue
				}
				for p := 0; p < tileSize*tileSize; p++ {
					w := window.Weights[p]
					for c := 0; c < nclass; c++ {
						pred.Scores[p*nclass+c] *= w
					}
				}
				results <- tileResult{spec: spec, scores: pred.Scores}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		size := res.spec.Size
		for y := 0; y < size; y++ {
			rowOff := (res.spec.Row+y)*grid.PaddedWidth + res.spec.Col
			accumulate(scores[rowOff*nclass:(rowOff+size)*nclass], res.scores[y*size*nclass:(y+1)*size*nclass])
			accumulate(weights[rowOff:rowOff+size], window.Weights[y*size:(y+1)*size])
		}
		done++
		if opt.Progress != nil {
			opt.Progress(done, len(grid.Tiles))
		}
	}
	select {
	case err := <-errs:
		return nil, err
	default:
	}

	// Trim the padding and normalize. Every pixel must have been covered; the window is
	// strictly positive, so zero weight means the grid and window were mismatched.
	out := NewScoreVolume(img.Width, img.Height, nclass)
	for y := 0; y < img.Height; y++ {
		py := y + grid.Pad.Top
		for x := 0; x < img.Width; x++ {
			px := x + grid.Pad.Left
			w := weights[py*grid.PaddedWidth+px]
			if w <= 0 {
				return nil, fmt.Errorf("%w: zero accumulated weight at pixel %v,%v", ErrReconstruction, x, y)
			}
			src := scores[(py*grid.PaddedWidth+px)*nclass : (py*grid.PaddedWidth+px+1)*nclass]
			dst := out.Pixel(x, y)
			sum := float32(0)
			for c, s := range src {
				dst[c] = s / w
				sum += dst[c]
			}
			if sum > 0 {
				inv := 1 / sum
				for c := range dst {
					dst[c] *= inv
				}
			}
		}
	}
	return out, nil
}

func accumulate(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
