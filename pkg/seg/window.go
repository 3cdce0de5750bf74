package seg

import (
	"fmt"
	"sync"
)

// WindowTable is the 2D blending kernel for one tile size: the outer product of a 1D
// spline taper with itself. Weights peak at 1.0 in the tile center and fall toward zero
// at the edges, strictly decreasing along rows and columns, symmetric under 180 degree
// rotation.
type WindowTable struct {
	Size    int
	Weights []float32 // Size*Size, row-major
}

var windowCache = map[int]*WindowTable{}
var windowLock sync.Mutex

// BuildWindow returns the blending window for the given tile size. The table depends on
// tileSize alone, so results are cached.
func BuildWindow(tileSize int) (*WindowTable, error) {
	if tileSize < 4 {
		return nil, fmt.Errorf("%w: window tile size %v", ErrConfiguration, tileSize)
	}
	windowLock.Lock()
	defer windowLock.Unlock()
	if w, ok := windowCache[tileSize]; ok {
		return w, nil
	}
	line := splineWindow(tileSize)
	w := &WindowTable{
		Size:    tileSize,
		Weights: make([]float32, tileSize*tileSize),
	}
	for y := 0; y < tileSize; y++ {
		for x := 0; x < tileSize; x++ {
			w.Weights[y*tileSize+x] = line[y] * line[x]
		}
	}
	windowCache[tileSize] = w
	return w, nil
}

// splineWindow builds the 1D taper: a squared triangular window on the outer quarters,
// joined to its inverted complement on the inner half, rescaled so the peak is 1.0.
func splineWindow(n int) []float32 {
	tri := triang(n)
	quarter := n / 4
	line := make([]float32, n)
	for i, t := range tri {
		if i < quarter || i >= n-quarter {
			line[i] = 2 * t * t
		} else {
			d := t - 1
			line[i] = 1 - 2*d*d
		}
	}
	peak := line[0]
	for _, v := range line {
		if v > peak {
			peak = v
		}
	}
	for i := range line {
		line[i] /= peak
	}
	return line
}

// Symmetric triangular window with n points, peak at the center.
func triang(n int) []float32 {
	w := make([]float32, n)
	if n%2 == 0 {
		for i := 0; i < n/2; i++ {
			w[i] = float32(2*i+1) / float32(n)
			w[n-1-i] = w[i]
		}
	} else {
		for i := 0; i <= n/2; i++ {
			w[i] = float32(2*(i+1)) / float32(n+1)
			w[n-1-i] = w[i]
		}
	}
	return w
}
