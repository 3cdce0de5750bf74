package regions

import (
	"fmt"

	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/theodesp/unionfind"
)

// Connectivity chooses which pixels count as touching.
type Connectivity int

const (
	// Connect4 treats only the 4 edge neighbours as touching.
	Connect4 Connectivity = 4
	// Connect8 also treats the 4 diagonal neighbours as touching.
	Connect8 Connectivity = 8
)

// Box is an inclusive bounding rectangle in pixel coordinates.
type Box struct {
	MinRow int `json:"minRow"`
	MinCol int `json:"minCol"`
	MaxRow int `json:"maxRow"`
	MaxCol int `json:"maxCol"`
}

func (b Box) Width() int {
	return b.MaxCol - b.MinCol + 1
}

func (b Box) Height() int {
	return b.MaxRow - b.MinRow + 1
}

// Component is one maximal connected region of foreground pixels.
type Component struct {
	// ID is 1-based, assigned in scan order of each component's first pixel, so
	// labelling the same mask twice yields the same ids.
	ID     int `json:"id"`
	Pixels int `json:"pixels"`
	Box    Box `json:"box"`
}

// Label finds the connected components of the foreground of mask.
// An all-background mask yields an empty slice.
func Label(mask *Mask, conn Connectivity) ([]Component, error) {
	_, comps, err := labelGrid(mask, conn)
	return comps, err
}

// labelGrid is the classic two-pass algorithm: pass one hands out provisional labels
// and records equivalences in a union-find, pass two resolves each provisional label
// to its root and compacts the roots to 1..K. The returned raster holds the compact
// id at every pixel, 0 for background.
func labelGrid(mask *Mask, conn Connectivity) ([]int32, []Component, error) {
	if conn != Connect4 && conn != Connect8 {
		return nil, nil, fmt.Errorf("%w: connectivity must be 4 or 8, not %v", seg.ErrConfiguration, int(conn))
	}
	w := mask.Width
	h := mask.Height
	ids := make([]int32, w*h)
	// Worst case every foreground pixel gets its own provisional label.
	uf := unionfind.NewThreadSafeUnionFind(mask.ForegroundCount() + 1)
	next := int32(1)

	// Provisional labels. Only neighbours already visited by the scan matter:
	// left and the three pixels in the row above.
	neighbours := [4]int32{}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if mask.Pix[i] == 0 {
				continue
			}
			n := 0
			if x > 0 && ids[i-1] != 0 {
				neighbours[n] = ids[i-1]
				n++
			}
			if y > 0 {
				if ids[i-w] != 0 {
					neighbours[n] = ids[i-w]
					n++
				}
				if conn == Connect8 {
					if x > 0 && ids[i-w-1] != 0 {
						neighbours[n] = ids[i-w-1]
						n++
					}
					if x < w-1 && ids[i-w+1] != 0 {
						neighbours[n] = ids[i-w+1]
						n++
					}
				}
			}
			if n == 0 {
				ids[i] = next
				next++
				continue
			}
			ids[i] = neighbours[0]
			for j := 1; j < n; j++ {
				if neighbours[j] != neighbours[0] {
					uf.Union(int(neighbours[0]), int(neighbours[j]))
				}
			}
		}
	}

	// Resolve to roots and compact. Scan order guarantees deterministic ids.
	compact := make(map[int32]int32)
	comps := []Component{}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := ids[i]
			if v == 0 {
				continue
			}
			root := int32(uf.Root(int(v)))
			if root < 0 {
				// Never part of a union, so the provisional label is its own root.
				root = v
			}
			id, seen := compact[root]
			if !seen {
				id = int32(len(comps) + 1)
				compact[root] = id
				comps = append(comps, Component{
					ID:  int(id),
					Box: Box{MinRow: y, MinCol: x, MaxRow: y, MaxCol: x},
				})
			}
			ids[i] = id
			c := &comps[id-1]
			c.Pixels++
			if y < c.Box.MinRow {
				c.Box.MinRow = y
			}
			if y > c.Box.MaxRow {
				c.Box.MaxRow = y
			}
			if x < c.Box.MinCol {
				c.Box.MinCol = x
			}
			if x > c.Box.MaxCol {
				c.Box.MaxCol = x
			}
		}
	}
	return ids, comps, nil
}
