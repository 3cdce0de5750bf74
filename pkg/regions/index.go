package regions

import (
	"github.com/bmharper/flatbush-go"
)

// ComponentIndex labels a mask once and answers point and box queries about the
// resulting components. Queries reuse an internal search buffer, so an index must
// not be queried from multiple goroutines without locking.
type ComponentIndex struct {
	width     int
	height    int
	comps     []Component
	ids       []int32 // compact component id per pixel, 0 for background
	fb        *flatbush.Flatbush[int32]
	searchBuf []int
}

func NewComponentIndex(mask *Mask, conn Connectivity) (*ComponentIndex, error) {
	ids, comps, err := labelGrid(mask, conn)
	if err != nil {
		return nil, err
	}
	idx := &ComponentIndex{
		width:     mask.Width,
		height:    mask.Height,
		comps:     comps,
		ids:       ids,
		searchBuf: []int{},
	}
	if len(comps) != 0 {
		idx.fb = flatbush.NewFlatbush[int32]()
		idx.fb.Reserve(len(comps))
		for _, c := range comps {
			idx.fb.Add(int32(c.Box.MinCol), int32(c.Box.MinRow), int32(c.Box.MaxCol), int32(c.Box.MaxRow))
		}
		idx.fb.Finish()
	}
	return idx, nil
}

// Components returns all components, ordered by id.
func (x *ComponentIndex) Components() []Component {
	return x.comps
}

// Component returns the component with the given 1-based id, or nil.
func (x *ComponentIndex) Component(id int) *Component {
	if id < 1 || id > len(x.comps) {
		return nil
	}
	return &x.comps[id-1]
}

// At returns the component id at the pixel, or 0 for background and out of bounds
// coordinates.
func (x *ComponentIndex) At(px, py int) int {
	if px < 0 || py < 0 || px >= x.width || py >= x.height {
		return 0
	}
	return int(x.ids[py*x.width+px])
}

// Query returns the components whose bounding boxes intersect the given box.
func (x *ComponentIndex) Query(box Box) []Component {
	if x.fb == nil {
		return nil
	}
	x.searchBuf = x.fb.SearchFast(int32(box.MinCol), int32(box.MinRow), int32(box.MaxCol), int32(box.MaxRow), x.searchBuf)
	out := make([]Component, 0, len(x.searchBuf))
	for _, i := range x.searchBuf {
		out = append(out, x.comps[i])
	}
	return out
}
