// Package regions extracts connected components from class label maps and measures
// their area in real-world units.
package regions

import "github.com/cyclopcam/landcover/pkg/seg"

// Mask is a binary image, 0 for background and 255 for foreground. The 0/255 convention
// keeps masks directly viewable as 8-bit images.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8 // y*Width + x
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

func (m *Mask) At(x, y int) bool {
	return m.Pix[y*m.Width+x] != 0
}

func (m *Mask) Set(x, y int, foreground bool) {
	if foreground {
		m.Pix[y*m.Width+x] = 255
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// ForegroundCount returns the number of foreground pixels.
func (m *Mask) ForegroundCount() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// MaskOf builds the mask of all pixels whose label is any of classIDs. Selecting several
// ids unions their pixels into one mask. Ids that never occur in the map simply
// contribute nothing; an unknown id is not an error.
func MaskOf(labels *seg.LabelMap, classIDs ...int) *Mask {
	selected := [256]bool{}
	for _, id := range classIDs {
		if id >= 0 && id < 256 {
			selected[id] = true
		}
	}
	out := NewMask(labels.Width, labels.Height)
	for i, v := range labels.Pix {
		if selected[v] {
			out.Pix[i] = 255
		}
	}
	return out
}
