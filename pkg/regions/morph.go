package regions

import (
	"fmt"

	"github.com/cyclopcam/landcover/pkg/seg"
)

// Morph is a morphological cleanup applied to a mask before labelling.
type Morph int

const (
	// MorphNone leaves the mask untouched.
	MorphNone Morph = iota
	// MorphOpen erodes then dilates, removing speckle smaller than the 3x3 kernel.
	MorphOpen
	// MorphClose dilates then erodes, filling pinholes smaller than the 3x3 kernel.
	MorphClose
)

// CleanupMap assigns a cleanup operation per class id. Classes not in the map
// get MorphNone.
type CleanupMap map[int]Morph

func ParseMorph(s string) (Morph, error) {
	switch s {
	case "none":
		return MorphNone, nil
	case "open":
		return MorphOpen, nil
	case "close":
		return MorphClose, nil
	}
	return MorphNone, fmt.Errorf("%w: unknown morphology '%v' (none, open, close)", seg.ErrConfiguration, s)
}

func (m Morph) String() string {
	switch m {
	case MorphOpen:
		return "open"
	case MorphClose:
		return "close"
	}
	return "none"
}

// Apply returns a new mask with the cleanup applied. The kernel is the full 3x3
// neighbourhood, and pixels outside the image count as background.
func Apply(mask *Mask, op Morph) *Mask {
	switch op {
	case MorphOpen:
		return dilate(erode(mask))
	case MorphClose:
		return erode(dilate(mask))
	}
	out := NewMask(mask.Width, mask.Height)
	copy(out.Pix, mask.Pix)
	return out
}

func erode(m *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if allNeighbours(m, x, y) {
				out.Pix[y*m.Width+x] = 255
			}
		}
	}
	return out
}

func dilate(m *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if anyNeighbour(m, x, y) {
				out.Pix[y*m.Width+x] = 255
			}
		}
	}
	return out
}

func allNeighbours(m *Mask, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			yy := y + dy
			if xx < 0 || yy < 0 || xx >= m.Width || yy >= m.Height {
				return false
			}
			if m.Pix[yy*m.Width+xx] == 0 {
				return false
			}
		}
	}
	return true
}

func anyNeighbour(m *Mask, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			yy := y + dy
			if xx < 0 || yy < 0 || xx >= m.Width || yy >= m.Height {
				continue
			}
			if m.Pix[yy*m.Width+xx] != 0 {
				return true
			}
		}
	}
	return false
}
