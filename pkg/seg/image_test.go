package seg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPadReflect(t *testing.T) {
	// 4x1 single channel image: 1 2 3 4
	img := NewFloatImage(4, 1, 1)
	copy(img.Pix, []float32{1, 2, 3, 4})

	out := img.PadReflect(Padding{Left: 2, Right: 3})
	require.Equal(t, 9, out.Width)
	require.Equal(t, 1, out.Height)
	// Mirrored about the edges, edge sample not repeated
	require.Equal(t, []float32{3, 2, 1, 2, 3, 4, 3, 2, 1}, out.Pix)
}

func TestPadReflectVertical(t *testing.T) {
	// 1x3 image: 5 / 6 / 7
	img := NewFloatImage(1, 3, 1)
	copy(img.Pix, []float32{5, 6, 7})

	out := img.PadReflect(Padding{Top: 2, Bottom: 1})
	require.Equal(t, []float32{7, 6, 5, 6, 7, 6}, out.Pix)
}

func TestCopyTile(t *testing.T) {
	img := NewFloatImage(4, 4, 2)
	for i := range img.Pix {
		img.Pix[i] = float32(i)
	}
	tile := NewFloatImage(2, 2, 2)
	img.CopyTile(tile, TileSpec{Row: 1, Col: 2, Size: 2})
	// Row 1 starts at sample 8; col 2 adds 4 samples
	require.Equal(t, []float32{12, 13, 14, 15, 20, 21, 22, 23}, tile.Pix)
}
