package regions

import (
	"testing"

	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/stretchr/testify/require"
)

// maskFromRows builds a mask from strings where '#' is foreground.
func maskFromRows(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			if row[x] == '#' {
				m.Pix[y*m.Width+x] = 255
			}
		}
	}
	return m
}

func TestLabelSquare(t *testing.T) {
	m := NewMask(30, 30)
	for y := 5; y <= 14; y++ {
		for x := 8; x <= 17; x++ {
			m.Set(x, y, true)
		}
	}
	comps, err := Label(m, Connect8)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	require.Equal(t, 1, comps[0].ID)
	require.Equal(t, 100, comps[0].Pixels)
	require.Equal(t, Box{MinRow: 5, MinCol: 8, MaxRow: 14, MaxCol: 17}, comps[0].Box)
}

func TestLabelConnectivity(t *testing.T) {
	// Two pixels touching only diagonally are separate under 4-connectivity and a
	// single component under 8-connectivity.
	m := maskFromRows(
		"#.",
		".#",
	)
	comps4, err := Label(m, Connect4)
	require.NoError(t, err)
	require.Len(t, comps4, 2)
	require.Equal(t, 1, comps4[0].Pixels)
	require.Equal(t, 1, comps4[1].Pixels)

	comps8, err := Label(m, Connect8)
	require.NoError(t, err)
	require.Len(t, comps8, 1)
	require.Equal(t, 2, comps8[0].Pixels)
	require.Equal(t, Box{MinRow: 0, MinCol: 0, MaxRow: 1, MaxCol: 1}, comps8[0].Box)
}

func TestLabelUShape(t *testing.T) {
	// The two arms of the U get different provisional labels that must be merged
	// when the scan reaches the bottom row.
	m := maskFromRows(
		"#.#",
		"#.#",
		"###",
	)
	comps, err := Label(m, Connect4)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	require.Equal(t, 7, comps[0].Pixels)
}

func TestLabelEmptyMask(t *testing.T) {
	comps, err := Label(NewMask(16, 16), Connect8)
	require.NoError(t, err)
	require.NotNil(t, comps)
	require.Empty(t, comps)
}

func TestLabelBadConnectivity(t *testing.T) {
	_, err := Label(NewMask(4, 4), Connectivity(5))
	require.ErrorIs(t, err, seg.ErrConfiguration)
}

func TestLabelPixelsConserved(t *testing.T) {
	// The components partition the foreground, so their pixel counts sum to the
	// foreground count, under either connectivity.
	m := maskFromRows(
		"##..#..#",
		"#...##..",
		"....#..#",
		"##....##",
	)
	for _, conn := range []Connectivity{Connect4, Connect8} {
		comps, err := Label(m, conn)
		require.NoError(t, err)
		sum := 0
		for _, c := range comps {
			sum += c.Pixels
		}
		require.Equal(t, m.ForegroundCount(), sum)
	}
}

func TestLabelDeterministic(t *testing.T) {
	m := maskFromRows(
		"#..##",
		"#..##",
		".....",
		"##..#",
	)
	first, err := Label(m, Connect8)
	require.NoError(t, err)
	second, err := Label(m, Connect8)
	require.NoError(t, err)
	require.Equal(t, first, second)
	// Ids follow scan order of each component's first pixel.
	for i, c := range first {
		require.Equal(t, i+1, c.ID)
	}
}

func TestMaskOf(t *testing.T) {
	labels := seg.NewLabelMap(4, 2, 6)
	labels.Pix = []uint8{
		0, 0, 1, 2,
		2, 1, 1, 5,
	}
	require.Equal(t, 2, MaskOf(labels, 0).ForegroundCount())
	require.Equal(t, 3, MaskOf(labels, 1).ForegroundCount())
	// Selecting several classes unions their pixels.
	union := MaskOf(labels, 0, 2)
	require.Equal(t, 4, union.ForegroundCount())
	require.True(t, union.At(3, 0))
	require.False(t, union.At(3, 1))
	// Unknown ids are not an error, they just select nothing.
	require.Equal(t, 0, MaskOf(labels, 97).ForegroundCount())
}

func TestMorphOpen(t *testing.T) {
	// Opening removes the lone speckle but restores the 4x4 block exactly.
	m := NewMask(8, 8)
	for y := 1; y <= 4; y++ {
		for x := 1; x <= 4; x++ {
			m.Set(x, y, true)
		}
	}
	m.Set(6, 6, true)
	out := Apply(m, MorphOpen)
	require.Equal(t, 16, out.ForegroundCount())
	require.False(t, out.At(6, 6))
	require.True(t, out.At(1, 1))
	require.True(t, out.At(4, 4))
}

func TestMorphClose(t *testing.T) {
	// Closing fills the pinhole in the middle of the block.
	m := NewMask(7, 7)
	for y := 1; y <= 5; y++ {
		for x := 1; x <= 5; x++ {
			m.Set(x, y, true)
		}
	}
	m.Set(3, 3, false)
	require.Equal(t, 24, m.ForegroundCount())
	out := Apply(m, MorphClose)
	require.Equal(t, 25, out.ForegroundCount())
	require.True(t, out.At(3, 3))
}

func TestMorphNoneCopies(t *testing.T) {
	m := maskFromRows("#.", ".#")
	out := Apply(m, MorphNone)
	require.Equal(t, m.Pix, out.Pix)
	out.Set(0, 0, false)
	require.True(t, m.At(0, 0))
}

func TestParseMorph(t *testing.T) {
	for s, want := range map[string]Morph{"none": MorphNone, "open": MorphOpen, "close": MorphClose} {
		got, err := ParseMorph(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, s, got.String())
	}
	_, err := ParseMorph("blur")
	require.ErrorIs(t, err, seg.ErrConfiguration)
}

func TestComponentsByClass(t *testing.T) {
	labels := seg.NewLabelMap(8, 8, 6)
	// Class 5 is a 4x4 block plus a speckle, everything else class 1.
	for i := range labels.Pix {
		labels.Pix[i] = 1
	}
	for y := 1; y <= 4; y++ {
		for x := 1; x <= 4; x++ {
			labels.Pix[y*8+x] = 5
		}
	}
	labels.Pix[6*8+6] = 5

	plain, err := ComponentsByClass(labels, []int{5}, Connect8, nil)
	require.NoError(t, err)
	require.Len(t, plain[5], 2)

	cleaned, err := ComponentsByClass(labels, []int{5}, Connect8, CleanupMap{5: MorphOpen})
	require.NoError(t, err)
	require.Len(t, cleaned[5], 1)
	require.Equal(t, 16, cleaned[5][0].Pixels)

	// A class with no pixels still gets an entry.
	empty, err := ComponentsByClass(labels, []int{3}, Connect8, nil)
	require.NoError(t, err)
	require.Contains(t, empty, 3)
	require.Empty(t, empty[3])
}

func TestComponentIndex(t *testing.T) {
	m := NewMask(12, 6)
	m.Set(0, 0, true)
	for x := 4; x <= 6; x++ {
		m.Set(x, 0, true)
	}
	for y := 2; y <= 3; y++ {
		for x := 8; x <= 11; x++ {
			m.Set(x, y, true)
		}
	}
	idx, err := NewComponentIndex(m, Connect8)
	require.NoError(t, err)
	require.Len(t, idx.Components(), 3)

	require.Equal(t, 1, idx.At(0, 0))
	require.Equal(t, 2, idx.At(5, 0))
	require.Equal(t, 3, idx.At(9, 3))
	require.Equal(t, 0, idx.At(1, 1))
	require.Equal(t, 0, idx.At(-1, 0))
	require.Equal(t, 0, idx.At(12, 0))

	require.Equal(t, 3, idx.Component(3).ID)
	require.Nil(t, idx.Component(0))
	require.Nil(t, idx.Component(4))

	hits := idx.Query(Box{MinRow: 0, MinCol: 0, MaxRow: 0, MaxCol: 5})
	ids := []int{}
	for _, c := range hits {
		ids = append(ids, c.ID)
	}
	require.ElementsMatch(t, []int{1, 2}, ids)

	all := idx.Query(Box{MinRow: 0, MinCol: 0, MaxRow: 5, MaxCol: 11})
	require.Len(t, all, 3)
}

func TestComponentIndexEmpty(t *testing.T) {
	idx, err := NewComponentIndex(NewMask(8, 8), Connect4)
	require.NoError(t, err)
	require.Empty(t, idx.Components())
	require.Equal(t, 0, idx.At(3, 3))
	require.Empty(t, idx.Query(Box{MinRow: 0, MinCol: 0, MaxRow: 7, MaxCol: 7}))
}
