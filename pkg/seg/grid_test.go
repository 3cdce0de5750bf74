package seg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlappingGrid(t *testing.T) {
	g, err := OverlappingGrid(512, 512, 256, 2)
	require.NoError(t, err)
	require.Equal(t, 128, g.Step)
	require.Equal(t, Padding{Top: 128, Left: 128, Bottom: 128, Right: 128}, g.Pad)
	require.Equal(t, 768, g.PaddedWidth)
	require.Equal(t, 768, g.PaddedHeight)
	require.Equal(t, 25, len(g.Tiles))
	for _, tile := range g.Tiles {
		require.Equal(t, 256, tile.Size)
		require.Equal(t, 0, tile.Row%128)
		require.Equal(t, 0, tile.Col%128)
	}
}

// Every source pixel must be covered by exactly subdivisions^2 tiles, including for
// image sizes that are not multiples of the step.
func TestOverlappingGridCoverage(t *testing.T) {
	cases := []struct {
		width, height, tileSize, subdivisions int
	}{
		{512, 512, 256, 2},
		{500, 300, 64, 4},
		{130, 97, 64, 2},
		{64, 64, 64, 2},
	}
	for _, c := range cases {
		g, err := OverlappingGrid(c.width, c.height, c.tileSize, c.subdivisions)
		require.NoError(t, err)
		counts := make([]int, g.PaddedWidth*g.PaddedHeight)
		for _, tile := range g.Tiles {
			for y := tile.Row; y < tile.Row+tile.Size; y++ {
				for x := tile.Col; x < tile.Col+tile.Size; x++ {
					counts[y*g.PaddedWidth+x]++
				}
			}
		}
		want := c.subdivisions * c.subdivisions
		for y := 0; y < c.height; y++ {
			for x := 0; x < c.width; x++ {
				n := counts[(y+g.Pad.Top)*g.PaddedWidth+x+g.Pad.Left]
				if n != want {
					t.Fatalf("%vx%v tile %v sub %v: pixel %v,%v covered by %v tiles, want %v",
						c.width, c.height, c.tileSize, c.subdivisions, x, y, n, want)
				}
			}
		}
	}
}

func TestOverlappingGridConfigErrors(t *testing.T) {
	_, err := OverlappingGrid(512, 512, 256, 3)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = OverlappingGrid(512, 512, 256, 0)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = OverlappingGrid(100, 512, 256, 2)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = OverlappingGrid(512, 100, 256, 2)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = OverlappingGrid(512, 512, 250, 4)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = OverlappingGrid(0, 512, 256, 2)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestDisjointGrid(t *testing.T) {
	tiles, w, h, err := DisjointGrid(512, 512, 256)
	require.NoError(t, err)
	require.Equal(t, 512, w)
	require.Equal(t, 512, h)
	require.Equal(t, 4, len(tiles))

	// The remainder strip is cropped, never padded
	tiles, w, h, err = DisjointGrid(500, 300, 128)
	require.NoError(t, err)
	require.Equal(t, 384, w)
	require.Equal(t, 256, h)
	require.Equal(t, 6, len(tiles))
	for _, tile := range tiles {
		require.LessOrEqual(t, tile.Col+tile.Size, w)
		require.LessOrEqual(t, tile.Row+tile.Size, h)
	}

	_, _, _, err = DisjointGrid(500, 300, 0)
	require.ErrorIs(t, err, ErrConfiguration)
}
