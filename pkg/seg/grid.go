package seg

import "fmt"

// TileSpec identifies one square tile: its top-left corner and its side length.
// For an overlapped grid the coordinates are in the padded image's space.
type TileSpec struct {
	Row  int
	Col  int
	Size int
}

// OverlapGrid is the tiling used for smooth reconstruction: tiles advance by
// Size/subdivisions, over an image padded by Pad, so that every source pixel is covered
// by exactly subdivisions^2 tiles.
type OverlapGrid struct {
	Tiles        []TileSpec
	Pad          Padding
	Step         int
	PaddedWidth  int
	PaddedHeight int
}

// OverlappingGrid computes the tile set for smooth blending.
// subdivisions must be even and >= 2, tileSize must be divisible by subdivisions, and a
// tile must fit inside the image. The base padding on every side is tileSize-step; the
// right and bottom padding are rounded up so the last tile lands flush, which is what
// makes the coverage count uniform for any image size.
func OverlappingGrid(width, height, tileSize, subdivisions int) (*OverlapGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %vx%v", ErrConfiguration, width, height)
	}
	if subdivisions < 2 || subdivisions%2 != 0 {
		return nil, fmt.Errorf("%w: subdivisions %v must be an even integer >= 2", ErrConfiguration, subdivisions)
	}
	if tileSize <= 0 || tileSize%subdivisions != 0 {
		return nil, fmt.Errorf("%w: tile size %v must be a positive multiple of subdivisions %v", ErrConfiguration, tileSize, subdivisions)
	}
	if tileSize > width || tileSize > height {
		return nil, fmt.Errorf("%w: tile size %v exceeds image dimensions %vx%v", ErrConfiguration, tileSize, width, height)
	}
	step := tileSize / subdivisions
	base := tileSize - step
	pad := Padding{
		Top:    base,
		Left:   base,
		Bottom: base + (step-height%step)%step,
		Right:  base + (step-width%step)%step,
	}
	g := &OverlapGrid{
		Pad:          pad,
		Step:         step,
		PaddedWidth:  width + pad.Left + pad.Right,
		PaddedHeight: height + pad.Top + pad.Bottom,
	}
	for row := 0; row+tileSize <= g.PaddedHeight; row += step {
		for col := 0; col+tileSize <= g.PaddedWidth; col += step {
			g.Tiles = append(g.Tiles, TileSpec{Row: row, Col: col, Size: tileSize})
		}
	}
	return g, nil
}

// DisjointGrid partitions the image into non-overlapping tiles. Tiles cover the largest
// multiple of tileSize in each dimension; the remainder strip on the right/bottom is
// excluded, not padded. Returns the tiles and the covered (cropped) width and height.
func DisjointGrid(width, height, tileSize int) ([]TileSpec, int, int, error) {
	if width <= 0 || height <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: image dimensions %vx%v", ErrConfiguration, width, height)
	}
	if tileSize <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: tile size %v", ErrConfiguration, tileSize)
	}
	croppedW := (width / tileSize) * tileSize
	croppedH := (height / tileSize) * tileSize
	tiles := []TileSpec{}
	for row := 0; row+tileSize <= croppedH; row += tileSize {
		for col := 0; col+tileSize <= croppedW; col += tileSize {
			tiles = append(tiles, TileSpec{Row: row, Col: col, Size: tileSize})
		}
	}
	return tiles, croppedW, croppedH, nil
}
