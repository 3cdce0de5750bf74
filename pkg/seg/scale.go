package seg

// scaleTileMinMax rescales each channel of the tile to [0,1] using that tile's own
// channel min/max. The computation is entirely local to the tile: no scaler state is
// shared or reused across tiles, so tiles can be processed in any order or in parallel.
// A constant channel maps to zero.
func scaleTileMinMax(tile *FloatImage) {
	nchan := tile.Channels
	lo := make([]float32, nchan)
	hi := make([]float32, nchan)
	for c := 0; c < nchan; c++ {
		lo[c] = tile.Pix[c]
		hi[c] = tile.Pix[c]
	}
	for i := 0; i < len(tile.Pix); i += nchan {
		for c := 0; c < nchan; c++ {
			v := tile.Pix[i+c]
			if v < lo[c] {
				lo[c] = v
			}
			if v > hi[c] {
				hi[c] = v
			}
		}
	}
	scale := make([]float32, nchan)
	for c := 0; c < nchan; c++ {
		if hi[c] > lo[c] {
			scale[c] = 1 / (hi[c] - lo[c])
		}
	}
	for i := 0; i < len(tile.Pix); i += nchan {
		for c := 0; c < nchan; c++ {
			tile.Pix[i+c] = (tile.Pix[i+c] - lo[c]) * scale[c]
		}
	}
}
