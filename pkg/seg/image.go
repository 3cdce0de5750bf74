package seg

import (
	"fmt"

	"github.com/bmharper/cimg/v2"
)

// FloatImage is a height x width x channels raster with float32 samples, channel-last,
// in one flat buffer. This is the format that tiles are extracted from and that
// classifiers consume. Once built from a decoded image, treat it as immutable.
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32 // len = Width * Height * Channels
}

func NewFloatImage(width, height, channels int) *FloatImage {
	return &FloatImage{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// Samples per row
func (f *FloatImage) Stride() int {
	return f.Width * f.Channels
}

// FloatImageFromCImage converts an 8-bit image to float32, preserving the raw 0..255
// range. Scaling to a model's expected range happens per tile, later.
func FloatImageFromCImage(img *cimg.Image) (*FloatImage, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %vx%v", ErrConfiguration, img.Width, img.Height)
	}
	nchan := img.NChan()
	out := NewFloatImage(img.Width, img.Height, nchan)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride : y*img.Stride+img.Width*nchan]
		dst := out.Pix[y*out.Stride() : (y+1)*out.Stride()]
		for i, v := range src {
			dst[i] = float32(v)
		}
	}
	return out, nil
}

// Copy the Size x Size tile at spec out of f, into dst. dst must have the tile's
// dimensions and f's channel count. The tile must lie fully inside f.
func (f *FloatImage) CopyTile(dst *FloatImage, spec TileSpec) {
	stride := f.Stride()
	rowLen := spec.Size * f.Channels
	for y := 0; y < spec.Size; y++ {
		srcOff := (spec.Row+y)*stride + spec.Col*f.Channels
		copy(dst.Pix[y*rowLen:(y+1)*rowLen], f.Pix[srcOff:srcOff+rowLen])
	}
}

// Padding is the border added around an image before overlapped tiling, so that border
// pixels receive the same number of tile contributions as interior pixels.
type Padding struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// PadReflect returns a copy of f extended by pad on each side, filling the border by
// mirroring the image about its edges (the edge row/column itself is not repeated).
// Each pad amount must be at most dimension-1, which grid construction guarantees.
func (f *FloatImage) PadReflect(pad Padding) *FloatImage {
	outW := f.Width + pad.Left + pad.Right
	outH := f.Height + pad.Top + pad.Bottom
	out := NewFloatImage(outW, outH, f.Channels)
	srcStride := f.Stride()
	dstStride := out.Stride()
	for y := 0; y < outH; y++ {
		sy := reflectIndex(y-pad.Top, f.Height)
		srcRow := f.Pix[sy*srcStride : sy*srcStride+srcStride]
		dstRow := out.Pix[y*dstStride : (y+1)*dstStride]
		for x := 0; x < outW; x++ {
			sx := reflectIndex(x-pad.Left, f.Width)
			copy(dstRow[x*f.Channels:(x+1)*f.Channels], srcRow[sx*f.Channels:(sx+1)*f.Channels])
		}
	}
	return out
}

func reflectIndex(i, n int) int {
	if i < 0 {
		i = -i
	}
	if i >= n {
		i = 2*n - 2 - i
	}
	return i
}
