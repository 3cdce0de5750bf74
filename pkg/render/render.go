// Package render turns label maps and masks into viewable images.
package render

import (
	"fmt"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/landcover/pkg/seg"
)

// LabelToRGB paints every pixel with its class color.
func LabelToRGB(labels *seg.LabelMap, palette *Palette) *cimg.Image {
	out := cimg.NewImage(labels.Width, labels.Height, cimg.PixelFormatRGB)
	// Class ids fit in a byte, so build a flat lookup once instead of calling
	// Color per pixel.
	lut := [256][3]uint8{}
	for i := 0; i < 256; i++ {
		lut[i] = palette.Color(i)
	}
	for y := 0; y < labels.Height; y++ {
		row := out.Pixels[y*out.Stride:]
		for x := 0; x < labels.Width; x++ {
			c := lut[labels.Pix[y*labels.Width+x]]
			row[x*3] = c[0]
			row[x*3+1] = c[1]
			row[x*3+2] = c[2]
		}
	}
	return out
}

// Overlay blends the class colors over the source image. alpha 0 returns the source
// unchanged, alpha 1 returns pure class colors.
func Overlay(img *cimg.Image, labels *seg.LabelMap, palette *Palette, alpha float32) (*cimg.Image, error) {
	if img.Width != labels.Width || img.Height != labels.Height {
		return nil, fmt.Errorf("%w: image is %vx%v but labels are %vx%v", seg.ErrConfiguration, img.Width, img.Height, labels.Width, labels.Height)
	}
	if img.NChan() != 3 {
		return nil, fmt.Errorf("%w: overlay needs an RGB image, not %v channels", seg.ErrConfiguration, img.NChan())
	}
	alpha = clamp01(alpha)
	lut := [256][3]uint8{}
	for i := 0; i < 256; i++ {
		lut[i] = palette.Color(i)
	}
	out := cimg.NewImage(img.Width, img.Height, cimg.PixelFormatRGB)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := out.Pixels[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			c := lut[labels.Pix[y*labels.Width+x]]
			for ch := 0; ch < 3; ch++ {
				dst[x*3+ch] = blend(src[x*3+ch], c[ch], alpha)
			}
		}
	}
	return out, nil
}

// HighlightMask blends a single color over the foreground of mask, leaving the
// background untouched. This is how a selected class is shown on top of the photo.
func HighlightMask(img *cimg.Image, mask *regions.Mask, color [3]uint8, alpha float32) (*cimg.Image, error) {
	if img.Width != mask.Width || img.Height != mask.Height {
		return nil, fmt.Errorf("%w: image is %vx%v but mask is %vx%v", seg.ErrConfiguration, img.Width, img.Height, mask.Width, mask.Height)
	}
	if img.NChan() != 3 {
		return nil, fmt.Errorf("%w: highlight needs an RGB image, not %v channels", seg.ErrConfiguration, img.NChan())
	}
	alpha = clamp01(alpha)
	out := cimg.NewImage(img.Width, img.Height, cimg.PixelFormatRGB)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := out.Pixels[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			if mask.Pix[y*mask.Width+x] != 0 {
				for ch := 0; ch < 3; ch++ {
					dst[x*3+ch] = blend(src[x*3+ch], color[ch], alpha)
				}
			} else {
				copy(dst[x*3:x*3+3], src[x*3:x*3+3])
			}
		}
	}
	return out, nil
}

// MaskToImage renders a mask with foreground white and background black.
func MaskToImage(mask *regions.Mask) *cimg.Image {
	out := cimg.NewImage(mask.Width, mask.Height, cimg.PixelFormatRGB)
	for y := 0; y < mask.Height; y++ {
		dst := out.Pixels[y*out.Stride:]
		for x := 0; x < mask.Width; x++ {
			v := mask.Pix[y*mask.Width+x]
			dst[x*3] = v
			dst[x*3+1] = v
			dst[x*3+2] = v
		}
	}
	return out
}

func blend(src, color uint8, alpha float32) uint8 {
	return uint8(float32(src)*(1-alpha) + float32(color)*alpha + 0.5)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
