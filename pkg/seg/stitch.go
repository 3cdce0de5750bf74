package seg

import (
	"fmt"

	"github.com/cyclopcam/logs"
)

// PredictTiled is the unblended baseline: it partitions the image into disjoint tiles,
// classifies each one, and stitches the per-tile argmax results together. Tiles do not
// overlap, so class boundaries can show visible seams at tile edges; use
// ReconstructSmooth when that matters. The output covers the largest tile multiple of
// the image, with any right/bottom remainder cropped.
func PredictTiled(logger logs.Log, img *FloatImage, model Classifier, tileSize int) (*LabelMap, error) {
	cfg := model.Config()
	if err := validateModel(cfg); err != nil {
		return nil, err
	}
	if tileSize == 0 {
		tileSize = cfg.Width
	}
	tiles, croppedW, croppedH, err := DisjointGrid(img.Width, img.Height, tileSize)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: tile size %v exceeds image dimensions %vx%v", ErrConfiguration, tileSize, img.Width, img.Height)
	}
	if croppedW != img.Width || croppedH != img.Height {
		logger.Warnf("Image %vx%v is not a multiple of tile size %v: predicting the %vx%v crop", img.Width, img.Height, tileSize, croppedW, croppedH)
	}
	nclass := cfg.NumClasses()
	out := NewLabelMap(croppedW, croppedH, nclass)
	tile := NewFloatImage(tileSize, tileSize, img.Channels)
	for _, spec := range tiles {
		img.CopyTile(tile, spec)
		scaleTileMinMax(tile)
		pred, err := model.ClassifyTile(tile)
		if err != nil {
			return nil, err
		}
		if pred.Width != tileSize || pred.Height != tileSize || pred.Classes != nclass {
			return nil, fmt.Errorf("%w: classifier returned %vx%vx%v for a %vx%v tile with %v classes",
				ErrReconstruction, pred.Width, pred.Height, pred.Classes, tileSize, tileSize, nclass)
		}
		labels := pred.ArgmaxLabels()
		for y := 0; y < tileSize; y++ {
			dstOff := (spec.Row+y)*croppedW + spec.Col
			copy(out.Pix[dstOff:dstOff+tileSize], labels.Pix[y*tileSize:(y+1)*tileSize])
		}
	}
	return out, nil
}
