package seg

import (
	"fmt"

	"github.com/chewxy/math32"
)

// PaletteClassifier scores each pixel by its closeness to a prototype color per class.
// It is the reference model for tests and demos, standing in for a trained network.
// It has no state besides the prototypes, so it is safe for concurrent tiles.
type PaletteClassifier struct {
	config *ModelConfig
	protos [][3]float32 // prototype colors in [0,1], one per class
}

// NewPaletteClassifier builds a classifier from a model config and one prototype RGB
// color per class. The config's tile must be square and it must name one class per color.
func NewPaletteClassifier(config *ModelConfig, colors [][3]uint8) (*PaletteClassifier, error) {
	if err := validateModel(config); err != nil {
		return nil, err
	}
	if len(colors) != config.NumClasses() {
		return nil, fmt.Errorf("%w: %v prototype colors for %v classes", ErrConfiguration, len(colors), config.NumClasses())
	}
	protos := make([][3]float32, len(colors))
	for i, c := range colors {
		for j := 0; j < 3; j++ {
			protos[i][j] = float32(c[j]) / 255
		}
	}
	return &PaletteClassifier{
		config: config,
		protos: protos,
	}, nil
}

func (p *PaletteClassifier) Close() {
}

func (p *PaletteClassifier) Config() *ModelConfig {
	return p.config
}

// ClassifyTile expects a 3-channel tile scaled to [0,1]. Scores are strictly positive
// and rank classes by inverse distance to the prototype color.
func (p *PaletteClassifier) ClassifyTile(tile *FloatImage) (*ScoreVolume, error) {
	if tile.Channels != 3 {
		return nil, fmt.Errorf("%w: palette classifier needs 3 channels, got %v", ErrConfiguration, tile.Channels)
	}
	if tile.Width != p.config.Width || tile.Height != p.config.Height {
		return nil, fmt.Errorf("%w: tile %vx%v does not match model %vx%v", ErrConfiguration, tile.Width, tile.Height, p.config.Width, p.config.Height)
	}
	nclass := p.config.NumClasses()
	out := NewScoreVolume(tile.Width, tile.Height, nclass)
	for px := 0; px < tile.Width*tile.Height; px++ {
		r := tile.Pix[px*3]
		g := tile.Pix[px*3+1]
		b := tile.Pix[px*3+2]
		scores := out.Scores[px*nclass : (px+1)*nclass]
		for c, proto := range p.protos {
			dr := r - proto[0]
			dg := g - proto[1]
			db := b - proto[2]
			d := math32.Sqrt(dr*dr + dg*dg + db*db)
			scores[c] = 1 / (0.05 + d)
		}
	}
	return out, nil
}
