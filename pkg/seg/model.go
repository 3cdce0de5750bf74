// Package seg reconstructs a full-resolution class label map from tile-sized model
// predictions, using overlap-tile blending with a tapered window.
package seg

import (
	"encoding/json"
	"fmt"
	"os"
)

// Classifier maps one image tile to per-pixel class scores. The model itself (weights,
// runtime, training) is outside this package; we only see this interface.
type Classifier interface {
	// Close releases the model. Call it when finished.
	Close()

	// ClassifyTile returns a Size x Size x numClasses score volume for the tile.
	// Scores must be non-negative. They need not be normalized; blending normalizes
	// per pixel after accumulation.
	// Implementations that are safe for concurrent calls should say so; blending only
	// runs tiles in parallel when the classifier allows it.
	ClassifyTile(tile *FloatImage) (*ScoreVolume, error)

	// Model config. Callers assume this remains constant once the classifier exists.
	Config() *ModelConfig
}

// ModelConfig is the JSON descriptor stored alongside model weights.
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "unet"
	Width        int      `json:"width"`        // tile width, eg 256
	Height       int      `json:"height"`       // tile height, eg 256
	Classes      []string `json:"classes"`      // eg ["Building", "Land", ...]
}

func (c *ModelConfig) NumClasses() int {
	return len(c.Classes)
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// validateModel checks the parts of a model config that tiling relies on.
// Class ids are stored in bytes, hence the 256 limit.
func validateModel(cfg *ModelConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil model config", ErrConfiguration)
	}
	if cfg.NumClasses() < 1 || cfg.NumClasses() > 256 {
		return fmt.Errorf("%w: model has %v classes", ErrConfiguration, cfg.NumClasses())
	}
	if cfg.Width != cfg.Height || cfg.Width <= 0 {
		return fmt.Errorf("%w: model tile %vx%v is not square", ErrConfiguration, cfg.Width, cfg.Height)
	}
	return nil
}
