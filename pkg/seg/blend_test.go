package seg

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

var testColors = [][3]uint8{
	{60, 16, 152},
	{132, 41, 246},
	{110, 193, 228},
	{254, 221, 58},
	{226, 169, 41},
	{155, 155, 155},
}

func testModel(t *testing.T, tileSize int) *PaletteClassifier {
	cfg := &ModelConfig{
		Architecture: "palette",
		Width:        tileSize,
		Height:       tileSize,
		Classes:      []string{"Building", "Land", "Road", "Vegetation", "Water", "Unlabeled"},
	}
	model, err := NewPaletteClassifier(cfg, testColors)
	require.NoError(t, err)
	return model
}

func randomImage(w, h int, seed int64) *FloatImage {
	rng := rand.New(rand.NewSource(seed))
	img := NewFloatImage(w, h, 3)
	for i := range img.Pix {
		img.Pix[i] = float32(rng.Intn(256))
	}
	return img
}

func TestReconstructSumsToOne(t *testing.T) {
	logger := logs.NewTestingLog(t)
	model := testModel(t, 64)
	img := randomImage(200, 150, 1)

	total := 0
	lastDone := 0
	vol, err := ReconstructSmooth(logger, img, model, BlendOptions{
		Subdivisions: 2,
		Progress: func(done, tiles int) {
			lastDone = done
			total = tiles
		},
	})
	require.NoError(t, err)
	require.Equal(t, 200, vol.Width)
	require.Equal(t, 150, vol.Height)
	require.Equal(t, 6, vol.Classes)
	require.Equal(t, total, lastDone)
	require.Greater(t, total, 0)

	for y := 0; y < vol.Height; y++ {
		for x := 0; x < vol.Width; x++ {
			sum := float32(0)
			for _, s := range vol.Pixel(x, y) {
				require.GreaterOrEqual(t, s, float32(0))
				sum += s
			}
			require.InDelta(t, 1.0, sum, 1e-3, "pixel %v,%v", x, y)
		}
	}
}

// Parallel and serial runs must agree up to floating point summation order.
func TestReconstructParallelMatchesSerial(t *testing.T) {
	logger := logs.NewTestingLog(t)
	model := testModel(t, 64)
	img := randomImage(130, 97, 2)

	serial, err := ReconstructSmooth(logger, img, model, BlendOptions{Subdivisions: 2, Workers: 1})
	require.NoError(t, err)
	parallel, err := ReconstructSmooth(logger, img, model, BlendOptions{Subdivisions: 2, Workers: -1})
	require.NoError(t, err)

	require.Equal(t, serial.Width, parallel.Width)
	require.Equal(t, serial.Height, parallel.Height)
	for i := range serial.Scores {
		require.InDelta(t, serial.Scores[i], parallel.Scores[i], 1e-4)
	}
}

func TestReconstructConfigErrors(t *testing.T) {
	logger := logs.NewTestingLog(t)
	model := testModel(t, 64)
	img := randomImage(100, 100, 3)

	_, err := ReconstructSmooth(logger, img, model, BlendOptions{Subdivisions: 3})
	require.ErrorIs(t, err, ErrConfiguration)

	// Tile larger than the image
	small := randomImage(32, 32, 4)
	_, err = ReconstructSmooth(logger, small, model, BlendOptions{})
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = PredictTiled(logger, small, model, 0)
	require.ErrorIs(t, err, ErrConfiguration)
}

// Classifier that misbehaves on demand
type brokenClassifier struct {
	cfg        *ModelConfig
	err        error
	wrongShape bool
}

func (b *brokenClassifier) Close() {}

func (b *brokenClassifier) Config() *ModelConfig {
	return b.cfg
}

func (b *brokenClassifier) ClassifyTile(tile *FloatImage) (*ScoreVolume, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.wrongShape {
		return NewScoreVolume(tile.Width/2, tile.Height/2, len(b.cfg.Classes)), nil
	}
	return NewScoreVolume(tile.Width, tile.Height, len(b.cfg.Classes)), nil
}

func TestReconstructClassifierFailure(t *testing.T) {
	logger := logs.NewTestingLog(t)
	cfg := &ModelConfig{Architecture: "test", Width: 64, Height: 64, Classes: []string{"a", "b"}}
	img := randomImage(128, 128, 5)

	boom := errors.New("model exploded")
	_, err := ReconstructSmooth(logger, img, &brokenClassifier{cfg: cfg, err: boom}, BlendOptions{})
	require.ErrorIs(t, err, boom)

	_, err = ReconstructSmooth(logger, img, &brokenClassifier{cfg: cfg, wrongShape: true}, BlendOptions{})
	require.ErrorIs(t, err, ErrReconstruction)
}

func TestPredictTiledBaseline(t *testing.T) {
	logger := logs.NewTestingLog(t)
	model := testModel(t, 64)

	// Left tile painted close to class 0's color, right tile close to class 4's
	img := NewFloatImage(128, 64, 3)
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			classColor := testColors[0]
			if x >= 64 {
				classColor = testColors[4]
			}
			off := (y*128 + x) * 3
			img.Pix[off] = float32(classColor[0])
			img.Pix[off+1] = float32(classColor[1])
			img.Pix[off+2] = float32(classColor[2])
		}
	}
	// A couple of extreme pixels per tile so min-max scaling keeps its range
	img.Pix[0], img.Pix[1], img.Pix[2] = 0, 0, 0
	img.Pix[3], img.Pix[4], img.Pix[5] = 255, 255, 255
	rightOff := 64 * 3
	img.Pix[rightOff], img.Pix[rightOff+1], img.Pix[rightOff+2] = 0, 0, 0
	img.Pix[rightOff+3], img.Pix[rightOff+4], img.Pix[rightOff+5] = 255, 255, 255

	labels, err := PredictTiled(logger, img, model, 64)
	require.NoError(t, err)
	require.Equal(t, 128, labels.Width)
	require.Equal(t, 64, labels.Height)
	require.Equal(t, 0, labels.At(10, 32))
	require.Equal(t, 4, labels.At(100, 32))
}

func TestPredictTiledCropsRemainder(t *testing.T) {
	logger := logs.NewTestingLog(t)
	model := testModel(t, 64)
	img := randomImage(150, 100, 6)

	labels, err := PredictTiled(logger, img, model, 64)
	require.NoError(t, err)
	require.Equal(t, 128, labels.Width)
	require.Equal(t, 64, labels.Height)
}
