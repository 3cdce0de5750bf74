package seg

// ScoreVolume holds per-pixel, per-class scores: height x width x classes, flat,
// channel-last. After ReconstructSmooth it holds normalized probabilities; straight out
// of a Classifier it holds whatever non-negative scores the model produces.
type ScoreVolume struct {
	Width   int
	Height  int
	Classes int
	Scores  []float32 // (y*Width + x)*Classes + class
}

func NewScoreVolume(width, height, classes int) *ScoreVolume {
	return &ScoreVolume{
		Width:   width,
		Height:  height,
		Classes: classes,
		Scores:  make([]float32, width*height*classes),
	}
}

// Pixel returns the class score slice for one pixel.
func (v *ScoreVolume) Pixel(x, y int) []float32 {
	off := (y*v.Width + x) * v.Classes
	return v.Scores[off : off+v.Classes]
}

// LabelMap assigns one class id to every pixel. Ids are always < Classes.
type LabelMap struct {
	Width   int
	Height  int
	Classes int
	Pix     []uint8 // y*Width + x
}

func NewLabelMap(width, height, classes int) *LabelMap {
	return &LabelMap{
		Width:   width,
		Height:  height,
		Classes: classes,
		Pix:     make([]uint8, width*height),
	}
}

func (m *LabelMap) At(x, y int) int {
	return int(m.Pix[y*m.Width+x])
}

// ArgmaxLabels picks the highest-scoring class per pixel. Ties go to the lowest class
// id, so the result is deterministic.
func (v *ScoreVolume) ArgmaxLabels() *LabelMap {
	out := NewLabelMap(v.Width, v.Height, v.Classes)
	for p := 0; p < v.Width*v.Height; p++ {
		scores := v.Scores[p*v.Classes : (p+1)*v.Classes]
		best := 0
		for c := 1; c < v.Classes; c++ {
			if scores[c] > scores[best] {
				best = c
			}
		}
		out.Pix[p] = uint8(best)
	}
	return out
}
