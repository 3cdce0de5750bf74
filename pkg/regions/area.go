package regions

import (
	"fmt"
	"sort"

	"github.com/cyclopcam/landcover/pkg/seg"
	"gonum.org/v1/gonum/stat"
)

// ComponentsByClass runs the full mask -> cleanup -> label pipeline for each class id.
// The result maps class id to its components. A class with no pixels maps to an empty
// slice, so callers can still report it.
func ComponentsByClass(labels *seg.LabelMap, classIDs []int, conn Connectivity, cleanup CleanupMap) (map[int][]Component, error) {
	out := map[int][]Component{}
	for _, id := range classIDs {
		mask := MaskOf(labels, id)
		if op, ok := cleanup[id]; ok && op != MorphNone {
			mask = Apply(mask, op)
		}
		comps, err := Label(mask, conn)
		if err != nil {
			return nil, err
		}
		out[id] = comps
	}
	return out, nil
}

// ComponentArea is one component with its physical area.
type ComponentArea struct {
	ID     int     `json:"id"`
	Pixels int     `json:"pixels"`
	Area   float64 `json:"area"`
}

// ClassArea sums up one class.
type ClassArea struct {
	ClassID     int             `json:"classId"`
	Name        string          `json:"name"`
	Components  []ComponentArea `json:"components"`
	TotalPixels int             `json:"totalPixels"`
	TotalArea   float64         `json:"totalArea"`
	MeanArea    float64         `json:"meanArea"`
	MedianArea  float64         `json:"medianArea"`
	MaxArea     float64         `json:"maxArea"`
}

// AreaReport is the final measurement of a segmentation run.
type AreaReport struct {
	// ScaleFactor is the physical area of one pixel.
	ScaleFactor float64     `json:"scaleFactor"`
	Classes     []ClassArea `json:"classes"`
}

// AreaAggregator converts component pixel counts into physical areas.
type AreaAggregator struct {
	scaleFactor float64
	names       []string
}

// NewAreaAggregator creates an aggregator where scaleFactor is the area of a single
// pixel in whatever physical unit the caller works in. classNames may be nil, in which
// case classes are named by their id.
func NewAreaAggregator(scaleFactor float64, classNames []string) (*AreaAggregator, error) {
	if !(scaleFactor > 0) {
		return nil, fmt.Errorf("%w: scale factor must be positive, not %v", seg.ErrConfiguration, scaleFactor)
	}
	return &AreaAggregator{
		scaleFactor: scaleFactor,
		names:       classNames,
	}, nil
}

func (a *AreaAggregator) className(id int) string {
	if id >= 0 && id < len(a.names) {
		return a.names[id]
	}
	return fmt.Sprintf("class %v", id)
}

// Aggregate measures every class in byClass. Classes are reported in ascending id
// order, so the same input always produces the same report. A class with no
// components gets a zero entry.
func (a *AreaAggregator) Aggregate(byClass map[int][]Component) *AreaReport {
	ids := make([]int, 0, len(byClass))
	for id := range byClass {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	report := &AreaReport{
		ScaleFactor: a.scaleFactor,
		Classes:     make([]ClassArea, 0, len(ids)),
	}
	for _, id := range ids {
		comps := byClass[id]
		ca := ClassArea{
			ClassID:    id,
			Name:       a.className(id),
			Components: make([]ComponentArea, 0, len(comps)),
		}
		areas := make([]float64, 0, len(comps))
		for _, c := range comps {
			area := float64(c.Pixels) * a.scaleFactor
			ca.Components = append(ca.Components, ComponentArea{
				ID:     c.ID,
				Pixels: c.Pixels,
				Area:   area,
			})
			ca.TotalPixels += c.Pixels
			ca.TotalArea += area
			areas = append(areas, area)
		}
		if len(areas) != 0 {
			ca.MeanArea = stat.Mean(areas, nil)
			sorted := make([]float64, len(areas))
			copy(sorted, areas)
			sort.Float64s(sorted)
			ca.MedianArea = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			ca.MaxArea = sorted[len(sorted)-1]
		}
		report.Classes = append(report.Classes, ca)
	}
	return report
}
