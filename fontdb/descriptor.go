package fontdb

import (
	"fmt"
	"image"
	"math"
)

// GridSize is the side length of the resampled ink-coverage grid. Every
// descriptor carries GridSize*GridSize cells regardless of the source
// bitmap size, which is what makes descriptors scale invariant.
const GridSize = 16

// Weights applied to the auxiliary descriptor features when computing
// distances. The grid term dominates; aspect and baseline mostly break
// ties between shapes that resample identically (e.g. hyphen vs
// underscore, comma vs apostrophe).
const (
	aspectWeight   = 0.15
	baselineWeight = 0.10
)

// Descriptor is a normalized, scale and translation invariant
// representation of a glyph shape. Grid holds per-cell ink coverage in
// [0,1], row major. Aspect is height/width clamped to [0,8]. Baseline
// is the offset of the glyph bottom relative to the text baseline,
// expressed as a fraction of the glyph height (positive for
// descenders).
type Descriptor struct {
	Grid     []float64 `json:"descriptor"`
	Aspect   float64   `json:"aspect"`
	Baseline float64   `json:"baseline"`
}

// NewDescriptor resamples a grayscale glyph bitmap onto the fixed
// coverage grid. The bitmap is expected to be tightly cropped to the
// glyph's ink bounding box; ink is dark (0 = full ink, 255 = blank).
// baseline is the glyph-bottom offset from the text baseline as a
// fraction of the glyph height.
func NewDescriptor(img *image.Gray, baseline float64) (Descriptor, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Descriptor{}, fmt.Errorf("empty glyph bitmap %dx%d", w, h)
	}

	grid := make([]float64, GridSize*GridSize)
	counts := make([]int, GridSize*GridSize)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx := x * GridSize / w
			cy := y * GridSize / h
			idx := cy*GridSize + cx
			v := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			grid[idx] += 1 - float64(v)/255
			counts[idx]++
		}
	}
	for i := range grid {
		if counts[i] > 0 {
			grid[i] /= float64(counts[i])
		}
	}

	aspect := float64(h) / float64(w)
	if aspect > 8 {
		aspect = 8
	}

	return Descriptor{Grid: grid, Aspect: aspect, Baseline: baseline}, nil
}

// DistanceTo computes the distance between two descriptors: the RMS
// difference over the coverage grid plus weighted absolute differences
// of the aspect and baseline features. All three terms are metrics, so
// the sum is a proper metric and supports index structures.
func (d Descriptor) DistanceTo(other Descriptor) float64 {
	n := len(d.Grid)
	if len(other.Grid) < n {
		n = len(other.Grid)
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := d.Grid[i] - other.Grid[i]
		sum += diff * diff
	}
	if n == 0 {
		return math.Inf(1)
	}
	grid := math.Sqrt(sum / float64(n))

	return grid +
		aspectWeight*math.Abs(d.Aspect-other.Aspect) +
		baselineWeight*math.Abs(d.Baseline-other.Baseline)
}

// Valid reports whether the descriptor carries a full coverage grid.
func (d Descriptor) Valid() bool {
	return len(d.Grid) == GridSize*GridSize
}
