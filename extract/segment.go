package extract

import (
	"image"
	"sort"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/recognize"
)

// component is one connected ink region in pixel coordinates.
type component struct {
	minX, minY int
	maxX, maxY int // inclusive
	pixels     int
}

func (c component) width() int  { return c.maxX - c.minX + 1 }
func (c component) height() int { return c.maxY - c.minY + 1 }

// segmentPage finds connected ink components by flood fill over the
// binarized page image. 8-connectivity, so diagonal strokes stay in
// one piece.
func segmentPage(img *image.Gray, threshold uint8, minPixels int) []component {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	visited := make([]bool, w*h)

	ink := func(x, y int) bool {
		return img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y < threshold
	}

	var components []component
	var stack []int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if visited[idx] || !ink(x, y) {
				continue
			}

			comp := component{minX: x, minY: y, maxX: x, maxY: y}
			stack = append(stack[:0], idx)
			visited[idx] = true

			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := cur%w, cur/w

				comp.pixels++
				if cx < comp.minX {
					comp.minX = cx
				}
				if cx > comp.maxX {
					comp.maxX = cx
				}
				if cy < comp.minY {
					comp.minY = cy
				}
				if cy > comp.maxY {
					comp.maxY = cy
				}

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := cx+dx, cy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						nidx := ny*w + nx
						if !visited[nidx] && ink(nx, ny) {
							visited[nidx] = true
							stack = append(stack, nidx)
						}
					}
				}
			}

			if comp.pixels >= minPixels {
				components = append(components, comp)
			}
		}
	}
	return components
}

// joinVerticalParts merges components whose horizontal extents overlap,
// so dotted glyphs (i, j, ;, :, ?, !) and accents come out as one
// glyph instead of two stacked fragments.
func joinVerticalParts(components []component) []component {
	sort.Slice(components, func(i, j int) bool {
		if components[i].minX != components[j].minX {
			return components[i].minX < components[j].minX
		}
		return components[i].minY < components[j].minY
	})

	var joined []component
	for _, c := range components {
		merged := false
		for i := len(joined) - 1; i >= 0; i-- {
			prev := &joined[i]
			if c.minX > prev.maxX {
				break
			}
			// Require most of the narrower part to sit inside the
			// other's horizontal range.
			overlap := min(c.maxX, prev.maxX) - max(c.minX, prev.minX) + 1
			narrower := min(c.width(), prev.width())
			if overlap*2 < narrower {
				continue
			}
			// Parts of one glyph sit close vertically; distinct glyphs
			// on neighbouring lines do not.
			gap := verticalGap(c, *prev)
			if gap > max(c.height(), prev.height()) {
				continue
			}
			prev.minX = min(prev.minX, c.minX)
			prev.maxX = max(prev.maxX, c.maxX)
			prev.minY = min(prev.minY, c.minY)
			prev.maxY = max(prev.maxY, c.maxY)
			prev.pixels += c.pixels
			merged = true
			break
		}
		if !merged {
			joined = append(joined, c)
		}
	}
	return joined
}

func verticalGap(a, b component) int {
	if a.maxY < b.minY {
		return b.minY - a.maxY
	}
	if b.maxY < a.minY {
		return a.minY - b.maxY
	}
	return 0
}

// groupRows clusters components into horizontal rows by vertical
// overlap, for baseline estimation.
func groupRows(components []component) [][]component {
	sorted := make([]component, len(components))
	copy(sorted, components)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].minY < sorted[j].minY })

	var rows [][]component
	for _, c := range sorted {
		placed := false
		for i := range rows {
			row := rows[i]
			top, bottom := row[0].minY, row[0].maxY
			for _, rc := range row {
				top = min(top, rc.minY)
				bottom = max(bottom, rc.maxY)
			}
			if c.minY <= bottom && c.maxY >= top {
				rows[i] = append(rows[i], c)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []component{c})
		}
	}
	return rows
}

// rowBaseline estimates a row's baseline as the modal bottom edge of
// its components. Descenders are a minority, so the mode lands on the
// true baseline.
func rowBaseline(row []component) int {
	counts := make(map[int]int)
	for _, c := range row {
		counts[c.maxY]++
	}
	baseline := row[0].maxY
	best := 0
	for bottom, count := range counts {
		if count > best || (count == best && bottom > baseline) {
			baseline = bottom
			best = count
		}
	}
	return baseline
}

// rowBodyHeight estimates the font size of a row as the typical height
// of its components, ignoring the tallest outliers (brackets, rules).
func rowBodyHeight(row []component) int {
	heights := make([]int, 0, len(row))
	for _, c := range row {
		heights = append(heights, c.height())
	}
	sort.Ints(heights)
	return heights[len(heights)/2]
}

// componentsToGlyphs converts joined components to recognizer glyphs:
// descriptors are computed from the cropped ink, and pixel coordinates
// are scaled to page units.
func componentsToGlyphs(img *image.Gray, components []component, page int, scale float64, threshold uint8) []recognize.Glyph {
	var glyphs []recognize.Glyph
	for _, row := range groupRows(components) {
		baseline := rowBaseline(row)
		size := float64(rowBodyHeight(row)) * scale

		for _, c := range row {
			sub, ok := img.SubImage(image.Rect(
				img.Bounds().Min.X+c.minX,
				img.Bounds().Min.Y+c.minY,
				img.Bounds().Min.X+c.maxX+1,
				img.Bounds().Min.Y+c.maxY+1,
			)).(*image.Gray)
			if !ok {
				continue
			}

			cropped, hasInk := fontdb.CropInk(sub, threshold)
			if !hasInk {
				continue
			}

			baselineOffset := float64(c.maxY-baseline) / float64(c.height())
			desc, err := fontdb.NewDescriptor(cropped, baselineOffset)
			if err != nil {
				continue
			}

			glyphs = append(glyphs, recognize.Glyph{
				Page: page,
				Box: recognize.Box{
					X: float64(c.minX) * scale,
					Y: float64(c.minY) * scale,
					W: float64(c.width()) * scale,
					H: float64(c.height()) * scale,
				},
				Baseline:   float64(baseline) * scale,
				Size:       size,
				Descriptor: desc,
			})
		}
	}

	sort.SliceStable(glyphs, func(i, j int) bool {
		if glyphs[i].Baseline != glyphs[j].Baseline {
			return glyphs[i].Baseline < glyphs[j].Baseline
		}
		return glyphs[i].Box.X < glyphs[j].Box.X
	})
	return glyphs
}
