// Package layout turns flat, position-ordered recognized glyphs into
// the Document → Page → Paragraph → Line → Span tree that the LaTeX
// generator walks.
package layout

import (
	"math"
	"sort"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/recognize"
)

// Gap classifies the inferred whitespace before a glyph within a line.
type Gap int

const (
	GapNone   Gap = iota // glyph follows its predecessor directly
	GapSpace             // word boundary
	GapIndent            // tab/indent sized gap
)

// PlacedGlyph is a recognized glyph plus the whitespace inferred
// before it.
type PlacedGlyph struct {
	recognize.Recognized
	Gap Gap
}

// Span is a maximal run of glyphs on one line sharing a single font
// and style. Font is empty for spans made entirely of unrecognized
// glyphs.
type Span struct {
	Font   fontdb.Code
	Style  fontdb.Style
	Glyphs []PlacedGlyph
}

// Line groups spans sharing one baseline. Lines with zero recognized
// glyphs are retained as placeholders rather than dropped, so vertical
// order stays auditable.
type Line struct {
	Baseline float64
	Left     float64 // x of the first glyph
	Right    float64 // right edge of the last glyph
	Spans    []Span
}

// GlyphCount returns the number of glyphs on the line.
func (l Line) GlyphCount() int {
	n := 0
	for _, s := range l.Spans {
		n += len(s.Glyphs)
	}
	return n
}

// Recognized reports whether the line holds at least one recognized glyph.
func (l Line) Recognized() bool {
	for _, s := range l.Spans {
		for _, g := range s.Glyphs {
			if g.Ok {
				return true
			}
		}
	}
	return false
}

// Paragraph groups consecutive lines separated by ordinary line spacing.
type Paragraph struct {
	Lines []Line
}

// Page is the reconstructed layout of one input page.
type Page struct {
	Index      int
	Width      float64
	Height     float64
	Paragraphs []Paragraph
}

// GlyphCount returns the number of glyphs on the page.
func (p Page) GlyphCount() int {
	n := 0
	for _, para := range p.Paragraphs {
		for _, line := range para.Lines {
			n += line.GlyphCount()
		}
	}
	return n
}

// Document is the root of the layout tree, pages in index order.
type Document struct {
	Pages []Page
}

// Config holds the grouping policy constants. Document typography
// varies, so these are exposed in the conversion config instead of
// being hard-coded.
type Config struct {
	// LineTolerance: glyphs whose baselines differ by less than this
	// fraction of the local font size share a line.
	LineTolerance float64 `yaml:"line_tolerance"`

	// WordGapMult: a horizontal gap above this multiple of the average
	// glyph advance is a word boundary.
	WordGapMult float64 `yaml:"word_gap_mult"`

	// TabGapMult: a gap above this multiple of the average advance is
	// an indent marker.
	TabGapMult float64 `yaml:"tab_gap_mult"`

	// ParagraphGapMult: a vertical gap above this multiple of the
	// established line spacing starts a new paragraph.
	ParagraphGapMult float64 `yaml:"paragraph_gap_mult"`

	// IndentMult: a first line indented by more than this multiple of
	// the local font size relative to the previous line also starts a
	// paragraph.
	IndentMult float64 `yaml:"indent_mult"`
}

// DefaultConfig returns the grouping thresholds used when the
// conversion config does not override them.
func DefaultConfig() Config {
	return Config{
		LineTolerance:    0.4,
		WordGapMult:      0.5,
		TabGapMult:       3.0,
		ParagraphGapMult: 1.6,
		IndentMult:       1.2,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.LineTolerance <= 0 {
		c.LineTolerance = d.LineTolerance
	}
	if c.WordGapMult <= 0 {
		c.WordGapMult = d.WordGapMult
	}
	if c.TabGapMult <= 0 {
		c.TabGapMult = d.TabGapMult
	}
	if c.ParagraphGapMult <= 0 {
		c.ParagraphGapMult = d.ParagraphGapMult
	}
	if c.IndentMult <= 0 {
		c.IndentMult = d.IndentMult
	}
}

// BuildPage reconstructs the layout tree for one page. Glyphs are
// re-sorted by (baseline, x) defensively; extraction order is already
// close but not guaranteed.
func BuildPage(index int, width, height float64, glyphs []recognize.Recognized, cfg Config) Page {
	cfg.applyDefaults()

	page := Page{Index: index, Width: width, Height: height}
	if len(glyphs) == 0 {
		return page
	}

	sorted := make([]recognize.Recognized, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Baseline != sorted[j].Baseline {
			return sorted[i].Baseline < sorted[j].Baseline
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	lines := groupLines(sorted, cfg)
	page.Paragraphs = groupParagraphs(lines, cfg)
	return page
}

// groupLines clusters glyphs into baseline groups and builds each
// line's spans.
func groupLines(sorted []recognize.Recognized, cfg Config) []Line {
	var lines []Line
	var current []recognize.Recognized

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, buildLine(current, cfg))
			current = nil
		}
	}

	for _, g := range sorted {
		if len(current) > 0 {
			ref := current[len(current)-1]
			tol := cfg.LineTolerance * localSize(ref)
			if math.Abs(g.Baseline-ref.Baseline) > tol {
				flush()
			}
		}
		current = append(current, g)
	}
	flush()
	return lines
}

// localSize estimates the font size around a glyph, falling back to
// its box height when extraction provided no estimate.
func localSize(g recognize.Recognized) float64 {
	if g.Size > 0 {
		return g.Size
	}
	if g.Box.H > 0 {
		return g.Box.H
	}
	return 10
}

// buildLine orders one line's glyphs left to right, infers whitespace
// from horizontal gaps, and splits the run into font-consistent spans.
func buildLine(glyphs []recognize.Recognized, cfg Config) Line {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Box.X < glyphs[j].Box.X })

	advance := averageAdvance(glyphs)
	line := Line{
		Baseline: glyphs[0].Baseline,
		Left:     glyphs[0].Box.X,
		Right:    glyphs[len(glyphs)-1].Box.X + glyphs[len(glyphs)-1].Box.W,
	}

	var span Span
	prevRight := glyphs[0].Box.X
	for i, g := range glyphs {
		gap := GapNone
		if i > 0 {
			dist := g.Box.X - prevRight
			switch {
			case dist > cfg.TabGapMult*advance:
				gap = GapIndent
			case dist > cfg.WordGapMult*advance:
				gap = GapSpace
			}
		}
		prevRight = g.Box.X + g.Box.W

		// Unrecognized glyphs adopt the current span; only a
		// recognized glyph with a different font or style forces a
		// split.
		if g.Ok && span.Font != "" && (g.Match.Font != span.Font || g.Match.Style != span.Style) {
			line.Spans = append(line.Spans, span)
			span = Span{}
		}
		if g.Ok && span.Font == "" {
			span.Font = g.Match.Font
			span.Style = g.Match.Style
		}
		span.Glyphs = append(span.Glyphs, PlacedGlyph{Recognized: g, Gap: gap})
	}
	if len(span.Glyphs) > 0 {
		line.Spans = append(line.Spans, span)
	}
	return line
}

// averageAdvance estimates the typical glyph advance width on a line.
func averageAdvance(glyphs []recognize.Recognized) float64 {
	var sum float64
	n := 0
	for _, g := range glyphs {
		if g.Box.W > 0 {
			sum += g.Box.W
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// groupParagraphs splits lines at vertical gaps exceeding the
// established line spacing and at indented first lines.
func groupParagraphs(lines []Line, cfg Config) []Paragraph {
	if len(lines) == 0 {
		return nil
	}

	spacing := typicalSpacing(lines)

	var paragraphs []Paragraph
	current := Paragraph{Lines: []Line{lines[0]}}
	for i := 1; i < len(lines); i++ {
		gap := lines[i].Baseline - lines[i-1].Baseline
		indent := lines[i].Left - lines[i-1].Left

		size := 10.0
		for _, s := range lines[i].Spans {
			if len(s.Glyphs) > 0 {
				size = localSize(s.Glyphs[0].Recognized)
				break
			}
		}

		if (spacing > 0 && gap > cfg.ParagraphGapMult*spacing) || indent > cfg.IndentMult*size {
			paragraphs = append(paragraphs, current)
			current = Paragraph{}
		}
		current.Lines = append(current.Lines, lines[i])
	}
	paragraphs = append(paragraphs, current)
	return paragraphs
}

// typicalSpacing returns the median baseline-to-baseline distance, the
// established line spacing paragraph gaps are measured against.
func typicalSpacing(lines []Line) float64 {
	if len(lines) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		deltas = append(deltas, lines[i].Baseline-lines[i-1].Baseline)
	}
	sort.Float64s(deltas)
	return deltas[len(deltas)/2]
}
