// Package recognize maps extracted glyph shapes to catalogued
// characters by nearest-neighbour search over the font database.
package recognize

import (
	"math"
	"sort"

	"github.com/untex/untex/fontdb"
)

// Box is a glyph bounding box in page units.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Glyph is one extracted, not yet identified glyph occurrence.
type Glyph struct {
	Page       int
	Box        Box
	Baseline   float64 // baseline y-coordinate in page units
	Size       float64 // font-size estimate in page units
	Descriptor fontdb.Descriptor
}

// Match is a resolved (font, character) pair with its confidence.
// Style carries the rendering variant of the matched catalogue entry
// so the generator can reproduce bold and italic runs.
type Match struct {
	Font       fontdb.Code
	Char       string
	Latex      string
	Math       bool
	Style      fontdb.Style
	Confidence float64
}

// Recognized is a glyph together with its best match. Ok is false for
// glyphs whose best confidence fell below the threshold; their
// geometry is retained so downstream stages can still position them.
type Recognized struct {
	Glyph
	Match Match
	Ok    bool
}

// Options tunes recognition behaviour. The zero value is usable;
// defaults are applied by New.
type Options struct {
	// DistanceCeiling converts distances to confidences:
	// confidence = max(0, 1 - distance/DistanceCeiling).
	DistanceCeiling float64

	// ConfidenceThreshold is the minimum confidence for a glyph to
	// count as recognized.
	ConfidenceThreshold float64

	// TieEpsilon is the distance band within which candidates are
	// considered tied and resolved by locality bias.
	TieEpsilon float64

	// Hint narrows the search to one family when set, for documents
	// known to use a single dominant font.
	Hint fontdb.Code
}

const (
	defaultDistanceCeiling     = 0.5
	defaultConfidenceThreshold = 0.55
	defaultTieEpsilon          = 0.02
)

// Recognizer performs read-only lookups against a shared font
// database. It holds no mutable state, so one instance may be used
// from any number of goroutines.
type Recognizer struct {
	db   *fontdb.Database
	opts Options
}

// New creates a Recognizer over db, applying defaults for unset options.
func New(db *fontdb.Database, opts Options) *Recognizer {
	if opts.DistanceCeiling <= 0 {
		opts.DistanceCeiling = defaultDistanceCeiling
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if opts.TieEpsilon <= 0 {
		opts.TieEpsilon = defaultTieEpsilon
	}
	return &Recognizer{db: db, opts: opts}
}

// candidate is one (font, character) pair at its distance from the
// query descriptor.
type candidate struct {
	font  fontdb.Code
	entry fontdb.GlyphEntry
	dist  float64
}

// Recognize resolves a single glyph. majority, when non-empty, is the
// font family used by most already-recognized glyphs on the same line;
// it breaks ties between near-equal candidates from different
// families. Recognition never fails: a glyph without a confident match
// degrades to Ok=false.
func (r *Recognizer) Recognize(g Glyph, majority fontdb.Code) Recognized {
	families := r.db.Families()
	if r.opts.Hint != "" {
		if _, ok := r.db.Lookup(r.opts.Hint); ok {
			families = []fontdb.Code{r.opts.Hint}
		}
	}

	best := math.Inf(1)
	var ties []candidate
	for _, code := range families {
		entry, ok := r.db.Lookup(code)
		if !ok {
			continue
		}
		for _, glyph := range entry.Glyphs {
			dist := g.Descriptor.DistanceTo(glyph.Descriptor)
			switch {
			case dist < best-r.opts.TieEpsilon:
				best = dist
				ties = ties[:0]
				ties = append(ties, candidate{font: code, entry: glyph, dist: dist})
			case dist <= best+r.opts.TieEpsilon:
				if dist < best {
					best = dist
				}
				ties = append(ties, candidate{font: code, entry: glyph, dist: dist})
			}
		}
	}

	if len(ties) == 0 {
		return Recognized{Glyph: g}
	}

	// Candidates may have entered the tie band before a later, better
	// distance shrank it; drop the ones that no longer qualify.
	kept := ties[:0]
	for _, c := range ties {
		if c.dist <= best+r.opts.TieEpsilon {
			kept = append(kept, c)
		}
	}
	winner := resolveTie(kept, majority)

	confidence := 1 - winner.dist/r.opts.DistanceCeiling
	if confidence < 0 {
		confidence = 0
	}
	if confidence < r.opts.ConfidenceThreshold {
		return Recognized{Glyph: g}
	}

	return Recognized{
		Glyph: g,
		Ok:    true,
		Match: Match{
			Font:       winner.font,
			Char:       winner.entry.Char,
			Latex:      winner.entry.Latex,
			Math:       winner.entry.Math,
			Style:      winner.entry.Style,
			Confidence: confidence,
		},
	}
}

// resolveTie picks a deterministic winner among near-equal candidates:
// prefer the line-majority family, then the lexicographically smallest
// character code, then the smallest family code, then the smallest
// style tag (so the regular face wins over its variants).
func resolveTie(ties []candidate, majority fontdb.Code) candidate {
	if majority != "" {
		var fromMajority []candidate
		for _, c := range ties {
			if c.font == majority {
				fromMajority = append(fromMajority, c)
			}
		}
		if len(fromMajority) > 0 {
			ties = fromMajority
		}
	}

	sort.Slice(ties, func(i, j int) bool {
		if ties[i].entry.Char != ties[j].entry.Char {
			return ties[i].entry.Char < ties[j].entry.Char
		}
		if ties[i].font != ties[j].font {
			return ties[i].font < ties[j].font
		}
		return ties[i].entry.Style < ties[j].entry.Style
	})
	return ties[0]
}

// RecognizeLine resolves a left-to-right sequence of glyphs from one
// line, feeding the running family majority of already-recognized
// glyphs into each tie-break so output stays deterministic and locally
// consistent.
func (r *Recognizer) RecognizeLine(glyphs []Glyph) []Recognized {
	results := make([]Recognized, 0, len(glyphs))
	tally := make(map[fontdb.Code]int)

	for _, g := range glyphs {
		majority := majorityFamily(tally)
		rec := r.Recognize(g, majority)
		if rec.Ok {
			tally[rec.Match.Font]++
		}
		results = append(results, rec)
	}
	return results
}

// RecognizePage sorts a page's glyphs by position, splits them into
// baseline runs, and resolves each run with RecognizeLine so the
// majority bias never leaks across lines. lineTolerance is the
// baseline-difference fraction of the local font size below which two
// glyphs share a run.
func (r *Recognizer) RecognizePage(glyphs []Glyph, lineTolerance float64) []Recognized {
	if lineTolerance <= 0 {
		lineTolerance = 0.4
	}
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]Glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Baseline != sorted[j].Baseline {
			return sorted[i].Baseline < sorted[j].Baseline
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var results []Recognized
	var run []Glyph
	flush := func() {
		if len(run) > 0 {
			results = append(results, r.RecognizeLine(run)...)
			run = nil
		}
	}
	for _, g := range sorted {
		if len(run) > 0 {
			ref := run[len(run)-1]
			size := ref.Size
			if size <= 0 {
				size = ref.Box.H
			}
			if size <= 0 {
				size = 10
			}
			if math.Abs(g.Baseline-ref.Baseline) > lineTolerance*size {
				flush()
			}
		}
		run = append(run, g)
	}
	flush()
	return results
}

// majorityFamily returns the family with the strictly highest count,
// or empty when the tally is empty or tied at the top.
func majorityFamily(tally map[fontdb.Code]int) fontdb.Code {
	var best fontdb.Code
	bestCount := 0
	tied := false
	for code, count := range tally {
		switch {
		case count > bestCount:
			best, bestCount, tied = code, count, false
		case count == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return ""
	}
	return best
}
