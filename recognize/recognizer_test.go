package recognize

import (
	"testing"

	"github.com/untex/untex/fontdb"
)

// uniformDesc builds a descriptor whose grid cells all hold v, so the
// distance between two of them is exactly |v1 - v2|.
func uniformDesc(v float64) fontdb.Descriptor {
	grid := make([]float64, fontdb.GridSize*fontdb.GridSize)
	for i := range grid {
		grid[i] = v
	}
	return fontdb.Descriptor{Grid: grid, Aspect: 1}
}

func entry(char string, v float64) fontdb.GlyphEntry {
	return fontdb.GlyphEntry{Char: char, Latex: char, Descriptor: uniformDesc(v)}
}

func glyphAt(v float64) Glyph {
	return Glyph{
		Box:        Box{X: 10, Y: 20, W: 5, H: 8},
		Baseline:   28,
		Size:       10,
		Descriptor: uniformDesc(v),
	}
}

func testDB() *fontdb.Database {
	return fontdb.NewDatabase(
		&fontdb.FontEntry{Family: fontdb.CodeCmr, Glyphs: []fontdb.GlyphEntry{
			entry("A", 0.9),
			entry("B", 0.5),
		}},
		&fontdb.FontEntry{Family: fontdb.CodeQpl, Glyphs: []fontdb.GlyphEntry{
			entry("C", 0.1),
		}},
	)
}

func TestRecognizeNearestNeighbour(t *testing.T) {
	r := New(testDB(), Options{})

	tests := []struct {
		name     string
		value    float64
		wantChar string
		wantFont fontdb.Code
	}{
		{name: "exact A", value: 0.9, wantChar: "A", wantFont: fontdb.CodeCmr},
		{name: "near B", value: 0.52, wantChar: "B", wantFont: fontdb.CodeCmr},
		{name: "near C", value: 0.12, wantChar: "C", wantFont: fontdb.CodeQpl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := r.Recognize(glyphAt(tt.value), "")
			if !rec.Ok {
				t.Fatal("expected glyph to be recognized")
			}
			if rec.Match.Char != tt.wantChar || rec.Match.Font != tt.wantFont {
				t.Errorf("got (%s, %q), want (%s, %q)",
					rec.Match.Font, rec.Match.Char, tt.wantFont, tt.wantChar)
			}
		})
	}
}

func TestRecognizeDeterminism(t *testing.T) {
	r := New(testDB(), Options{})
	g := glyphAt(0.52)

	first := r.Recognize(g, "")
	for i := 0; i < 10; i++ {
		again := r.Recognize(g, "")
		if again.Match != first.Match || again.Ok != first.Ok {
			t.Fatalf("run %d: result %+v differs from first %+v", i, again.Match, first.Match)
		}
	}
}

func TestRecognizeBelowThreshold(t *testing.T) {
	db := fontdb.NewDatabase(&fontdb.FontEntry{
		Family: fontdb.CodeCmr,
		Glyphs: []fontdb.GlyphEntry{entry("A", 0.95)},
	})
	r := New(db, Options{})

	g := glyphAt(0.1)
	rec := r.Recognize(g, "")
	if rec.Ok {
		t.Fatalf("expected unrecognized, got match %+v", rec.Match)
	}
	if rec.Box != g.Box || rec.Baseline != g.Baseline {
		t.Error("unrecognized glyph must retain its geometry")
	}
}

func TestRecognizeConfidenceDecreasesWithDistance(t *testing.T) {
	r := New(testDB(), Options{})

	exact := r.Recognize(glyphAt(0.9), "")
	near := r.Recognize(glyphAt(0.85), "")
	if !exact.Ok || !near.Ok {
		t.Fatal("both glyphs should be recognized")
	}
	if exact.Match.Confidence != 1 {
		t.Errorf("exact match confidence = %v, want 1", exact.Match.Confidence)
	}
	if near.Match.Confidence >= exact.Match.Confidence {
		t.Errorf("confidence should decrease with distance: near=%v exact=%v",
			near.Match.Confidence, exact.Match.Confidence)
	}
}

func TestTieBreakMajorityThenLexicographic(t *testing.T) {
	// Two families catalogue identical shapes under different
	// characters, forcing an exact tie.
	db := fontdb.NewDatabase(
		&fontdb.FontEntry{Family: fontdb.CodeCmr, Glyphs: []fontdb.GlyphEntry{entry("b", 0.5)}},
		&fontdb.FontEntry{Family: fontdb.CodeQpl, Glyphs: []fontdb.GlyphEntry{entry("a", 0.5)}},
	)
	r := New(db, Options{})
	g := glyphAt(0.5)

	// No majority: lexicographically smallest character wins.
	rec := r.Recognize(g, "")
	if !rec.Ok || rec.Match.Char != "a" || rec.Match.Font != fontdb.CodeQpl {
		t.Errorf("no-majority tie: got (%s, %q), want (qpl, \"a\")", rec.Match.Font, rec.Match.Char)
	}

	// Line majority pulls the tie to the majority family.
	rec = r.Recognize(g, fontdb.CodeCmr)
	if !rec.Ok || rec.Match.Char != "b" || rec.Match.Font != fontdb.CodeCmr {
		t.Errorf("majority tie: got (%s, %q), want (cmr, \"b\")", rec.Match.Font, rec.Match.Char)
	}
}

func TestHintNarrowsSearch(t *testing.T) {
	r := New(testDB(), Options{Hint: fontdb.CodeCmr})

	// 0.1 is an exact match for qpl's C, but the hint restricts the
	// search to cmr, whose nearest glyph B sits 0.4 away and falls
	// below the confidence threshold.
	rec := r.Recognize(glyphAt(0.1), "")
	if rec.Ok {
		t.Fatalf("expected no confident match within hinted family, got %+v", rec.Match)
	}
}

func styledEntry(char string, v float64, style fontdb.Style) fontdb.GlyphEntry {
	e := entry(char, v)
	e.Style = style
	return e
}

func TestMatchCarriesStyle(t *testing.T) {
	db := fontdb.NewDatabase(&fontdb.FontEntry{
		Family: fontdb.CodeCmr,
		Glyphs: []fontdb.GlyphEntry{
			styledEntry("a", 0.9, fontdb.StyleRegular),
			styledEntry("a", 0.5, fontdb.StyleBold),
		},
	})
	r := New(db, Options{})

	rec := r.Recognize(glyphAt(0.5), "")
	if !rec.Ok {
		t.Fatal("expected glyph to be recognized")
	}
	if rec.Match.Style != fontdb.StyleBold {
		t.Errorf("matched style = %q, want %q", rec.Match.Style, fontdb.StyleBold)
	}

	rec = r.Recognize(glyphAt(0.9), "")
	if !rec.Ok || rec.Match.Style != fontdb.StyleRegular {
		t.Errorf("matched style = %q, want regular", rec.Match.Style)
	}
}

func TestTieBreakPrefersRegularStyle(t *testing.T) {
	// The bold variant catalogues an identical shape under the same
	// character, forcing an exact tie within one family.
	db := fontdb.NewDatabase(&fontdb.FontEntry{
		Family: fontdb.CodeCmr,
		Glyphs: []fontdb.GlyphEntry{
			styledEntry("a", 0.5, fontdb.StyleBold),
			styledEntry("a", 0.5, fontdb.StyleRegular),
		},
	})
	r := New(db, Options{})

	rec := r.Recognize(glyphAt(0.5), "")
	if !rec.Ok || rec.Match.Style != fontdb.StyleRegular {
		t.Errorf("style tie: got %q, want the regular face", rec.Match.Style)
	}
}

func TestRecognizeLineRunningMajority(t *testing.T) {
	db := fontdb.NewDatabase(
		&fontdb.FontEntry{Family: fontdb.CodeCmr, Glyphs: []fontdb.GlyphEntry{
			entry("x", 0.9),
			entry("n", 0.5),
		}},
		&fontdb.FontEntry{Family: fontdb.CodeQpl, Glyphs: []fontdb.GlyphEntry{
			entry("m", 0.5),
		}},
	)
	r := New(db, Options{})

	// First glyph is unambiguously cmr; the second ties between
	// cmr's "n" and qpl's "m" and must follow the line majority even
	// though "m" sorts before "n".
	results := r.RecognizeLine([]Glyph{glyphAt(0.9), glyphAt(0.5)})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[1].Ok || results[1].Match.Font != fontdb.CodeCmr || results[1].Match.Char != "n" {
		t.Errorf("second glyph: got (%s, %q), want (cmr, \"n\")",
			results[1].Match.Font, results[1].Match.Char)
	}
}
