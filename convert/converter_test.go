package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/layout"
	"github.com/untex/untex/recognize"
)

func uniformDesc(v float64) fontdb.Descriptor {
	grid := make([]float64, fontdb.GridSize*fontdb.GridSize)
	for i := range grid {
		grid[i] = v
	}
	return fontdb.Descriptor{Grid: grid, Aspect: 1}
}

func testDB() *fontdb.Database {
	return fontdb.NewDatabase(&fontdb.FontEntry{
		Family: fontdb.CodeCmr,
		Glyphs: []fontdb.GlyphEntry{
			{Char: "A", Latex: "A", Descriptor: uniformDesc(0.9)},
			{Char: "B", Latex: "B", Descriptor: uniformDesc(0.7)},
			{Char: "C", Latex: "C", Descriptor: uniformDesc(0.5)},
		},
	})
}

// glyphAt places a glyph with a uniform descriptor on a single line.
func glyphAt(page int, v, x float64) recognize.Glyph {
	return recognize.Glyph{
		Page:       page,
		Box:        recognize.Box{X: x, Y: 12, W: 5, H: 8},
		Baseline:   20,
		Size:       10,
		Descriptor: uniformDesc(v),
	}
}

type fakeDocument struct {
	pages  [][]recognize.Glyph
	errs   map[int]error
	closed bool
}

func (d *fakeDocument) PageCount() int { return len(d.pages) }

func (d *fakeDocument) PageSize(int) (float64, float64) { return 612, 792 }

func (d *fakeDocument) Glyphs(_ context.Context, index int) ([]recognize.Glyph, error) {
	if err := d.errs[index]; err != nil {
		return nil, err
	}
	return d.pages[index], nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeExtractor struct {
	doc     *fakeDocument
	openErr error
}

func (e *fakeExtractor) Open(context.Context, string) (Document, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.doc, nil
}

// tempInput creates a real file so the input existence check passes.
func tempInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvertRecognizedAndPlaceholder(t *testing.T) {
	// Two glyphs on one line: the first matches cmr's A exactly, the
	// second sits far from every catalogued shape.
	ext := &fakeExtractor{doc: &fakeDocument{pages: [][]recognize.Glyph{{
		glyphAt(0, 0.9, 10),
		glyphAt(0, 0.1, 16),
	}}}}

	c, err := New(testDB(), ext, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	tex, report, err := c.Convert(context.Background(), tempInput(t))
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Count(tex, `\fontfamily{cmr}`); got != 1 {
		t.Errorf("expected one cmr font switch, got %d in %q", got, tex)
	}
	if !strings.Contains(tex, "A") {
		t.Errorf("literal A missing from output %q", tex)
	}
	if got := strings.Count(tex, `\unrecognized{}`); got != 1 {
		t.Errorf("expected one placeholder, got %d in %q", got, tex)
	}

	if report.TotalGlyphs != 2 || report.Recognized != 1 || report.Unrecognized != 1 {
		t.Errorf("report counts = %d/%d/%d, want 2/1/1",
			report.TotalGlyphs, report.Recognized, report.Unrecognized)
	}
	if report.FontUsage["cmr"] != 1 {
		t.Errorf("font usage cmr = %d, want 1", report.FontUsage["cmr"])
	}
	if !ext.doc.closed {
		t.Error("document was not closed")
	}
}

func TestConvertInputNotFound(t *testing.T) {
	c, err := New(testDB(), &fakeExtractor{doc: &fakeDocument{}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = c.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}
}

func TestConvertUnreadableInput(t *testing.T) {
	ext := &fakeExtractor{openErr: errors.New("not a pdf")}
	c, err := New(testDB(), ext, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = c.Convert(context.Background(), tempInput(t))
	if !errors.Is(err, ErrInputUnreadable) {
		t.Errorf("expected ErrInputUnreadable, got %v", err)
	}
}

func TestNewRejectsMissingDatabase(t *testing.T) {
	ext := &fakeExtractor{doc: &fakeDocument{}}

	if _, err := New(nil, ext, nil, nil); !errors.Is(err, fontdb.ErrMissing) {
		t.Errorf("nil database: expected ErrMissing, got %v", err)
	}
	if _, err := New(fontdb.NewDatabase(), ext, nil, nil); !errors.Is(err, fontdb.ErrMissing) {
		t.Errorf("empty database: expected ErrMissing, got %v", err)
	}
}

func TestConvertPageOrderWithWorkers(t *testing.T) {
	// Three pages processed by three workers must still serialize in
	// page-index order, byte-identically on every run.
	ext := &fakeExtractor{doc: &fakeDocument{pages: [][]recognize.Glyph{
		{glyphAt(0, 0.9, 10)},
		{glyphAt(1, 0.7, 10)},
		{glyphAt(2, 0.5, 10)},
	}}}

	cfg := DefaultConfig()
	cfg.Execution.Workers = 3
	cfg.Generator.BodyOnly = true

	c, err := New(testDB(), ext, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	input := tempInput(t)
	first, _, err := c.Convert(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	// The body's LaTeX commands are all lowercase, so the uppercase
	// page characters locate page content unambiguously.
	order := []string{"A", "B", "C"}
	last := -1
	for _, char := range order {
		pos := strings.Index(first, char)
		if pos < 0 {
			t.Fatalf("page content %q missing from %q", char, first)
		}
		if pos < last {
			t.Errorf("page content %q out of order in %q", char, first)
		}
		last = pos
	}

	for i := 0; i < 3; i++ {
		again, _, err := c.Convert(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("run %d produced different output", i)
		}
	}
}

func TestConvertPageFailureIsNotFatal(t *testing.T) {
	ext := &fakeExtractor{doc: &fakeDocument{
		pages: [][]recognize.Glyph{
			{glyphAt(0, 0.9, 10)},
			nil,
		},
		errs: map[int]error{1: fmt.Errorf("render failed")},
	}}

	c, err := New(testDB(), ext, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	tex, report, err := c.Convert(context.Background(), tempInput(t))
	if err != nil {
		t.Fatalf("page failure should not abort the run: %v", err)
	}

	if report.FailedPages != 1 {
		t.Errorf("failed pages = %d, want 1", report.FailedPages)
	}
	if !report.PageStats[1].Failed() {
		t.Error("page 1 should be marked failed")
	}
	if !strings.Contains(tex, "A") {
		t.Errorf("surviving page content missing from %q", tex)
	}
}

func TestConvertCancelledContext(t *testing.T) {
	ext := &fakeExtractor{doc: &fakeDocument{pages: [][]recognize.Glyph{
		{glyphAt(0, 0.9, 10)},
	}}}

	c, err := New(testDB(), ext, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = c.Convert(ctx, tempInput(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEstimateMarginInches(t *testing.T) {
	page := layout.Page{Width: 612, Height: 792, Paragraphs: []layout.Paragraph{{
		Lines: []layout.Line{{Left: 90, Right: 540}}, // 72pt right margin
	}}}

	if got := estimateMarginInches([]layout.Page{page}); got != 1.0 {
		t.Errorf("margin = %v, want 1.0 (narrowest margin 72pt)", got)
	}
	if got := estimateMarginInches(nil); got != 1.0 {
		t.Errorf("empty document margin = %v, want fallback 1.0", got)
	}
	tight := layout.Page{Width: 612, Paragraphs: []layout.Paragraph{{
		Lines: []layout.Line{{Left: 7, Right: 600}},
	}}}
	if got := estimateMarginInches([]layout.Page{tight}); got != 0.5 {
		t.Errorf("tight margin = %v, want clamp to 0.5", got)
	}
}

func TestWriteOutputFailure(t *testing.T) {
	err := WriteOutput(filepath.Join(t.TempDir(), "missing", "out.tex"), "x")
	if !errors.Is(err, ErrOutputWriteFailed) {
		t.Errorf("expected ErrOutputWriteFailed, got %v", err)
	}
}
