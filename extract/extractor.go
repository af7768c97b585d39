// Package extract renders PDF pages to images and segments them into
// glyph occurrences for recognition. Rendering goes through poppler's
// pdftoppm; page geometry is read directly from the PDF.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os/exec"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/untex/untex/convert"
	"github.com/untex/untex/recognize"
)

// Options tunes rendering and segmentation.
type Options struct {
	// DPI is the pdftoppm render resolution.
	DPI int

	// InkThreshold is the luminance below which a pixel counts as ink.
	InkThreshold uint8

	// MinComponentPixels filters out rendering speckles.
	MinComponentPixels int

	// PdftoppmPath overrides the pdftoppm binary location.
	PdftoppmPath string
}

const (
	defaultDPI                = 512
	defaultInkThreshold       = 200
	defaultMinComponentPixels = 4
)

func (o *Options) applyDefaults() {
	if o.DPI <= 0 {
		o.DPI = defaultDPI
	}
	if o.InkThreshold == 0 {
		o.InkThreshold = defaultInkThreshold
	}
	if o.MinComponentPixels <= 0 {
		o.MinComponentPixels = defaultMinComponentPixels
	}
	if o.PdftoppmPath == "" {
		o.PdftoppmPath = "pdftoppm"
	}
}

// Extractor implements convert.Extractor over poppler-rendered pages.
type Extractor struct {
	opts   Options
	logger *zap.Logger
}

// New creates an Extractor, applying defaults for unset options.
func New(opts Options, logger *zap.Logger) *Extractor {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Open parses the input's page geometry and returns a document whose
// pages render lazily, one pdftoppm invocation per page.
func (e *Extractor) Open(ctx context.Context, input string) (convert.Document, error) {
	f, reader, err := pdf.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	defer f.Close()

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	sizes := make([]pageSize, pageCount)
	for i := 1; i <= pageCount; i++ {
		w, h := mediaBoxSize(reader.Page(i))
		sizes[i-1] = pageSize{width: w, height: h}
	}

	return &pdfDocument{
		input:  input,
		sizes:  sizes,
		opts:   e.opts,
		logger: e.logger,
	}, nil
}

type pageSize struct {
	width, height float64
}

// mediaBoxSize reads a page's MediaBox, following Parent links since
// the attribute is inheritable. Falls back to US Letter.
func mediaBoxSize(p pdf.Page) (float64, float64) {
	v := p.V
	for i := 0; i < 16 && !v.IsNull(); i++ {
		if mb := v.Key("MediaBox"); mb.Len() == 4 {
			w := mb.Index(2).Float64() - mb.Index(0).Float64()
			h := mb.Index(3).Float64() - mb.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return 612, 792
}

// pdfDocument renders and segments pages on demand. It holds only the
// input path, so concurrent page extraction needs no shared state.
type pdfDocument struct {
	input  string
	sizes  []pageSize
	opts   Options
	logger *zap.Logger
}

func (d *pdfDocument) PageCount() int { return len(d.sizes) }

func (d *pdfDocument) PageSize(index int) (float64, float64) {
	s := d.sizes[index]
	return s.width, s.height
}

func (d *pdfDocument) Close() error { return nil }

// Glyphs renders one page and segments it into glyph occurrences in
// page units.
func (d *pdfDocument) Glyphs(ctx context.Context, index int) ([]recognize.Glyph, error) {
	img, err := d.renderPage(ctx, index)
	if err != nil {
		return nil, err
	}

	components := segmentPage(img, d.opts.InkThreshold, d.opts.MinComponentPixels)
	components = joinVerticalParts(components)

	scale := d.sizes[index].width / float64(img.Bounds().Dx())
	glyphs := componentsToGlyphs(img, components, index, scale, d.opts.InkThreshold)

	d.logger.Debug("page segmented",
		zap.Int("page", index),
		zap.Int("components", len(components)),
		zap.Int("glyphs", len(glyphs)),
	)
	return glyphs, nil
}

// renderPage shells out to pdftoppm for one page and prepares the
// result for segmentation.
func (d *pdfDocument) renderPage(ctx context.Context, index int) (*image.Gray, error) {
	pageNum := strconv.Itoa(index + 1)
	cmd := exec.CommandContext(ctx, d.opts.PdftoppmPath,
		"-png",
		"-gray",
		"-r", strconv.Itoa(d.opts.DPI),
		"-f", pageNum,
		"-l", pageNum,
		d.input,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %s: %w: %s", pageNum, err, stderr.String())
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page %s: %w", pageNum, err)
	}
	return preprocess(decoded), nil
}

// preprocess normalizes a rendered page for segmentation: grayscale
// plus a mild contrast boost so anti-aliased edges binarize cleanly.
func preprocess(img image.Image) *image.Gray {
	normalized := imaging.AdjustContrast(imaging.Grayscale(img), 10)

	gray := image.NewGray(normalized.Bounds())
	draw.Draw(gray, gray.Bounds(), normalized, normalized.Bounds().Min, draw.Src)
	return gray
}
