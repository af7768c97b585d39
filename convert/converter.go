// Package convert orchestrates a whole conversion run: extract glyphs
// per page, recognize them against a shared font database, rebuild the
// layout tree, and serialize it to LaTeX.
package convert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/latexgen"
	"github.com/untex/untex/layout"
	"github.com/untex/untex/recognize"
)

// Extractor opens an input file and exposes its pages for glyph
// extraction.
type Extractor interface {
	Open(ctx context.Context, input string) (Document, error)
}

// Document is an open input whose pages can be extracted independently
// and concurrently.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// PageSize returns the page dimensions in page units.
	PageSize(index int) (width, height float64)

	// Glyphs extracts the glyph occurrences of one page. Safe for
	// concurrent calls with distinct indices.
	Glyphs(ctx context.Context, index int) ([]recognize.Glyph, error)

	// Close releases any resources held by the document.
	Close() error
}

// Converter runs conversions against one read-only font database. A
// single Converter may serve any number of sequential conversions.
type Converter struct {
	db         *fontdb.Database
	extractor  Extractor
	cfg        *Config
	recognizer *recognize.Recognizer
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates a Converter. A nil or empty font database is rejected
// up front so conversions fail fast instead of producing placeholder-
// only output.
func New(db *fontdb.Database, extractor Extractor, cfg *Config, logger *zap.Logger) (*Converter, error) {
	if db == nil || db.GlyphCount() == 0 {
		return nil, fontdb.ErrMissing
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := cfg.RecognizerOptions()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Execution.RateLimitPerMinute > 0 {
		rps := float64(cfg.Execution.RateLimitPerMinute) / 60.0
		burst := cfg.Execution.RateLimitPerMinute / 4
		if burst < 1 {
			burst = 1
		}
		if burst > 5 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Converter{
		db:         db,
		extractor:  extractor,
		cfg:        cfg,
		recognizer: recognize.New(db, opts),
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Convert runs one conversion and returns the generated LaTeX source
// together with a report. Pages are processed concurrently; a failing
// page is recorded in the report and skipped rather than aborting the
// run. Cancellation is cooperative at page boundaries: pages not yet
// started are abandoned, in-flight pages finish.
func (c *Converter) Convert(ctx context.Context, input string) (string, *Report, error) {
	start := time.Now()

	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrInputNotFound, input)
		}
		return "", nil, fmt.Errorf("%w: %s: %v", ErrInputUnreadable, input, err)
	}

	doc, err := c.extractor.Open(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrInputUnreadable, input, err)
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	c.logger.Info("starting conversion",
		zap.String("input", input),
		zap.Int("pages", pageCount),
		zap.Int("workers", c.cfg.Execution.Workers),
	)

	pages := make([]layout.Page, pageCount)
	stats := make([]PageStats, pageCount)

	sem := make(chan struct{}, c.cfg.Execution.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < pageCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				stats[idx] = PageStats{Index: idx, Error: err.Error()}
				mu.Unlock()
				return
			}

			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					mu.Lock()
					stats[idx] = PageStats{Index: idx, Error: err.Error()}
					mu.Unlock()
					return
				}
			}

			page, pageStats := c.convertPage(ctx, doc, idx)
			mu.Lock()
			pages[idx] = page
			stats[idx] = pageStats
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	margin := c.cfg.Generator.MarginInches
	if margin <= 0 {
		margin = estimateMarginInches(pages)
	}

	tree := layout.Document{Pages: pages}
	tex := latexgen.Generate(tree, latexgen.Options{
		Placeholder:  c.cfg.Generator.Placeholder,
		MarginInches: margin,
		BodyOnly:     c.cfg.Generator.BodyOnly,
	})

	report := buildReport(input, start, pages, stats)
	c.logger.Info("conversion finished",
		zap.String("input", input),
		zap.Int("glyphs", report.TotalGlyphs),
		zap.Int("recognized", report.Recognized),
		zap.Int("failed_pages", report.FailedPages),
		zap.Duration("duration", report.Duration),
	)
	return tex, report, nil
}

// convertPage extracts, recognizes and lays out a single page.
func (c *Converter) convertPage(ctx context.Context, doc Document, idx int) (layout.Page, PageStats) {
	pageStart := time.Now()
	width, height := doc.PageSize(idx)

	glyphs, err := doc.Glyphs(ctx, idx)
	if err != nil {
		c.logger.Warn("page extraction failed",
			zap.Int("page", idx),
			zap.Error(err),
		)
		return layout.Page{Index: idx, Width: width, Height: height},
			PageStats{Index: idx, Error: err.Error(), Duration: time.Since(pageStart)}
	}

	recognized := c.recognizer.RecognizePage(glyphs, c.cfg.Layout.LineTolerance)
	page := layout.BuildPage(idx, width, height, recognized, c.cfg.Layout)

	pageStats := PageStats{
		Index:      idx,
		Glyphs:     len(recognized),
		Paragraphs: len(page.Paragraphs),
		Duration:   time.Since(pageStart),
	}
	for _, para := range page.Paragraphs {
		pageStats.Lines += len(para.Lines)
	}
	for _, r := range recognized {
		if r.Ok {
			pageStats.Recognized++
		} else {
			pageStats.Unrecognized++
		}
	}

	c.logger.Debug("page converted",
		zap.Int("page", idx),
		zap.Int("glyphs", pageStats.Glyphs),
		zap.Int("recognized", pageStats.Recognized),
		zap.Duration("duration", pageStats.Duration),
	)
	return page, pageStats
}

// buildReport aggregates per-page stats and font usage into the run
// report.
func buildReport(input string, start time.Time, pages []layout.Page, stats []PageStats) *Report {
	report := &Report{
		Input:     input,
		Timestamp: start,
		Pages:     len(stats),
		FontUsage: make(map[string]int),
		PageStats: stats,
		Duration:  time.Since(start),
	}

	for _, ps := range stats {
		if ps.Failed() {
			report.FailedPages++
			continue
		}
		report.TotalGlyphs += ps.Glyphs
		report.Recognized += ps.Recognized
		report.Unrecognized += ps.Unrecognized
	}

	for _, page := range pages {
		for _, para := range page.Paragraphs {
			for _, line := range para.Lines {
				for _, span := range line.Spans {
					for _, g := range span.Glyphs {
						if g.Ok {
							report.FontUsage[string(g.Match.Font)]++
						}
					}
				}
			}
		}
	}
	return report
}

// estimateMarginInches measures the narrowest text margin across all
// pages. Page units are PostScript points, so 72 to the inch. The
// estimate is clamped to a sane document range.
func estimateMarginInches(pages []layout.Page) float64 {
	best := math.Inf(1)
	for _, page := range pages {
		for _, para := range page.Paragraphs {
			for _, line := range para.Lines {
				if line.Left < best {
					best = line.Left
				}
				if right := page.Width - line.Right; right > 0 && right < best {
					best = right
				}
			}
		}
	}
	if math.IsInf(best, 1) {
		return 1.0
	}
	inches := best / 72
	if inches < 0.5 {
		return 0.5
	}
	if inches > 2.0 {
		return 2.0
	}
	return inches
}

// WriteOutput writes generated LaTeX to path.
func WriteOutput(path, tex string) error {
	if err := os.WriteFile(path, []byte(tex), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWriteFailed, err)
	}
	return nil
}
