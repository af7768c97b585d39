package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PageStats summarizes one page of a conversion.
type PageStats struct {
	Index        int           `yaml:"index" json:"index"`
	Glyphs       int           `yaml:"glyphs" json:"glyphs"`
	Recognized   int           `yaml:"recognized" json:"recognized"`
	Unrecognized int           `yaml:"unrecognized" json:"unrecognized"`
	Lines        int           `yaml:"lines" json:"lines"`
	Paragraphs   int           `yaml:"paragraphs" json:"paragraphs"`
	Duration     time.Duration `yaml:"duration" json:"duration"`

	// Error is non-empty when the page failed; its glyph counts are
	// then zero and the page is absent from the output.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether the page was skipped due to an error.
func (p PageStats) Failed() bool { return p.Error != "" }

// Report is the outcome summary of one conversion run.
type Report struct {
	Input     string    `yaml:"input" json:"input"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`

	Pages        int `yaml:"pages" json:"pages"`
	FailedPages  int `yaml:"failed_pages" json:"failed_pages"`
	TotalGlyphs  int `yaml:"total_glyphs" json:"total_glyphs"`
	Recognized   int `yaml:"recognized" json:"recognized"`
	Unrecognized int `yaml:"unrecognized" json:"unrecognized"`

	// FontUsage counts recognized glyphs per font family code.
	FontUsage map[string]int `yaml:"font_usage" json:"font_usage"`

	PageStats []PageStats   `yaml:"page_stats" json:"page_stats"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
}

// RecognitionRate returns the fraction of glyphs that were recognized.
func (r *Report) RecognitionRate() float64 {
	if r.TotalGlyphs == 0 {
		return 0
	}
	return float64(r.Recognized) / float64(r.TotalGlyphs)
}

// Print prints the report to stdout in a human-readable format.
func (r *Report) Print() {
	r.PrintTo(os.Stdout)
}

// PrintTo prints the report to the specified writer.
func (r *Report) PrintTo(w io.Writer) {
	fmt.Fprintf(w, "Conversion Report\n")
	fmt.Fprintf(w, "=================\n\n")

	fmt.Fprintf(w, "Input: %s\n", r.Input)
	fmt.Fprintf(w, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n\n", r.Duration)

	fmt.Fprintf(w, "Summary\n")
	fmt.Fprintf(w, "-------\n")
	fmt.Fprintf(w, "Pages: %d\n", r.Pages)
	if r.FailedPages > 0 {
		fmt.Fprintf(w, "Failed Pages: %d\n", r.FailedPages)
	}
	fmt.Fprintf(w, "Glyphs: %d\n", r.TotalGlyphs)
	fmt.Fprintf(w, "Recognized: %d (%.1f%%)\n", r.Recognized, r.RecognitionRate()*100)
	fmt.Fprintf(w, "Unrecognized: %d\n\n", r.Unrecognized)

	if len(r.FontUsage) > 0 {
		fmt.Fprintf(w, "Font Usage\n")
		fmt.Fprintf(w, "----------\n")
		fonts := make([]string, 0, len(r.FontUsage))
		for font := range r.FontUsage {
			fonts = append(fonts, font)
		}
		sort.Strings(fonts)
		for _, font := range fonts {
			fmt.Fprintf(w, "  %s: %d\n", font, r.FontUsage[font])
		}
		fmt.Fprintf(w, "\n")
	}

	failed := 0
	for _, page := range r.PageStats {
		if page.Failed() {
			if failed == 0 {
				fmt.Fprintf(w, "Failed Pages\n")
				fmt.Fprintf(w, "------------\n")
			}
			failed++
			fmt.Fprintf(w, "  Page %d: %s\n", page.Index+1, page.Error)
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "\n")
	}
}

// ToJSON converts the report to JSON.
func (r *Report) ToJSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// ToYAML converts the report to YAML.
func (r *Report) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// ToMarkdown converts the report to Markdown format.
func (r *Report) ToMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Conversion Report\n\n")
	sb.WriteString(fmt.Sprintf("**Input**: %s\n\n", r.Input))
	sb.WriteString(fmt.Sprintf("**Timestamp**: %s\n\n", r.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Duration**: %s\n\n", r.Duration))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Pages**: %d\n", r.Pages))
	if r.FailedPages > 0 {
		sb.WriteString(fmt.Sprintf("- **Failed Pages**: %d\n", r.FailedPages))
	}
	sb.WriteString(fmt.Sprintf("- **Glyphs**: %d\n", r.TotalGlyphs))
	sb.WriteString(fmt.Sprintf("- **Recognized**: %d (%.1f%%)\n", r.Recognized, r.RecognitionRate()*100))
	sb.WriteString(fmt.Sprintf("- **Unrecognized**: %d\n\n", r.Unrecognized))

	if len(r.FontUsage) > 0 {
		sb.WriteString("## Font Usage\n\n")
		sb.WriteString("| Font | Glyphs |\n")
		sb.WriteString("|------|--------|\n")
		fonts := make([]string, 0, len(r.FontUsage))
		for font := range r.FontUsage {
			fonts = append(fonts, font)
		}
		sort.Strings(fonts)
		for _, font := range fonts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", font, r.FontUsage[font]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Pages\n\n")
	sb.WriteString("| Page | Glyphs | Recognized | Lines | Paragraphs | Duration | Error |\n")
	sb.WriteString("|------|--------|------------|-------|------------|----------|-------|\n")
	for _, page := range r.PageStats {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %s | %s |\n",
			page.Index+1,
			page.Glyphs,
			page.Recognized,
			page.Lines,
			page.Paragraphs,
			page.Duration,
			page.Error,
		))
	}

	return sb.String()
}

// SaveToFile saves the report to a file in the specified format.
func (r *Report) SaveToFile(path string, format string, pretty bool) error {
	var data []byte
	var err error

	switch format {
	case "json":
		data, err = r.ToJSON(pretty)
	case "yaml", "yml":
		data, err = r.ToYAML()
	case "markdown", "md":
		data = []byte(r.ToMarkdown())
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return fmt.Errorf("failed to convert report to %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to file: %w", err)
	}

	return nil
}
