// Package latexgen serializes the reconstructed layout tree to LaTeX
// source text. Output is deterministic: the same tree always yields
// byte-identical text.
package latexgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/layout"
)

// DefaultPlaceholder is emitted for unrecognized glyphs so they stay
// visible and auditable in the output instead of being dropped.
const DefaultPlaceholder = `\unrecognized{}`

// Options tunes generation. The zero value produces a complete,
// compilable standalone document.
type Options struct {
	// Placeholder is the token emitted for unrecognized glyphs.
	// Defaults to DefaultPlaceholder.
	Placeholder string

	// MarginInches sets the geometry package margin. Zero means 1.0.
	MarginInches float64

	// BodyOnly suppresses the documentclass wrapper and emits just the
	// reconstructed text.
	BodyOnly bool
}

// escapes maps the ten LaTeX-reserved characters to their escaped
// forms. Every reserved character in recognized text appears escaped
// exactly once; no other character is touched.
var escapes = map[rune]string{
	'\\': `\textbackslash{}`,
	'{':  `\{`,
	'}':  `\}`,
	'$':  `\$`,
	'&':  `\&`,
	'#':  `\#`,
	'^':  `\textasciicircum{}`,
	'_':  `\_`,
	'~':  `\textasciitilde{}`,
	'%':  `\%`,
}

// Escape replaces each LaTeX-reserved character in s with its escaped
// form, leaving all other characters untouched.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if esc, ok := escapes[r]; ok {
			b.WriteString(esc)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Generate serializes a document tree.
func Generate(doc layout.Document, opts Options) string {
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.MarginInches <= 0 {
		opts.MarginInches = 1.0
	}

	var b strings.Builder
	if !opts.BodyOnly {
		writePreamble(&b, opts)
	}

	g := &generator{
		opts:        opts,
		currentSize: `\normalsize`,
		bodySize:    bodyGlyphSize(doc),
	}
	first := true
	for _, page := range doc.Pages {
		for _, para := range page.Paragraphs {
			if !first {
				b.WriteString("\n\n")
			}
			first = false
			g.writeParagraph(&b, para)
		}
	}

	if !opts.BodyOnly {
		b.WriteString("\n\\end{document}\n")
	}
	return b.String()
}

func writePreamble(b *strings.Builder, opts Options) {
	b.WriteString("\\documentclass{article}\n")
	b.WriteString("\\author{untex}\n")
	fmt.Fprintf(b, "\\usepackage[margin=%.1fin]{geometry}\n", opts.MarginInches)
	b.WriteString("\\usepackage{amsmath, amssymb, amsthm}\n")
	if opts.Placeholder == DefaultPlaceholder {
		b.WriteString("\\providecommand{\\unrecognized}{\\fbox{?}}\n")
	}
	b.WriteString("\\begin{document}\n")
}

// generator carries the font and size switch state across the whole
// document so a switch command is emitted only where the rendering
// actually changes.
type generator struct {
	opts        Options
	currentFont fontdb.Code
	currentSize string
	bodySize    float64
}

// bodyGlyphSize estimates the document's body font size as the median
// size of its recognized glyphs. Zero when no glyph carries a size
// estimate, which disables size switching entirely.
func bodyGlyphSize(doc layout.Document) float64 {
	var sizes []float64
	for _, page := range doc.Pages {
		for _, para := range page.Paragraphs {
			for _, line := range para.Lines {
				for _, span := range line.Spans {
					for _, pg := range span.Glyphs {
						if pg.Ok && pg.Size > 0 {
							sizes = append(sizes, pg.Size)
						}
					}
				}
			}
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// sizeCommand buckets a glyph-size ratio relative to the body size
// into the standard LaTeX size switches.
func sizeCommand(ratio float64) string {
	switch {
	case ratio < 0.55:
		return `\scriptsize`
	case ratio < 0.75:
		return `\footnotesize`
	case ratio < 0.9:
		return `\small`
	case ratio <= 1.15:
		return `\normalsize`
	case ratio <= 1.45:
		return `\large`
	case ratio <= 1.8:
		return `\Large`
	case ratio <= 2.3:
		return `\LARGE`
	case ratio <= 2.9:
		return `\huge`
	default:
		return `\Huge`
	}
}

// lineSizeCommand maps a line's median glyph size to a size switch, or
// empty when the line (or the document) carries no size estimates.
func (g *generator) lineSizeCommand(line layout.Line) string {
	if g.bodySize <= 0 {
		return ""
	}
	var sizes []float64
	for _, span := range line.Spans {
		for _, pg := range span.Glyphs {
			if pg.Ok && pg.Size > 0 {
				sizes = append(sizes, pg.Size)
			}
		}
	}
	if len(sizes) == 0 {
		return ""
	}
	sort.Float64s(sizes)
	return sizeCommand(sizes[len(sizes)/2] / g.bodySize)
}

func (g *generator) writeParagraph(b *strings.Builder, para layout.Paragraph) {
	for i, line := range para.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		g.writeLine(b, line)
	}
}

func (g *generator) writeLine(b *strings.Builder, line layout.Line) {
	if cmd := g.lineSizeCommand(line); cmd != "" && cmd != g.currentSize {
		b.WriteString(cmd)
		b.WriteString(" ")
		g.currentSize = cmd
	}
	for _, span := range line.Spans {
		// Placeholder-only spans have no font; they keep the current one.
		if span.Font != "" && span.Font != g.currentFont {
			fmt.Fprintf(b, "\\fontfamily{%s}\\selectfont{}", span.Font)
			g.currentFont = span.Font
		}
		g.writeSpan(b, span)
	}
}

func (g *generator) writeSpan(b *strings.Builder, span layout.Span) {
	var closer string
	if span.Style.Bold() {
		b.WriteString(`\textbf{`)
		closer += "}"
	}
	if span.Style.Italic() {
		b.WriteString(`\textit{`)
		closer += "}"
	}

	inMath := false
	for _, pg := range span.Glyphs {
		switch pg.Gap {
		case layout.GapSpace:
			if inMath {
				b.WriteString("$")
				inMath = false
			}
			b.WriteString(" ")
		case layout.GapIndent:
			if inMath {
				b.WriteString("$")
				inMath = false
			}
			b.WriteString("\\qquad ")
		}

		if !pg.Ok {
			if inMath {
				b.WriteString("$")
				inMath = false
			}
			b.WriteString(g.opts.Placeholder)
			continue
		}

		if pg.Match.Math {
			if !inMath {
				b.WriteString("$")
				inMath = true
			}
			b.WriteString(pg.Match.Latex)
			if strings.HasPrefix(pg.Match.Latex, "\\") {
				b.WriteString(" ")
			}
			continue
		}

		if inMath {
			b.WriteString("$")
			inMath = false
		}
		// Entries whose Latex differs from the literal character hold a
		// ready-made fragment; everything else is the character itself
		// and goes through escaping.
		if pg.Match.Latex != "" && pg.Match.Latex != pg.Match.Char {
			b.WriteString(pg.Match.Latex)
		} else {
			b.WriteString(Escape(pg.Match.Char))
		}
	}
	if inMath {
		b.WriteString("$")
	}
	b.WriteString(closer)
}
