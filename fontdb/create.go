package fontdb

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"
)

// Rendering parameters for reference glyph rasterization. The render
// size only needs to be large enough that resampling onto the
// descriptor grid is stable; matching itself is scale invariant.
const (
	renderSize   = 64.0
	canvasSize   = 160
	canvasMargin = 40
	inkThreshold = 200
)

// TargetAlphabet returns the characters catalogued when building a
// font entry: Latin letters, digits, and the punctuation and symbols a
// LaTeX document is likely to contain, including all ten reserved
// characters.
func TargetAlphabet() []string {
	var chars []string
	for c := 'a'; c <= 'z'; c++ {
		chars = append(chars, string(c))
	}
	for c := 'A'; c <= 'Z'; c++ {
		chars = append(chars, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		chars = append(chars, string(c))
	}
	chars = append(chars,
		".", ",", ";", ":", "!", "?", "'", "\"",
		"(", ")", "[", "]", "-", "+", "=", "/", "*",
		"<", ">", "@", "|",
		"\\", "{", "}", "$", "&", "#", "^", "_", "~", "%",
		"fi", "fl", "ff",
	)
	return chars
}

// MathAlphabet maps math-mode characters to the LaTeX fragments that
// reproduce them: Greek letters, operators, and relations. Entries
// rendered from this set carry Math so the generator emits them inside
// a math run.
func MathAlphabet() map[string]string {
	return map[string]string{
		"α": `\alpha`, "β": `\beta`, "γ": `\gamma`, "δ": `\delta`,
		"ε": `\epsilon`, "ζ": `\zeta`, "η": `\eta`, "θ": `\theta`,
		"ι": `\iota`, "κ": `\kappa`, "λ": `\lambda`, "μ": `\mu`,
		"ν": `\nu`, "ξ": `\xi`, "π": `\pi`, "ρ": `\rho`,
		"σ": `\sigma`, "τ": `\tau`, "υ": `\upsilon`, "φ": `\phi`,
		"χ": `\chi`, "ψ": `\psi`, "ω": `\omega`,
		"Γ": `\Gamma`, "Δ": `\Delta`, "Θ": `\Theta`, "Λ": `\Lambda`,
		"Ξ": `\Xi`, "Π": `\Pi`, "Σ": `\Sigma`, "Φ": `\Phi`,
		"Ψ": `\Psi`, "Ω": `\Omega`,
		"±": `\pm`, "×": `\times`, "÷": `\div`, "·": `\cdot`,
		"≤": `\leq`, "≥": `\geq`, "≠": `\neq`, "≈": `\approx`,
		"∞": `\infty`, "∂": `\partial`, "∇": `\nabla`,
		"∑": `\sum`, "∏": `\prod`, "∫": `\int`,
		"∈": `\in`, "∀": `\forall`, "∃": `\exists`, "∅": `\emptyset`,
		"→": `\rightarrow`, "←": `\leftarrow`,
	}
}

// CreateOptions tunes font entry construction.
type CreateOptions struct {
	// Workers bounds concurrent glyph rasterization. Zero means 8.
	Workers int

	// BoldPath, ItalicPath, and BoldItalicPath point at the style
	// variant faces of the same family. Each variant provided adds a
	// styled rendering of the target alphabet to the catalogue, so
	// documents that use those variants round-trip through the
	// generator's \textbf/\textit emission.
	BoldPath       string
	ItalicPath     string
	BoldItalicPath string
}

// Create builds a FontEntry for code by rasterizing the target
// alphabet, the math alphabet, and any requested style variants from
// the reference TrueType fonts, and persists the result into dir. It
// fails with ErrUnsupportedCode before touching the filesystem when
// code is not supported.
func Create(code Code, referencePath, dir string, opts CreateOptions) (*FontEntry, error) {
	if _, err := ParseCode(string(code)); err != nil {
		return nil, err
	}

	faces := []struct {
		style Style
		path  string
	}{
		{StyleRegular, referencePath},
		{StyleBold, opts.BoldPath},
		{StyleItalic, opts.ItalicPath},
		{StyleBoldItalic, opts.BoldItalicPath},
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	var (
		mu     sync.Mutex
		glyphs []GlyphEntry
	)
	var g errgroup.Group
	g.SetLimit(workers)

	for _, face := range faces {
		if face.path == "" {
			continue
		}
		data, err := os.ReadFile(face.path)
		if err != nil {
			return nil, fmt.Errorf("read reference font %s: %w", face.path, err)
		}
		ttf, err := freetype.ParseFont(data)
		if err != nil {
			return nil, fmt.Errorf("parse reference font %s: %w", face.path, err)
		}

		add := func(char, latex string, math bool, style Style) {
			g.Go(func() error {
				entry, err := renderGlyph(ttf, char, latex, math, style)
				if err != nil {
					// Fonts legitimately lack some symbols or ligatures;
					// skip them rather than failing the whole build.
					return nil
				}
				mu.Lock()
				glyphs = append(glyphs, entry)
				mu.Unlock()
				return nil
			})
		}

		for _, char := range TargetAlphabet() {
			add(char, char, false, face.style)
		}
		// Math symbols keep their upright shape; one rendering from
		// the regular face covers them.
		if face.style == StyleRegular {
			for char, latex := range MathAlphabet() {
				add(char, latex, true, StyleRegular)
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(glyphs) == 0 {
		return nil, fmt.Errorf("no glyphs rendered from %s", referencePath)
	}
	sortGlyphs(glyphs)

	entry := &FontEntry{Family: code, Glyphs: glyphs}
	if err := Save(dir, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// renderGlyph rasterizes one character and derives its descriptor.
// Each call builds its own freetype context; contexts are not safe for
// concurrent use.
func renderGlyph(ttf *truetype.Font, char, latex string, math bool, style Style) (GlyphEntry, error) {
	dst := image.NewGray(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(ttf)
	ctx.SetFontSize(renderSize)
	ctx.SetDst(dst)
	ctx.SetClip(dst.Bounds())
	ctx.SetSrc(image.Black)
	ctx.SetHinting(font.HintingFull)

	baselineY := canvasSize - canvasMargin
	if _, err := ctx.DrawString(char, freetype.Pt(canvasMargin, baselineY)); err != nil {
		return GlyphEntry{}, fmt.Errorf("draw %q: %w", char, err)
	}

	cropped, ok := CropInk(dst, inkThreshold)
	if !ok {
		return GlyphEntry{}, fmt.Errorf("no ink rendered for %q", char)
	}

	height := cropped.Bounds().Dy()
	baseline := float64(cropped.Bounds().Max.Y-baselineY) / float64(height)
	desc, err := NewDescriptor(cropped, baseline)
	if err != nil {
		return GlyphEntry{}, err
	}

	return GlyphEntry{Char: char, Latex: latex, Math: math, Style: style, Descriptor: desc}, nil
}

// CropInk returns the subimage covering all pixels darker than
// threshold, or false when the image holds no ink at all.
func CropInk(img *image.Gray, threshold uint8) (*image.Gray, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y <= threshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < minX || maxY < minY {
		return nil, false
	}
	return img.SubImage(image.Rect(minX, minY, maxX+1, maxY+1)).(*image.Gray), true
}
