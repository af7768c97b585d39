package fontdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FormatVersion is the on-disk font file schema version. Bump it when
// the descriptor representation changes; older files then fail to load
// with ErrUnsupportedVersion instead of producing garbage matches.
const FormatVersion = 1

var (
	// ErrMissing indicates the font database directory is absent or
	// holds no font files. The CLI layer turns this into guidance on
	// how to create or install font files.
	ErrMissing = errors.New("font database missing")

	// ErrUnsupportedVersion indicates a font file with a schema version
	// this build does not understand.
	ErrUnsupportedVersion = errors.New("unsupported font file version")

	// ErrUnsupportedCode indicates a font family code outside the
	// supported set.
	ErrUnsupportedCode = errors.New("unsupported font family code")
)

// GlyphEntry maps one catalogued character to its shape descriptor.
// Char holds the literal character (or ligature string); escaping is
// the LaTeX generator's concern, not the database's. Math marks
// entries whose Latex fragment must be emitted inside math mode.
// Style tags renderings from a bold or italic variant of the family.
type GlyphEntry struct {
	Char  string `json:"char"`
	Latex string `json:"latex"`
	Math  bool   `json:"math,omitempty"`
	Style Style  `json:"style,omitempty"`
	Descriptor
}

// FontEntry is the immutable catalogue for one font family. Entries
// are ordered by (character, style) so recognition tie-breaks stay
// deterministic.
type FontEntry struct {
	Family Code
	Glyphs []GlyphEntry
}

// fontFile is the on-disk JSON schema, one file per family.
type fontFile struct {
	Version int          `json:"version"`
	Family  Code         `json:"family"`
	Glyphs  []GlyphEntry `json:"glyphs"`
}

// Database maps family codes to their glyph catalogues. It is built
// once at startup and read-only afterwards, so it can be shared across
// recognition workers without locking.
type Database struct {
	entries map[Code]*FontEntry
}

// Load reads every supported family file from dir. It fails with
// ErrMissing when the directory does not exist or contains no font
// files, and with ErrUnsupportedVersion on a schema mismatch.
func Load(dir string) (*Database, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissing, dir)
	}

	db := &Database{entries: make(map[Code]*FontEntry)}
	for _, code := range SupportedCodes() {
		entry, err := loadFamily(dir, code)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		db.entries[code] = entry
	}

	if len(db.entries) == 0 {
		return nil, fmt.Errorf("%w: no font files in %s", ErrMissing, dir)
	}
	return db, nil
}

func loadFamily(dir string, code Code) (*FontEntry, error) {
	path := FamilyPath(dir, code)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file fontFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse font file %s: %w", path, err)
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d",
			ErrUnsupportedVersion, path, file.Version, FormatVersion)
	}

	glyphs := make([]GlyphEntry, 0, len(file.Glyphs))
	for _, g := range file.Glyphs {
		if g.Valid() {
			glyphs = append(glyphs, g)
		}
	}
	sortGlyphs(glyphs)

	return &FontEntry{Family: code, Glyphs: glyphs}, nil
}

// sortGlyphs orders a catalogue by (character, style) so tie-breaks
// downstream stay deterministic.
func sortGlyphs(glyphs []GlyphEntry) {
	sort.Slice(glyphs, func(i, j int) bool {
		if glyphs[i].Char != glyphs[j].Char {
			return glyphs[i].Char < glyphs[j].Char
		}
		return glyphs[i].Style < glyphs[j].Style
	})
}

// NewDatabase builds an in-memory database from already constructed
// entries, bypassing the on-disk format. Used by recognition tests and
// by create, which matches freshly built entries before persisting.
func NewDatabase(entries ...*FontEntry) *Database {
	db := &Database{entries: make(map[Code]*FontEntry, len(entries))}
	for _, entry := range entries {
		db.entries[entry.Family] = entry
	}
	return db
}

// Lookup returns the catalogue for a family, if loaded.
func (db *Database) Lookup(code Code) (*FontEntry, bool) {
	entry, ok := db.entries[code]
	return entry, ok
}

// Families returns the loaded family codes in deterministic order.
func (db *Database) Families() []Code {
	codes := make([]Code, 0, len(db.entries))
	for code := range db.entries {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// GlyphCount returns the total number of catalogued glyphs across all
// loaded families.
func (db *Database) GlyphCount() int {
	n := 0
	for _, entry := range db.entries {
		n += len(entry.Glyphs)
	}
	return n
}

// Save persists a font entry into dir using the current schema
// version. The write is atomic: a temp file is renamed into place so a
// crashed create never leaves a truncated font file behind.
func Save(dir string, entry *FontEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create font directory: %w", err)
	}

	file := fontFile{Version: FormatVersion, Family: entry.Family, Glyphs: entry.Glyphs}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode font file: %w", err)
	}

	path := FamilyPath(dir, entry.Family)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write font file: %w", err)
	}
	return os.Rename(tmp, path)
}

// FamilyPath returns the on-disk path for a family's font file.
func FamilyPath(dir string, code Code) string {
	return filepath.Join(dir, string(code)+".json")
}

// DefaultDir returns the platform configuration directory for font
// files (XDG config on Linux, Application Support on macOS, AppData on
// Windows).
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "untex"), nil
}
