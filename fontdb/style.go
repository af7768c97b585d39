package fontdb

// Style identifies a rendering variant within a font family. The empty
// value is the regular upright face, so catalogues built before styles
// existed load unchanged.
type Style string

const (
	StyleRegular    Style = ""
	StyleBold       Style = "bold"
	StyleItalic     Style = "italic"
	StyleBoldItalic Style = "bolditalic"
)

// Bold reports whether the style carries bold weight.
func (s Style) Bold() bool {
	return s == StyleBold || s == StyleBoldItalic
}

// Italic reports whether the style carries an italic shape.
func (s Style) Italic() bool {
	return s == StyleItalic || s == StyleBoldItalic
}
