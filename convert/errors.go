package convert

import "errors"

// Fatal conversion errors. Only unreadable input and a missing font
// database abort a conversion; everything else degrades to per-page
// failures recorded in the report.
var (
	// ErrInputNotFound means the input path does not exist.
	ErrInputNotFound = errors.New("input file not found")

	// ErrInputUnreadable means the input exists but cannot be parsed
	// as a PDF.
	ErrInputUnreadable = errors.New("input file unreadable")

	// ErrOutputWriteFailed means the generated LaTeX could not be
	// written to its destination.
	ErrOutputWriteFailed = errors.New("output write failed")
)
