package fontdb

import "fmt"

// Code identifies a LaTeX font family whose glyph shapes are catalogued
// in the database, e.g. "cmr" for Computer Modern Roman.
type Code string

const (
	CodeCmr Code = "cmr" // Computer Modern Roman
	CodeLmr Code = "lmr" // Latin Modern Roman
	CodePut Code = "put" // Utopia
	CodeQag Code = "qag" // TeX Gyre Adventor
	CodeQcr Code = "qcr" // TeX Gyre Cursor
	CodeQcs Code = "qcs" // TeX Gyre Schola
	CodeQpl Code = "qpl" // TeX Gyre Pagella
)

// SupportedCodes returns all font family codes the database knows how
// to build and load, in deterministic order.
func SupportedCodes() []Code {
	return []Code{CodeCmr, CodeLmr, CodePut, CodeQag, CodeQcr, CodeQcs, CodeQpl}
}

// ParseCode validates a user-supplied family code.
func ParseCode(s string) (Code, error) {
	for _, c := range SupportedCodes() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCode, s)
}

func (c Code) String() string {
	return string(c)
}
