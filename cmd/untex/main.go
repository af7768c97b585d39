package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "untex",
	Short: "Untex - reconstruct LaTeX source from rendered PDFs",
	Long: `Untex reconstructs compilable LaTeX source from PDF documents by
visual glyph recognition.

Pages are rendered, segmented into glyphs, and matched against a font
database of known shapes. The recovered characters are regrouped into
lines and paragraphs and serialized back to LaTeX, with unrecognized
glyphs kept visible as placeholders.

Use untex to convert documents and to build font databases from
reference fonts.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(fontsCmd)
}
