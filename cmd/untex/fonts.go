package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untex/untex/fontdb"
)

var (
	fontsDir         string
	createReference  string
	createBold       string
	createItalic     string
	createBoldItalic string
	createWorkers    int
)

var fontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "Manage the font database",
}

var fontsCreateCmd = &cobra.Command{
	Use:   "create CODE",
	Short: "Build a font database entry from a reference font",
	Long: `Build a font database entry by rasterizing the target alphabet from
a reference TrueType font. Bold and italic variant faces, when given,
are catalogued alongside the regular face so styled text round-trips.

CODE is one of the supported family codes: cmr, lmr, put, qag, qcr,
qcs, qpl.

Examples:
  untex fonts create cmr --reference cmunrm.ttf
  untex fonts create cmr --reference cmunrm.ttf --bold cmunbx.ttf --italic cmunti.ttf
  untex fonts create qpl --reference qplr.ttf --font-dir ~/.config/untex
`,
	Args: cobra.ExactArgs(1),
	RunE: runFontsCreate,
}

var fontsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the font database contents",
	RunE:  runFontsList,
}

func init() {
	fontsCmd.PersistentFlags().StringVar(&fontsDir, "font-dir", "", "Font database directory")
	fontsCreateCmd.Flags().StringVarP(&createReference, "reference", "r", "", "Path to the reference .ttf font (required)")
	fontsCreateCmd.Flags().StringVar(&createBold, "bold", "", "Path to the bold variant .ttf font")
	fontsCreateCmd.Flags().StringVar(&createItalic, "italic", "", "Path to the italic variant .ttf font")
	fontsCreateCmd.Flags().StringVar(&createBoldItalic, "bold-italic", "", "Path to the bold italic variant .ttf font")
	fontsCreateCmd.Flags().IntVar(&createWorkers, "workers", 0, "Concurrent glyph rasterization workers")
	_ = fontsCreateCmd.MarkFlagRequired("reference")

	fontsCmd.AddCommand(fontsCreateCmd)
	fontsCmd.AddCommand(fontsListCmd)
}

func fontsDatabaseDir() (string, error) {
	if fontsDir != "" {
		return fontsDir, nil
	}
	if dir := newEnv().GetString("font_dir"); dir != "" {
		return dir, nil
	}
	return fontdb.DefaultDir()
}

func runFontsCreate(cmd *cobra.Command, args []string) error {
	code, err := fontdb.ParseCode(args[0])
	if err != nil {
		return fmt.Errorf("%w (supported: %v)", err, fontdb.SupportedCodes())
	}

	dir, err := fontsDatabaseDir()
	if err != nil {
		return err
	}

	entry, err := fontdb.Create(code, createReference, dir, fontdb.CreateOptions{
		Workers:        createWorkers,
		BoldPath:       createBold,
		ItalicPath:     createItalic,
		BoldItalicPath: createBoldItalic,
	})
	if err != nil {
		return fmt.Errorf("failed to create font entry: %w", err)
	}

	fmt.Printf("Created %s with %d glyphs in %s\n", code, len(entry.Glyphs), fontdb.FamilyPath(dir, code))
	return nil
}

func runFontsList(cmd *cobra.Command, args []string) error {
	dir, err := fontsDatabaseDir()
	if err != nil {
		return err
	}

	db, err := fontdb.Load(dir)
	if err != nil {
		if errors.Is(err, fontdb.ErrMissing) {
			fmt.Printf("No font database in %s. Run 'untex fonts create' to build one.\n", dir)
			return nil
		}
		return fmt.Errorf("failed to load font database: %w", err)
	}

	fmt.Printf("Font database: %s\n\n", dir)
	for _, code := range db.Families() {
		entry, _ := db.Lookup(code)
		fmt.Printf("  %s  %d glyphs\n", code, len(entry.Glyphs))
	}
	fmt.Printf("\nTotal: %d glyphs in %d families\n", db.GlyphCount(), len(db.Families()))
	return nil
}
