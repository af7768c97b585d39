package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/untex/untex/convert"
	"github.com/untex/untex/extract"
	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/logging"
	"github.com/untex/untex/source"
)

var (
	convertConfigPath string
	convertOutputPath string
	convertFontDir    string
	convertWorkers    int
	convertDPI        int
	convertSilent     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert INPUT",
	Short: "Convert a PDF to LaTeX source",
	Long: `Convert a PDF document to LaTeX source by visual glyph recognition.

INPUT is a local path or an s3://bucket/key URL.

Examples:
  # Convert with defaults
  untex convert paper.pdf

  # Custom output path and config
  untex convert paper.pdf -o paper.tex -c untex.yaml

  # Fetch the input from S3
  untex convert s3://papers/2024/paper.pdf

  # Override the font database location
  untex convert paper.pdf --font-dir ~/.config/untex
`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertConfigPath, "config", "c", "", "Path to configuration file")
	convertCmd.Flags().StringVarP(&convertOutputPath, "output", "o", "", "Output .tex path (defaults to the input name)")
	convertCmd.Flags().StringVar(&convertFontDir, "font-dir", "", "Font database directory")
	convertCmd.Flags().IntVar(&convertWorkers, "workers", 0, "Concurrent page workers (overrides config)")
	convertCmd.Flags().IntVar(&convertDPI, "dpi", 0, "Page render resolution")
	convertCmd.Flags().BoolVar(&convertSilent, "silent", false, "Suppress logs and the report printout")
}

// newEnv binds UNTEX_* environment variables for settings that make
// sense per-host rather than per-project.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("UNTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := newEnv()

	cfg := convert.DefaultConfig()
	if convertConfigPath != "" {
		loaded, err := convert.LoadConfig(convertConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// Override config with flags
	if convertWorkers > 0 {
		cfg.Execution.Workers = convertWorkers
	}
	if convertSilent {
		cfg.Logging.Style = logging.StyleNoop
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fontDir, err := resolveFontDir(cfg.FontDir, env)
	if err != nil {
		return err
	}

	input := args[0]
	resolver := source.NewResolver(source.Credentials{
		Endpoint: env.GetString("s3_endpoint"),
		UseSSL:   env.GetBool("s3_use_ssl"),
	}, logger)
	localInput, cleanup, err := resolver.Resolve(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to resolve input: %w", err)
	}
	defer cleanup()

	db, err := fontdb.Load(fontDir)
	if err != nil {
		if errors.Is(err, fontdb.ErrMissing) {
			return fmt.Errorf("no font database in %s: run 'untex fonts create' first: %w", fontDir, err)
		}
		return fmt.Errorf("failed to load font database: %w", err)
	}

	extractor := extract.New(extract.Options{DPI: convertDPI}, logger)
	converter, err := convert.New(db, extractor, cfg, logger)
	if err != nil {
		return err
	}

	tex, report, err := converter.Convert(ctx, localInput)
	if err != nil {
		return err
	}

	outputPath := convertOutputPath
	if outputPath == "" {
		outputPath = defaultOutputPath(input)
	}
	if err := convert.WriteOutput(outputPath, tex); err != nil {
		return err
	}

	if !convertSilent {
		fmt.Println()
		report.Print()
		fmt.Printf("LaTeX written to: %s\n", outputPath)
	}

	if cfg.Output.Path != "" {
		if err := report.SaveToFile(cfg.Output.Path, cfg.Output.Format, cfg.Output.Pretty); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		if !convertSilent {
			fmt.Printf("Report saved to: %s\n", cfg.Output.Path)
		}
	}
	return nil
}

// resolveFontDir picks the font database directory: flag, then config,
// then UNTEX_FONT_DIR, then the per-user default.
func resolveFontDir(configured string, env *viper.Viper) (string, error) {
	if convertFontDir != "" {
		return convertFontDir, nil
	}
	if configured != "" {
		return configured, nil
	}
	if dir := env.GetString("font_dir"); dir != "" {
		return dir, nil
	}
	return fontdb.DefaultDir()
}

// defaultOutputPath derives out.tex from in.pdf, handling s3 keys too.
func defaultOutputPath(input string) string {
	base := input
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base + ".tex"
}
