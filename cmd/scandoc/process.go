package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scandoc/scandoc/internal/config"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/ocr"
	"github.com/scandoc/scandoc/internal/processor"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/raster"
	"github.com/scandoc/scandoc/internal/storage"
	"github.com/scandoc/scandoc/internal/tables"
)

// processFlags are the per-invocation overrides for a synchronous run.
type processFlags struct {
	profileName string
	language    string
	dpi         int
	threshold   float64
	preprocess  bool
	retries     int
	timeout     time.Duration
	outputDir   string
	noTables    bool
	debug       bool
}

func newProcessCmd() *cobra.Command {
	flags := processFlags{}

	cmd := &cobra.Command{
		Use:   "process <document.pdf>",
		Short: "Process a PDF synchronously and write artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.profileName, "profile", "p", "balanced", "quality profile: fast, balanced, high_quality")
	cmd.Flags().StringVarP(&flags.language, "lang", "l", "", "OCR language code (default from profile)")
	cmd.Flags().IntVar(&flags.dpi, "dpi", 0, "rasterization DPI (default from profile)")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "confidence threshold 0-100 (default from profile)")
	cmd.Flags().BoolVar(&flags.preprocess, "preprocess", false, "force the preprocessing pipeline on")
	cmd.Flags().IntVar(&flags.retries, "retries", -1, "retry budget (default from profile)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "processing time budget (default from profile)")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "output directory (default from OUTPUT_DIR)")
	cmd.Flags().BoolVar(&flags.noTables, "no-tables", false, "skip table extraction")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd
}

func runProcess(ctx context.Context, documentPath string, flags processFlags) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyTesseractEnv()
	if flags.outputDir != "" {
		cfg.OutputDir = flags.outputDir
	}

	logger := logging.NewLogger("scandoc")
	if flags.debug || cfg.Debug {
		logger = logger.WithDebug()
	}

	prof, err := resolveProfile(flags)
	if err != nil {
		return err
	}

	var extractor tables.Extractor
	if !flags.noTables {
		extractor = tables.NewRuleExtractor(tables.RuleExtractorConfig{
			Cells:  tables.NewTesseractCellReader(prof.Language),
			Logger: logger.Named("tables"),
		})
	}

	proc := processor.NewProcessor(processor.Config{
		Rasterizer:   raster.NewPopplerRasterizer(cfg.TempDir, logger.Named("raster")),
		Basic:        ocr.NewBasicEngine(),
		Preprocessed: ocr.NewPreprocessedEngine(),
		Tables:       extractor,
		Logger:       logger.Named("processor"),
	})

	result, err := proc.Process(ctx, documentPath, prof)
	if err != nil {
		return err
	}

	agg := processor.NewAggregator()
	store := storage.NewArtifactStore(cfg.OutputDir, logger.Named("storage"))
	paths, err := store.Save(result.DocumentName, result.DocumentPath, agg.PlainText(result), agg.Markdown(result))
	if err != nil {
		return err
	}

	fmt.Printf("status:     %s\n", result.Status)
	fmt.Printf("confidence: %.2f%%\n", result.Confidence)
	fmt.Printf("pages:      %d\n", result.PageCount())
	fmt.Printf("tables:     %d\n", result.TableCount())
	fmt.Printf("attempts:   %d\n", result.Attempts)
	fmt.Printf("profile:    %s\n", result.Profile.Level.String())
	fmt.Printf("duration:   %s\n", result.Duration().Round(time.Millisecond))
	fmt.Printf("output:     %s\n", paths.Dir)
	return nil
}

func resolveProfile(flags processFlags) (profile.Profile, error) {
	base, err := profile.ByName(flags.profileName)
	if err != nil {
		return profile.Profile{}, err
	}

	var opts []profile.Option
	if flags.language != "" {
		opts = append(opts, profile.WithLanguage(flags.language))
	}
	if flags.dpi > 0 {
		opts = append(opts, profile.WithDPI(flags.dpi))
	}
	if flags.threshold > 0 {
		opts = append(opts, profile.WithConfidenceThreshold(flags.threshold))
	}
	if flags.preprocess {
		opts = append(opts, profile.WithPreprocessing(true))
	}
	if flags.retries >= 0 {
		opts = append(opts, profile.WithMaxRetries(flags.retries))
	}
	if flags.timeout > 0 {
		opts = append(opts, profile.WithMaxProcessingTime(flags.timeout))
	}
	if len(opts) == 0 {
		return base, nil
	}
	return base.With(opts...)
}
