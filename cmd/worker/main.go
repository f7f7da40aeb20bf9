/**
 * scandoc Worker
 *
 * Long-running daemon that consumes document processing tasks from the
 * Redis-backed queue, runs OCR and table extraction, and persists results.
 */

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/scandoc/scandoc/internal/config"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/ocr"
	"github.com/scandoc/scandoc/internal/processor"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/queue"
	"github.com/scandoc/scandoc/internal/raster"
	"github.com/scandoc/scandoc/internal/storage"
	"github.com/scandoc/scandoc/internal/tables"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.NewLogger("worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Debug {
		logger = logger.WithDebug()
	}
	cfg.ApplyTesseractEnv()

	logger.Info("starting scandoc worker",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"profile", cfg.QualityProfile,
		"language", cfg.DefaultLanguage)

	store, err := storage.NewManager(storage.ManagerConfig{
		OutputDir:   cfg.OutputDir,
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger.Named("storage"),
	})
	if err != nil {
		logger.Error("failed to initialize storage", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	status, err := queue.NewStatusPublisher(cfg.RedisURL, logger.Named("status"))
	if err != nil {
		logger.Error("failed to connect status publisher", "error", err.Error())
		os.Exit(1)
	}
	defer status.Close()

	def, err := defaultProfile(cfg)
	if err != nil {
		logger.Error("invalid default profile", "error", err.Error())
		os.Exit(1)
	}

	proc := processor.NewProcessor(processor.Config{
		Rasterizer:   raster.NewPopplerRasterizer(cfg.TempDir, logger.Named("raster")),
		Basic:        ocr.NewBasicEngine(),
		Preprocessed: ocr.NewPreprocessedEngine(),
		Tables: tables.NewRuleExtractor(tables.RuleExtractorConfig{
			Cells:  tables.NewTesseractCellReader(cfg.DefaultLanguage),
			Logger: logger.Named("tables"),
		}),
		Logger: logger.Named("processor"),
	})

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		RedisURL:       cfg.RedisURL,
		QueueName:      cfg.QueueName,
		Concurrency:    cfg.WorkerConcurrency,
		Processor:      proc,
		Aggregator:     processor.NewAggregator(),
		Store:          store,
		Status:         status,
		DefaultProfile: def,
		Logger:         logger.Named("consumer"),
	})
	if err != nil {
		logger.Error("failed to create consumer", "error", err.Error())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
		consumer.Shutdown()
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer stopped", "error", err.Error())
			os.Exit(1)
		}
	}

	logger.Info("worker stopped")
}

// defaultProfile resolves the configured quality profile with the worker's
// environment defaults layered on top. An explicit OCR_DEFAULT_DPI
// overrides the profile's resolution; OCR_ENABLE_PREPROCESSING only ever
// forces the pipeline on, never off.
func defaultProfile(cfg *config.Config) (profile.Profile, error) {
	base, err := profile.ByName(cfg.QualityProfile)
	if err != nil {
		return profile.Profile{}, err
	}
	opts := []profile.Option{
		profile.WithLanguage(cfg.DefaultLanguage),
		profile.WithMaxRetries(cfg.MaxRetries),
		profile.WithMaxProcessingTime(cfg.ProcessingTimeout),
	}
	if cfg.DefaultDPI > 0 {
		opts = append(opts, profile.WithDPI(cfg.DefaultDPI))
	}
	if cfg.EnablePreprocessing {
		opts = append(opts, profile.WithPreprocessing(true))
	}
	return base.With(opts...)
}
