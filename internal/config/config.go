package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Redis / queue configuration
	RedisURL  string
	QueueName string

	// PostgreSQL configuration
	DatabaseURL string

	// OCR defaults translated into the initial processing profile.
	// DefaultDPI of 0 follows the quality profile's own resolution.
	DefaultLanguage     string
	DefaultDPI          int
	EnablePreprocessing bool
	QualityProfile      string
	MaxRetries          int

	// Tesseract binary location, exported for the recognition engine
	TesseractCmd string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout time.Duration

	// Output artifact directories
	OutputDir string
	TempDir   string

	// Debug logging
	Debug bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "scandoc:documents"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		DefaultLanguage:     getEnvOrDefault("OCR_DEFAULT_LANG", "spa"),
		DefaultDPI:          getEnvAsIntOrDefault("OCR_DEFAULT_DPI", 0),
		EnablePreprocessing: getEnvAsBoolOrDefault("OCR_ENABLE_PREPROCESSING", false),
		QualityProfile:      getEnvOrDefault("OCR_QUALITY_PROFILE", "balanced"),
		MaxRetries:          getEnvAsIntOrDefault("OCR_MAX_RETRIES", 2),
		TesseractCmd:        getEnvOrDefault("TESSERACT_CMD", "/usr/bin/tesseract"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:   time.Duration(getEnvAsIntOrDefault("PROCESSING_TIMEOUT_MS", 300000)) * time.Millisecond,
		OutputDir:           getEnvOrDefault("OUTPUT_DIR", "resultado"),
		TempDir:             getEnvOrDefault("TEMP_DIR", os.TempDir()),
		Debug:               getEnvAsBoolOrDefault("SCANDOC_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DefaultDPI < 0 {
		return fmt.Errorf("OCR_DEFAULT_DPI must not be negative, got %d", c.DefaultDPI)
	}

	if c.DefaultLanguage == "" {
		return fmt.Errorf("OCR_DEFAULT_LANG is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < time.Second {
		return fmt.Errorf("PROCESSING_TIMEOUT_MS must be at least 1000, got %v", c.ProcessingTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("OCR_MAX_RETRIES must be non-negative, got %d", c.MaxRetries)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	return nil
}

// ApplyTesseractEnv exports the configured tesseract binary location into
// the process environment for diagnostics and external tooling. Recognition
// itself links libtesseract directly and does not consult this variable.
func (c *Config) ApplyTesseractEnv() {
	if c.TesseractCmd != "" {
		os.Setenv("TESSERACT_CMD", c.TesseractCmd)
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
