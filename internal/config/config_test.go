package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_URL", "QUEUE_NAME", "DATABASE_URL",
		"OCR_DEFAULT_LANG", "OCR_DEFAULT_DPI", "OCR_ENABLE_PREPROCESSING",
		"OCR_QUALITY_PROFILE", "OCR_MAX_RETRIES", "TESSERACT_CMD",
		"WORKER_CONCURRENCY", "PROCESSING_TIMEOUT_MS",
		"OUTPUT_DIR", "TEMP_DIR", "SCANDOC_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %s", cfg.RedisURL)
	}
	if cfg.QueueName != "scandoc:documents" {
		t.Errorf("QueueName = %s", cfg.QueueName)
	}
	if cfg.DefaultLanguage != "spa" {
		t.Errorf("DefaultLanguage = %s", cfg.DefaultLanguage)
	}
	if cfg.DefaultDPI != 0 {
		t.Errorf("DefaultDPI = %d, want 0 so the quality profile's resolution applies", cfg.DefaultDPI)
	}
	if cfg.QualityProfile != "balanced" {
		t.Errorf("QualityProfile = %s", cfg.QualityProfile)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d", cfg.WorkerConcurrency)
	}
	if cfg.ProcessingTimeout != 5*time.Minute {
		t.Errorf("ProcessingTimeout = %v", cfg.ProcessingTimeout)
	}
	if cfg.OutputDir != "resultado" {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://redis:6379/2")
	t.Setenv("OCR_DEFAULT_LANG", "eng")
	t.Setenv("OCR_DEFAULT_DPI", "600")
	t.Setenv("OCR_ENABLE_PREPROCESSING", "true")
	t.Setenv("OCR_QUALITY_PROFILE", "high_quality")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("PROCESSING_TIMEOUT_MS", "120000")
	t.Setenv("SCANDOC_DEBUG", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.RedisURL != "redis://redis:6379/2" {
		t.Errorf("RedisURL = %s", cfg.RedisURL)
	}
	if cfg.DefaultLanguage != "eng" || cfg.DefaultDPI != 600 {
		t.Errorf("OCR defaults not applied: %s %d", cfg.DefaultLanguage, cfg.DefaultDPI)
	}
	if !cfg.EnablePreprocessing || !cfg.Debug {
		t.Error("boolean flags not parsed")
	}
	if cfg.ProcessingTimeout != 2*time.Minute {
		t.Errorf("ProcessingTimeout = %v, want 2m", cfg.ProcessingTimeout)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Errorf("WorkerConcurrency = %d", cfg.WorkerConcurrency)
	}
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_DEFAULT_DPI", "not-a-number")
	t.Setenv("OCR_ENABLE_PREPROCESSING", "yes-please")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DefaultDPI != 0 {
		t.Errorf("malformed DPI should fall back to default, got %d", cfg.DefaultDPI)
	}
	if cfg.EnablePreprocessing {
		t.Error("malformed bool should fall back to default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative dpi", func(c *Config) { c.DefaultDPI = -150 }},
		{"empty language", func(c *Config) { c.DefaultLanguage = "" }},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"excessive concurrency", func(c *Config) { c.WorkerConcurrency = 100 }},
		{"sub-second timeout", func(c *Config) { c.ProcessingTimeout = 500 * time.Millisecond }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
