package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"OCR_ENGINE", "OCR_ENDPOINT", "OCR_MODEL", "OCR_TIMEOUT", "OCR_MAX_RETRIES", "CLEAN_TEXT", "COMBINED_OUTPUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Engine != EngineOllama {
		t.Errorf("Expected engine %q, got %q", EngineOllama, cfg.Engine)
	}
	if cfg.Endpoint != "http://localhost:11434/api/chat" {
		t.Errorf("Unexpected default endpoint %q", cfg.Endpoint)
	}
	if cfg.Model != "llava" {
		t.Errorf("Expected model llava, got %q", cfg.Model)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Clean || cfg.Combined {
		t.Error("Remote engine should persist raw per-page text by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadTesseractVariant(t *testing.T) {
	t.Setenv("OCR_ENGINE", "Tesseract")
	t.Setenv("CLEAN_TEXT", "")
	t.Setenv("COMBINED_OUTPUT", "")
	t.Setenv("OCR_LANGUAGES", "spa+eng")

	cfg := Load()
	if cfg.Engine != EngineTesseract {
		t.Fatalf("Expected tesseract engine, got %q", cfg.Engine)
	}
	if !cfg.Clean || !cfg.Combined {
		t.Error("Local engine should clean text and combine output by default")
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0] != "spa" || cfg.Languages[1] != "eng" {
		t.Errorf("Unexpected languages %v", cfg.Languages)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"30", 30 * time.Second},
		{"1500ms", 1500 * time.Millisecond},
		{"garbage", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			if got := getEnvDuration("TEST_DURATION", 5*time.Second); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Engine:       EngineOllama,
			Endpoint:     "http://localhost:11434/api/chat",
			OutputFormat: "md",
			OutputDir:    "out",
			Timeout:      time.Second,
			MaxRetries:   3,
			DPI:          300,
			MaxEdge:      2000,
			JPEGQuality:  85,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"UnknownEngine", func(c *Config) { c.Engine = "carrier-pigeon" }},
		{"UnknownFormat", func(c *Config) { c.OutputFormat = "docx" }},
		{"MissingEndpoint", func(c *Config) { c.Endpoint = " " }},
		{"ZeroRetries", func(c *Config) { c.MaxRetries = 0 }},
		{"ZeroTimeout", func(c *Config) { c.Timeout = 0 }},
		{"NegativePause", func(c *Config) { c.PagePause = -time.Second }},
		{"ZeroDPI", func(c *Config) { c.DPI = 0 }},
		{"QualityTooHigh", func(c *Config) { c.JPEGQuality = 101 }},
		{"NoOutputDir", func(c *Config) { c.OutputDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}

	t.Run("TesseractNeedsNoEndpoint", func(t *testing.T) {
		cfg := base()
		cfg.Engine = EngineTesseract
		cfg.Endpoint = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config, got %v", err)
		}
	})
}
