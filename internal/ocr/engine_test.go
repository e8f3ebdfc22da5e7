package ocr

import (
	"errors"
	"testing"
	"time"

	"dococr/internal/config"
	"dococr/internal/logging"
)

func TestNewSelectsEngine(t *testing.T) {
	base := config.Config{
		Endpoint:   "http://localhost:11434/api/chat",
		Model:      "llava",
		Timeout:    time.Second,
		MaxRetries: 3,
	}

	t.Run("Ollama", func(t *testing.T) {
		cfg := base
		cfg.Engine = config.EngineOllama
		rec, err := New(cfg, logging.Discard())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if rec.Name() != "ollama" {
			t.Errorf("Expected ollama recognizer, got %s", rec.Name())
		}
	})

	t.Run("OpenAI", func(t *testing.T) {
		cfg := base
		cfg.Engine = config.EngineOpenAI
		cfg.Endpoint = "https://api.openai.com/v1"
		rec, err := New(cfg, logging.Discard())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if rec.Name() != "openai" {
			t.Errorf("Expected openai recognizer, got %s", rec.Name())
		}
	})

	t.Run("BadEndpoint", func(t *testing.T) {
		cfg := base
		cfg.Engine = config.EngineOllama
		cfg.Endpoint = "not a url"
		if _, err := New(cfg, logging.Discard()); !errors.Is(err, ErrInvalidEndpoint) {
			t.Errorf("Expected ErrInvalidEndpoint, got %v", err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := base
		cfg.Engine = "abacus"
		if _, err := New(cfg, logging.Discard()); !errors.Is(err, config.ErrConfig) {
			t.Errorf("Expected ErrConfig, got %v", err)
		}
	})
}
