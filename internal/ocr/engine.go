package ocr

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dococr/internal/config"
)

// New selects the recognizer named by cfg.Engine.
func New(cfg config.Config, log logrus.FieldLogger) (Recognizer, error) {
	policy := RetryPolicy{MaxRetries: cfg.MaxRetries, Pause: cfg.RetryPause}

	switch cfg.Engine {
	case config.EngineOllama:
		transport, err := NewChatTransport(cfg.Endpoint, cfg.APIKey, cfg.Timeout, log)
		if err != nil {
			return nil, err
		}
		return NewClient(transport, cfg.Model, policy, log), nil
	case config.EngineOpenAI:
		transport, err := NewOpenAITransport(cfg.Endpoint, cfg.APIKey, cfg.Timeout, log)
		if err != nil {
			return nil, err
		}
		return NewClient(transport, cfg.Model, policy, log), nil
	case config.EngineTesseract:
		return NewTesseractEngine(cfg.Languages)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", config.ErrConfig, cfg.Engine)
	}
}
