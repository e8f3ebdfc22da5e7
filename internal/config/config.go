package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfig marks an invalid configuration value.
var ErrConfig = errors.New("invalid configuration")

const (
	EngineOllama    = "ollama"
	EngineOpenAI    = "openai"
	EngineTesseract = "tesseract"

	DefaultPrompt = "Extract the exact text from the image. Preserve spacing, punctuation, and line breaks."
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Engine     string
	Endpoint   string
	APIKey     string
	Model      string
	Prompt     string
	Languages  []string
	Timeout    time.Duration
	MaxRetries int
	RetryPause time.Duration
	PagePause  time.Duration

	SourcePath   string
	OutputDir    string
	OutputFormat string
	ImageDir     string
	KeepImages   bool
	Combined     bool
	Clean        bool

	DPI             int
	GhostscriptPath string
	MaxEdge         int
	JPEGQuality     int
	MaxPayloadBytes int

	DatabasePath string
	LogLevel     string
	LogFormat    string
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	engine := strings.ToLower(getEnv("OCR_ENGINE", EngineOllama))
	local := engine == EngineTesseract

	return Config{
		Engine:     engine,
		Endpoint:   getEnv("OCR_ENDPOINT", DefaultEndpoint(engine)),
		APIKey:     os.Getenv("OCR_API_KEY"),
		Model:      getEnv("OCR_MODEL", DefaultModel(engine)),
		Prompt:     getEnv("OCR_PROMPT", DefaultPrompt),
		Languages:  splitList(getEnv("OCR_LANGUAGES", "spa")),
		Timeout:    getEnvDuration("OCR_TIMEOUT", 120*time.Second),
		MaxRetries: getEnvInt("OCR_MAX_RETRIES", 3),
		RetryPause: getEnvDuration("OCR_RETRY_PAUSE", 2*time.Second),
		PagePause:  getEnvDuration("OCR_PAGE_PAUSE", 2*time.Second),

		SourcePath:   getEnv("SOURCE_PDF", "documento.pdf"),
		OutputDir:    getEnv("OUTPUT_DIR", "output"),
		OutputFormat: strings.ToLower(getEnv("OUTPUT_FORMAT", "md")),
		ImageDir:     getEnv("IMAGE_DIR", "imagenes"),
		KeepImages:   getEnvBool("KEEP_IMAGES", false),
		Combined:     getEnvBool("COMBINED_OUTPUT", local),
		Clean:        getEnvBool("CLEAN_TEXT", local),

		DPI:             getEnvInt("RASTER_DPI", 300),
		GhostscriptPath: getEnv("GHOSTSCRIPT_PATH", "gs"),
		MaxEdge:         getEnvInt("IMAGE_MAX_EDGE", 2000),
		JPEGQuality:     getEnvInt("JPEG_QUALITY", 85),
		MaxPayloadBytes: getEnvInt("MAX_PAYLOAD_BYTES", 10<<20),

		DatabasePath: os.Getenv("DATABASE_PATH"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineOllama, EngineOpenAI, EngineTesseract:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrConfig, c.Engine)
	}
	switch c.OutputFormat {
	case "md", "txt", "html":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrConfig, c.OutputFormat)
	}
	if c.Engine != EngineTesseract && strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required for engine %s", ErrConfig, c.Engine)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1, got %d", ErrConfig, c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrConfig)
	}
	if c.RetryPause < 0 || c.PagePause < 0 {
		return fmt.Errorf("%w: pauses cannot be negative", ErrConfig)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("%w: dpi must be positive, got %d", ErrConfig, c.DPI)
	}
	if c.MaxEdge <= 0 {
		return fmt.Errorf("%w: max edge must be positive, got %d", ErrConfig, c.MaxEdge)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality must be within 1..100, got %d", ErrConfig, c.JPEGQuality)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%w: output dir is required", ErrConfig)
	}
	return nil
}

// DefaultEndpoint is the service URL used when none is configured.
func DefaultEndpoint(engine string) string {
	if engine == EngineOpenAI {
		return "https://api.openai.com/v1"
	}
	return "http://localhost:11434/api/chat"
}

// DefaultModel is the model used when none is configured.
func DefaultModel(engine string) string {
	if engine == EngineOpenAI {
		return "gpt-4o-mini"
	}
	return "llava"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
