//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs recognition locally through gosseract. It needs the
// tesseract shared libraries and the "tesseract" build tag.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed recognizer.
func NewTesseractEngine(languages []string) (Recognizer, error) {
	return &TesseractEngine{
		languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize implements Recognizer. The instruction is ignored; Tesseract has
// no prompt.
func (e *TesseractEngine) Recognize(ctx context.Context, page int, payload Payload, _ string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(payload.Data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract page %d: %w", page, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("page %d: %w", page, ErrNoText)
	}

	return &Result{Text: text, Attempts: 1, Engine: e.Name()}, nil
}
