//go:build !tesseract

package ocr

import "fmt"

// NewTesseractEngine reports ErrEngineUnavailable; rebuild with
// -tags tesseract to link the local engine.
func NewTesseractEngine(languages []string) (Recognizer, error) {
	return nil, fmt.Errorf("%w: tesseract support not compiled in, rebuild with -tags tesseract", ErrEngineUnavailable)
}
