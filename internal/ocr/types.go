package ocr

import (
	"context"
	"encoding/base64"
	"errors"
)

var (
	// ErrRecognitionExhausted is returned when every attempt for a page failed.
	ErrRecognitionExhausted = errors.New("recognition failed after all attempts")
	// ErrEmptyResponse marks a response whose fragments carried no text.
	ErrEmptyResponse = errors.New("recognition service returned no text")
	// ErrServiceStatus marks a non-success HTTP status from the service.
	ErrServiceStatus = errors.New("recognition service returned an error status")
	// ErrInvalidEndpoint is a configuration error and is never retried.
	ErrInvalidEndpoint = errors.New("invalid recognition endpoint")
	// ErrNoText is returned by the local engine for pages without text.
	ErrNoText = errors.New("no text detected")
	// ErrIdleTimeout marks a stream that went quiet for longer than the timeout.
	ErrIdleTimeout = errors.New("recognition service stopped responding")
	// ErrEngineUnavailable is returned when the selected engine was not built in.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")
)

// Payload is a normalized page image ready to be sent for recognition.
type Payload struct {
	Data   []byte
	Format string // MIME type, e.g. image/jpeg
	Width  int
	Height int
}

func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI returns the payload as a data URI for OpenAI-style image parts.
func (p Payload) DataURI() string {
	return "data:" + p.Format + ";base64," + p.Base64()
}

// Request is built fresh for every attempt.
type Request struct {
	Page        int
	Model       string
	Instruction string
	Payload     Payload
}

// Fragment is one decoded unit of a streamed response.
type Fragment struct {
	Content string
	Done    bool
	Err     string
}

// Result is the assembled text for one page.
type Result struct {
	Text     string
	Attempts int
	Engine   string
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of a single attempt.
type Outcome struct {
	Kind   OutcomeKind
	Text   string
	Reason error
}

func Success(text string) Outcome { return Outcome{Kind: OutcomeSuccess, Text: text} }

func Transient(reason error) Outcome { return Outcome{Kind: OutcomeTransient, Reason: reason} }

func Fatal(reason error) Outcome { return Outcome{Kind: OutcomeFatal, Reason: reason} }

// Recognizer turns an encoded page image into text. Implementations are the
// remote clients (with retries) and the local Tesseract engine.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, page int, payload Payload, instruction string) (*Result, error)
}

// Transport performs exactly one recognition attempt.
type Transport interface {
	Name() string
	Attempt(ctx context.Context, req Request) Outcome
}
