package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ChatTransport talks to an Ollama-style /api/chat endpoint that streams
// newline-delimited JSON objects.
type ChatTransport struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewChatTransport(endpoint, apiKey string, timeout time.Duration, log logrus.FieldLogger) (*ChatTransport, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ChatTransport{
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: newStreamingHTTPClient(timeout),
		log:        log,
	}, nil
}

func (t *ChatTransport) Name() string { return "ollama" }

// Attempt implements Transport. timeout bounds each wait for data, not the
// whole stream.
func (t *ChatTransport) Attempt(ctx context.Context, req Request) Outcome {
	reqBody, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: req.Instruction,
				Images:  []string{req.Payload.Base64()},
			},
		},
		Stream: true,
	})
	if err != nil {
		return Fatal(fmt.Errorf("marshal chat request: %w", err))
	}

	ctx, touch, stop := withIdleTimeout(ctx, t.timeout)
	defer stop()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Fatal(fmt.Errorf("create http request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	log := t.log.WithField("page", req.Page)
	log.WithField("payload_kb", len(reqBody)/1024).Debug("sending recognition request")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return Transient(idleReason(ctx, t.timeout, fmt.Errorf("execute chat request: %w", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Transient(fmt.Errorf("%w: status=%d, body=%s", ErrServiceStatus, resp.StatusCode, bytes.TrimSpace(body)))
	}

	acc := assembler{spaced: true}
	var serviceErr string
	dec := NewFragmentDecoder(resp.Body)
	for {
		frag, err := dec.Next()
		touch()
		if errors.Is(err, io.EOF) {
			break
		}
		var malformed *MalformedFragmentError
		if errors.As(err, &malformed) {
			log.WithField("line", malformed.Line).Warn("ignoring malformed JSON line in response")
			continue
		}
		if err != nil {
			return Transient(idleReason(ctx, t.timeout, err))
		}
		if frag.Err != "" {
			log.WithField("service_error", frag.Err).Warn("service reported an error mid-stream")
			serviceErr = frag.Err
			continue
		}
		acc.add(frag.Content)
	}

	text := acc.text()
	if text == "" {
		if serviceErr != "" {
			return Transient(fmt.Errorf("%w: %s", ErrEmptyResponse, serviceErr))
		}
		return Transient(ErrEmptyResponse)
	}
	return Success(text)
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, endpoint)
	}
	return nil
}
