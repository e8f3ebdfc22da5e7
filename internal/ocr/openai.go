package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAITransport sends pages to an OpenAI-compatible vision chat endpoint
// and assembles the streamed deltas.
type OpenAITransport struct {
	client  *openai.Client
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewOpenAITransport(baseURL, apiKey string, timeout time.Duration, log logrus.FieldLogger) (*OpenAITransport, error) {
	if err := validateEndpoint(baseURL); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = newStreamingHTTPClient(timeout)

	return &OpenAITransport{
		client:  openai.NewClientWithConfig(cfg),
		timeout: timeout,
		log:     log,
	}, nil
}

func (t *OpenAITransport) Name() string { return "openai" }

// Attempt implements Transport.
func (t *OpenAITransport) Attempt(ctx context.Context, req Request) Outcome {
	ctx, touch, stop := withIdleTimeout(ctx, t.timeout)
	defer stop()

	stream, err := t.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Instruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    req.Payload.DataURI(),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return Transient(idleReason(ctx, t.timeout, fmt.Errorf("open completion stream: %w", err)))
	}
	defer stream.Close()

	var acc assembler
	chunks := 0
	for {
		resp, err := stream.Recv()
		touch()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Transient(idleReason(ctx, t.timeout, fmt.Errorf("receive completion chunk: %w", err)))
		}
		chunks++
		for _, choice := range resp.Choices {
			if choice.Index == 0 {
				acc.add(choice.Delta.Content)
			}
		}
	}

	t.log.WithFields(logrus.Fields{"page": req.Page, "chunks": chunks}).Debug("completion stream finished")

	text := acc.text()
	if text == "" {
		return Transient(ErrEmptyResponse)
	}
	return Success(text)
}
