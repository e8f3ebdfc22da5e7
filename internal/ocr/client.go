package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds the attempts made for a single page.
type RetryPolicy struct {
	MaxRetries int
	Pause      time.Duration
}

// Client drives a Transport with a bounded retry loop. Retries are whole
// requests; nothing from a failed attempt carries over.
type Client struct {
	transport Transport
	model     string
	policy    RetryPolicy
	log       logrus.FieldLogger
}

func NewClient(transport Transport, model string, policy RetryPolicy, log logrus.FieldLogger) *Client {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		transport: transport,
		model:     model,
		policy:    policy,
		log:       log.WithField("engine", transport.Name()),
	}
}

func (c *Client) Name() string {
	return c.transport.Name()
}

// Recognize implements Recognizer.
func (c *Client) Recognize(ctx context.Context, page int, payload Payload, instruction string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		req := Request{
			Page:        page,
			Model:       c.model,
			Instruction: instruction,
			Payload:     payload,
		}

		out := c.transport.Attempt(ctx, req)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch out.Kind {
		case OutcomeSuccess:
			text := strings.TrimSpace(out.Text)
			if text != "" {
				return &Result{Text: text, Attempts: attempt, Engine: c.transport.Name()}, nil
			}
			lastErr = ErrEmptyResponse
		case OutcomeFatal:
			return nil, fmt.Errorf("page %d: %w", page, out.Reason)
		default:
			lastErr = out.Reason
		}

		c.log.WithFields(logrus.Fields{
			"page":    page,
			"attempt": fmt.Sprintf("%d/%d", attempt, c.policy.MaxRetries),
		}).WithError(lastErr).Warn("recognition attempt failed")

		if attempt < c.policy.MaxRetries {
			if err := sleep(ctx, c.policy.Pause); err != nil {
				return nil, err
			}
		}
	}

	c.log.WithField("page", page).Errorf("failed to extract text after %d attempts", c.policy.MaxRetries)
	return nil, fmt.Errorf("%w: page %d, %d attempts: %v", ErrRecognitionExhausted, page, c.policy.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
