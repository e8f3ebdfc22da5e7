package ocr

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// newStreamingHTTPClient bounds connecting and waiting for response headers
// but not the total body read; streams are bounded per read by
// withIdleTimeout instead.
func newStreamingHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// withIdleTimeout derives a context that is canceled with ErrIdleTimeout when
// touch is not called for longer than timeout. stop releases the timer.
func withIdleTimeout(parent context.Context, timeout time.Duration) (ctx context.Context, touch func(), stop func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if timeout <= 0 {
		return ctx, func() {}, func() { cancel(nil) }
	}
	timer := time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) })
	touch = func() { timer.Reset(timeout) }
	stop = func() {
		timer.Stop()
		cancel(nil)
	}
	return ctx, touch, stop
}

// idleReason replaces err with ErrIdleTimeout when the idle timer fired.
func idleReason(ctx context.Context, timeout time.Duration, err error) error {
	if context.Cause(ctx) == ErrIdleTimeout {
		return fmt.Errorf("%w: no data for %s: %v", ErrIdleTimeout, timeout, err)
	}
	return err
}
