package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/RowanDark/internpool/ratelimit"
)

const (
	defaultAttemptTimeout = 15 * time.Second
	defaultAttempts       = 3
)

// errRetryable marks a delivery failure worth another attempt.
var errRetryable = errors.New("retryable webhook failure")

// newClient returns the client used when Options.Client is nil. The overall
// deadline is enforced per attempt by deliver, not by the client.
func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          2,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   timeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// deliver posts data until an attempt succeeds, a non-retryable status comes
// back, ctx ends or the attempts run out. Every attempt first takes a limiter
// token, which also spaces out retries.
func (n *Notifier) deliver(ctx context.Context, event string, data []byte) (int, error) {
	var err error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if waitErr := n.limiter.Acquire(ctx); waitErr != nil {
			return attempt - 1, fmt.Errorf("wait for webhook slot: %w", waitErr)
		}
		err = n.attempt(ctx, event, data, attempt)
		if err == nil || !errors.Is(err, errRetryable) {
			return attempt, err
		}
	}
	return n.attempts, fmt.Errorf("webhook gave up after %d attempts: %w", n.attempts, err)
}

func (n *Notifier) attempt(ctx context.Context, event string, data []byte, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, n.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "internpool-webhook/1.0")
	req.Header.Set("X-Internpool-Event", event)
	req.Header.Set("X-Internpool-Attempt", strconv.Itoa(attempt))
	if n.secret != "" {
		req.Header.Set("X-Internpool-Signature", Signature(n.secret, data))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w: %w", errRetryable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook responded with status %s: %w", resp.Status, errRetryable)
	default:
		return fmt.Errorf("webhook responded with status %s", resp.Status)
	}
}

// pacing reports the limiter state for delivery logs.
func pacing(l *ratelimit.Limiter) string {
	if l == nil {
		return "unpaced"
	}
	st := l.Status()
	return fmt.Sprintf("%.1f/s, %.0f slots left", st.Rate, st.Remaining)
}
