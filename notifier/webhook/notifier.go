package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RowanDark/internpool/ratelimit"
	"github.com/RowanDark/internpool/report"
)

// Event names sent in the payload and the X-Internpool-Event header.
const (
	EventRoundMismatch = "stress.mismatch"
	EventCompleted     = "stress.completed"
)

// Options configures the webhook notifier.
type Options struct {
	Endpoint string
	Secret   string
	Client   *http.Client
	Logger   io.Writer

	// Limiter paces delivery attempts, retries included. Nil sends unpaced.
	Limiter *ratelimit.Limiter
	// Attempts bounds deliveries per event; 3 when not positive.
	Attempts int
	// AttemptTimeout bounds each attempt; 15s when not positive.
	AttemptTimeout time.Duration
}

// Notifier delivers stress run events to a configured webhook endpoint.
type Notifier struct {
	endpoint       string
	secret         string
	client         *http.Client
	logger         io.Writer
	limiter        *ratelimit.Limiter
	attempts       int
	attemptTimeout time.Duration
}

type payload struct {
	Event   string     `json:"event"`
	Run     report.Run `json:"run"`
	SentAt  time.Time  `json:"sent_at"`
	Version string     `json:"version"`
}

// New initialises a webhook notifier. It returns nil when the endpoint is empty.
func New(opts Options) (*Notifier, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("webhook endpoint must be an absolute URL")
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	client := opts.Client
	if client == nil {
		client = newClient(timeout)
	}

	return &Notifier{
		endpoint:       endpoint,
		secret:         strings.TrimSpace(opts.Secret),
		client:         client,
		logger:         opts.Logger,
		limiter:        opts.Limiter,
		attempts:       attempts,
		attemptTimeout: timeout,
	}, nil
}

// Signature returns the hex HMAC-SHA256 of body under secret, as sent in the
// X-Internpool-Signature header.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify posts run to the webhook endpoint under event.
func (n *Notifier) Notify(ctx context.Context, event string, run report.Run) error {
	if n == nil {
		return nil
	}

	body := payload{
		Event:   event,
		Run:     run,
		SentAt:  time.Now().UTC(),
		Version: "1",
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	attempts, err := n.deliver(ctx, event, data)
	if err != nil {
		return err
	}

	n.logf("Webhook delivered for %s (%s, attempt %d, %s)\n", run.Label, event, attempts, pacing(n.limiter))
	return nil
}

func (n *Notifier) logf(format string, args ...interface{}) {
	if n == nil || n.logger == nil {
		return
	}
	fmt.Fprintf(n.logger, format, args...)
}
