package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

const defaultIcon = "https://cdn-icons-png.flaticon.com/512/2907/2907253.png"

type barkPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Icon      string `json:"icon"`
	Level     string `json:"level"`
	IsArchive int    `json:"isArchive"`
}

// Bark pushes cycle reports to a Bark server.
type Bark struct {
	pushURL    string
	enabled    bool
	maxRetries uint64
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	log        *zap.Logger
}

type BarkOption func(*Bark)

func WithHTTPClient(c *http.Client) BarkOption { return func(b *Bark) { b.httpClient = c } }

func WithBackOff(f func() backoff.BackOff) BarkOption { return func(b *Bark) { b.newBackOff = f } }

func NewBark(pushURL string, enabled bool, timeout time.Duration, maxRetries uint64, log *zap.Logger, opts ...BarkOption) *Bark {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bark{
		pushURL:    pushURL,
		enabled:    enabled,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:        log,
	}
	for _, o := range opts {
		o(b)
	}
	log.Info("bark notifier initialized", zap.String("url", pushURL), zap.Bool("enabled", enabled))
	return b
}

func (b *Bark) Notify(ctx context.Context, r domain.CycleReport) error {
	if !b.enabled {
		return domain.ErrNotifyDisabled
	}
	var errs []error
	for _, m := range Messages(r) {
		if err := b.Send(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Title, err))
		}
	}
	return errors.Join(errs...)
}

// Send posts one message, retrying transport errors and 5xx responses.
func (b *Bark) Send(ctx context.Context, m Message) error {
	if !b.enabled {
		return domain.ErrNotifyDisabled
	}
	payload, err := json.Marshal(barkPayload{Title: m.Title, Body: m.Body, Icon: defaultIcon, Level: m.Level, IsArchive: 1})
	if err != nil {
		return err
	}

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.pushURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("bark returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b.newBackOff(), b.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		b.log.Debug("retrying bark push", zap.String("title", m.Title), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		b.log.Warn("notification failed", zap.String("title", m.Title), zap.Error(err))
		return err
	}
	b.log.Info("notification sent", zap.String("title", m.Title))
	return nil
}
