package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/speedwagon-io/vitals/internal/config"
	"github.com/speedwagon-io/vitals/internal/lib/backoff"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

// Sender ships samples to a health-data API.
type Sender interface {
	Send(ctx context.Context, samples []model.Sample) error
	Health(ctx context.Context) error
}

type HTTPSender struct {
	log         *slog.Logger
	baseURL     string
	client      *http.Client
	maxAttempts int
	backoff     *backoff.Exponential
}

func NewHTTPSender(log *slog.Logger, cfg *config.SenderConfig) *HTTPSender {
	return &HTTPSender{
		log:         log,
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		maxAttempts: cfg.Retry.MaxAttempts,
		backoff:     backoff.NewExponential(cfg.Retry.InitialDelay, cfg.Retry.MaxDelay),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *HTTPSender) Send(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) sendWithRetry(ctx context.Context, data []byte) error {
	attempts := s.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.doSend(ctx, data)
		if err == nil {
			return nil
		}

		lastErr = err
		s.log.Warn("send attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			sl.Err(err),
		)

		if attempt < attempts {
			if err := s.backoff.Wait(ctx, attempt-1); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func (s *HTTPSender) doSend(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/samples", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

func (s *HTTPSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/status", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs samples instead of sending them (for dry runs)
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, samples []model.Sample) error {
	for _, sample := range samples {
		s.log.Info("SEND",
			slog.String("id", sample.ID),
			slog.String("metric", string(sample.Type)),
			slog.Float64("value", sample.Quantity.Value),
			slog.String("unit", string(sample.Quantity.Unit)),
			slog.Time("end", sample.End),
		)
	}
	return nil
}

func (s *LogSender) Health(ctx context.Context) error {
	return nil
}
