package healthstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/vitals/internal/lib/backoff"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

// RemoteStore reads from a health-data API served by API.
type RemoteStore struct {
	log          *slog.Logger
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	backoff      *backoff.Exponential
}

func NewRemoteStore(log *slog.Logger, baseURL string, timeout, pollInterval time.Duration, b *backoff.Exponential) *RemoteStore {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if b == nil {
		b = backoff.NewExponential(time.Second, time.Minute)
	}

	return &RemoteStore{
		log:          log,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
		backoff:      b,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *RemoteStore) Name() string {
	return "http"
}

func (s *RemoteStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteStore) Available(ctx context.Context) bool {
	var resp statusResponse
	if err := s.do(ctx, http.MethodGet, "/v1/status", nil, &resp); err != nil {
		s.log.Debug("health data status check failed", sl.Err(err))
		return false
	}
	return resp.Available
}

func (s *RemoteStore) RequestAuthorization(ctx context.Context, types []model.MetricType) (bool, error) {
	var resp authorizationResponse
	if err := s.do(ctx, http.MethodPost, "/v1/authorization", authorizationRequest{Types: types}, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return resp.Success, fmt.Errorf("authorization: %s", resp.Error)
	}
	return resp.Success, nil
}

// remoteSample tolerates quantity values encoded as JSON strings.
type remoteSample struct {
	ID       string           `json:"id"`
	Type     model.MetricType `json:"type"`
	Quantity struct {
		Value any        `json:"value"`
		Unit  model.Unit `json:"unit"`
	} `json:"quantity"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"`
}

func (s *RemoteStore) Samples(ctx context.Context, t model.MetricType) ([]model.Sample, error) {
	var raw []remoteSample
	if err := s.do(ctx, http.MethodGet, "/v1/samples/"+url.PathEscape(string(t)), nil, &raw); err != nil {
		return nil, err
	}

	samples := make([]model.Sample, 0, len(raw))
	for _, r := range raw {
		value, ok := s.toFloat(r.Quantity.Value)
		if !ok {
			s.log.Debug("skipping sample with unreadable value",
				slog.String("id", r.ID),
				slog.String("metric", string(t)),
			)
			continue
		}

		samples = append(samples, model.Sample{
			ID:       r.ID,
			Type:     r.Type,
			Quantity: model.Quantity{Value: value, Unit: r.Quantity.Unit},
			Start:    r.Start,
			End:      r.End,
			Source:   r.Source,
		})
	}

	return samples, nil
}

func (s *RemoteStore) CumulativeSum(ctx context.Context, t model.MetricType, start, end time.Time) (*model.Quantity, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339Nano))
	q.Set("end", end.Format(time.RFC3339Nano))

	var resp statisticsResponse
	path := "/v1/statistics/" + url.PathEscape(string(t)) + "?" + q.Encode()
	if err := s.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sum, nil
}

func (s *RemoteStore) anchor(ctx context.Context, t model.MetricType) (int64, error) {
	var resp changesResponse
	if err := s.do(ctx, http.MethodGet, "/v1/changes/"+url.PathEscape(string(t)), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Anchor, nil
}

// Observe polls the change anchor. Failed polls are reported and retried
// with exponential backoff.
func (s *RemoteStore) Observe(ctx context.Context, t model.MetricType) <-chan Notification {
	out := make(chan Notification)

	go func() {
		defer close(out)

		var (
			last     int64
			seen     bool
			failures int
		)

		for {
			anchor, err := s.anchor(ctx, t)
			wait := s.pollInterval

			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				wait = s.backoff.NextDelay(failures)
				failures++
				if !notify(ctx, out, Notification{Type: t, Err: err}) {
					return
				}
			default:
				failures = 0
				if !seen || anchor != last {
					seen = true
					last = anchor
					if !notify(ctx, out, Notification{Type: t}) {
						return
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()

	return out
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (s *RemoteStore) toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			s.log.Debug("failed to parse float", slog.String("value", val), sl.Err(err))
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
