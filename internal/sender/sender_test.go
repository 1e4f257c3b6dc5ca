package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/vitals/internal/config"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

func testConfig(url string, attempts int) *config.SenderConfig {
	return &config.SenderConfig{
		URL:     url,
		Timeout: time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:  attempts,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

func testSamples() []model.Sample {
	now := time.Now()
	return []model.Sample{
		model.NewSample(model.HeartRate, model.Quantity{Value: 66, Unit: model.UnitCountPerMinute}, now, now, "test"),
	}
}

func TestHTTPSender_Send(t *testing.T) {
	var got []model.Sample
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/samples", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(sl.Discard(), testConfig(srv.URL, 3))
	samples := testSamples()

	require.NoError(t, s.Send(context.Background(), samples))
	require.Len(t, got, 1)
	assert.Equal(t, samples[0].ID, got[0].ID)
}

func TestHTTPSender_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(sl.Discard(), testConfig(srv.URL, 5))
	require.NoError(t, s.Send(context.Background(), testSamples()))
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPSender_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPSender(sl.Discard(), testConfig(srv.URL, 2))
	err := s.Send(context.Background(), testSamples())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTPSender_EmptyBatch(t *testing.T) {
	s := NewHTTPSender(sl.Discard(), testConfig("http://127.0.0.1:1", 1))
	assert.NoError(t, s.Send(context.Background(), nil))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(sl.Discard())
	assert.NoError(t, s.Send(context.Background(), testSamples()))
	assert.NoError(t, s.Health(context.Background()))
}
