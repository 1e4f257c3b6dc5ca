package healthstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

func newTestRouter(t *testing.T) (chi.Router, *SQLiteStore) {
	t.Helper()

	backend := newTestStore(t, SQLiteOptions{})
	r := chi.NewRouter()
	NewAPI(sl.Discard(), backend).Register(r)
	return r, backend
}

func TestAPI_Ingest(t *testing.T) {
	r, backend := newTestRouter(t)

	body, err := json.Marshal([]model.Sample{heartRate(64, time.Now())})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/samples", bytes.NewReader(body)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	count, err := backend.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAPI_IngestRejectsUnknownMetric(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	body := `[{"id":"x","type":"glucose","quantity":{"value":5,"unit":"count"}}]`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/samples", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UnknownMetricPath(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples/glucose", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SamplesEmptyIsArray(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/samples/heart_rate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPI_StatisticsBadRange(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/statistics/step_count?start=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Changes(t *testing.T) {
	r, backend := newTestRouter(t)

	require.NoError(t, backend.Add(context.Background(), heartRate(60, time.Now())))
	require.NoError(t, backend.Add(context.Background(), heartRate(61, time.Now())))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/changes/heart_rate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"anchor":2}`, rec.Body.String())
}

func TestAPI_IngestAssignsMissingIDs(t *testing.T) {
	r, backend := newTestRouter(t)

	body := `[{"type":"step_count","quantity":{"value":12,"unit":"count"},"start":"2026-01-01T10:00:00Z","end":"2026-01-01T10:01:00Z"}]`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/samples", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	got, err := backend.Samples(context.Background(), model.StepCount)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
}
