package healthstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

// Backend is a store that also accepts writes and exposes change anchors.
type Backend interface {
	Store
	Add(ctx context.Context, samples ...model.Sample) error
	Anchor(ctx context.Context, t model.MetricType) (int64, error)
}

type authorizationRequest struct {
	Types []model.MetricType `json:"types"`
}

type authorizationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type statisticsResponse struct {
	Sum *model.Quantity `json:"sum"`
}

type changesResponse struct {
	Anchor int64 `json:"anchor"`
}

type statusResponse struct {
	Available bool `json:"available"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves a Backend over HTTP so RemoteStore can read from it.
type API struct {
	log     *slog.Logger
	backend Backend
}

func NewAPI(log *slog.Logger, backend Backend) *API {
	return &API{log: log, backend: backend}
}

func (a *API) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/authorization", a.handleAuthorization)
		r.Post("/samples", a.handleIngest)
		r.Get("/samples/{type}", a.handleSamples)
		r.Get("/statistics/{type}", a.handleStatistics)
		r.Get("/changes/{type}", a.handleChanges)
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Available: a.backend.Available(r.Context())})
}

func (a *API) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	var req authorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	for _, t := range req.Types {
		if _, err := model.ParseMetricType(string(t)); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	ok, err := a.backend.RequestAuthorization(r.Context(), req.Types)
	resp := authorizationResponse{Success: ok}
	if err != nil {
		a.log.Debug("authorization failed", sl.Err(err))
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var samples []model.Sample
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.backend.Add(r.Context(), samples...); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrUnknownMetric) || errors.Is(err, model.ErrIncompatibleUnit) {
			status = http.StatusBadRequest
		}
		a.log.Error("failed to ingest samples", slog.Int("count", len(samples)), sl.Err(err))
		writeError(w, status, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleSamples(w http.ResponseWriter, r *http.Request) {
	t, ok := metricParam(w, r)
	if !ok {
		return
	}

	samples, err := a.backend.Samples(r.Context(), t)
	if err != nil {
		a.log.Error("failed to query samples", slog.String("metric", string(t)), sl.Err(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if samples == nil {
		samples = []model.Sample{}
	}

	writeJSON(w, http.StatusOK, samples)
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	t, ok := metricParam(w, r)
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sum, err := a.backend.CumulativeSum(r.Context(), t, start, end)
	if err != nil {
		a.log.Error("failed to query statistics", slog.String("metric", string(t)), sl.Err(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, statisticsResponse{Sum: sum})
}

func (a *API) handleChanges(w http.ResponseWriter, r *http.Request) {
	t, ok := metricParam(w, r)
	if !ok {
		return
	}

	anchor, err := a.backend.Anchor(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, changesResponse{Anchor: anchor})
}

func metricParam(w http.ResponseWriter, r *http.Request) (model.MetricType, bool) {
	t, err := model.ParseMetricType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return "", false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
