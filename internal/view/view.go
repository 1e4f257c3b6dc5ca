// Package view renders the display state as a single page and as JSON.
package view

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/monitor"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>Vitals</title>
</head>
<body>
<p>{{.HeartRate}}</p>
<p>{{.HRV}}</p>
<p>{{.Status}}</p>
</body>
</html>
`))

type Lines struct {
	HeartRate string
	HRV       string
	Status    string
}

// Render formats a snapshot the way the screen shows it.
func Render(s monitor.Snapshot) Lines {
	status := "Not connected"
	if s.Connected {
		status = "connected"
	}

	return Lines{
		HeartRate: fmt.Sprintf("Current Heart Rate: %d", int(s.HeartRate)),
		HRV:       fmt.Sprintf("Current HRV: %.2f", s.HRV),
		Status:    status,
	}
}

type Handler struct {
	log     *slog.Logger
	state   *monitor.State
	refresh int
}

// NewHandler serves state; the page reloads every refreshSeconds.
func NewHandler(log *slog.Logger, state *monitor.State, refreshSeconds int) *Handler {
	if refreshSeconds <= 0 {
		refreshSeconds = 2
	}
	return &Handler{log: log, state: state, refresh: refreshSeconds}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Get("/api/state", h.handleState)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Lines
		Refresh int
	}{
		Lines:   Render(h.state.Snapshot()),
		Refresh: h.refresh,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		h.log.Error("failed to render page", sl.Err(err))
	}
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.state.Snapshot()); err != nil {
		h.log.Error("failed to encode state", sl.Err(err))
	}
}
