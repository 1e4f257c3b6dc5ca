package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

// Server serves the health endpoints next to any routes registered with
// AddRoutes before Start.
type Server struct {
	log      *slog.Logger
	address  string
	server   *http.Server
	checkers []HealthChecker
	routes   []func(r chi.Router)
	mu       sync.RWMutex
}

func NewServer(log *slog.Logger, address string) *Server {
	return &Server{
		log:      log,
		address:  address,
		checkers: make([]HealthChecker, 0),
	}
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

func (s *Server) AddRoutes(register func(r chi.Router)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, register)
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	s.mu.RLock()
	for _, register := range s.routes {
		register(r)
	}
	s.mu.RUnlock()

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting http server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make([]HealthChecker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// StoreHealthChecker reports whether the health-data store can be read.
type StoreHealthChecker struct {
	name          string
	availableFunc func(ctx context.Context) bool
}

func NewStoreHealthChecker(name string, availableFunc func(ctx context.Context) bool) *StoreHealthChecker {
	return &StoreHealthChecker{name: name, availableFunc: availableFunc}
}

func (c *StoreHealthChecker) Name() string {
	return "store:" + c.name
}

func (c *StoreHealthChecker) Check(ctx context.Context) (Status, string) {
	if !c.availableFunc(ctx) {
		return StatusUnhealthy, "health data unavailable"
	}
	return StatusHealthy, ""
}

// ConnectionHealthChecker degrades when read access was not granted.
type ConnectionHealthChecker struct {
	connectedFunc func() bool
}

func NewConnectionHealthChecker(connectedFunc func() bool) *ConnectionHealthChecker {
	return &ConnectionHealthChecker{connectedFunc: connectedFunc}
}

func (c *ConnectionHealthChecker) Name() string {
	return "authorization"
}

func (c *ConnectionHealthChecker) Check(ctx context.Context) (Status, string) {
	if !c.connectedFunc() {
		return StatusDegraded, "not connected"
	}
	return StatusHealthy, ""
}

type SampleCountHealthChecker struct {
	countFunc func(ctx context.Context) (int64, error)
}

func NewSampleCountHealthChecker(countFunc func(ctx context.Context) (int64, error)) *SampleCountHealthChecker {
	return &SampleCountHealthChecker{countFunc: countFunc}
}

func (c *SampleCountHealthChecker) Name() string {
	return "samples"
}

func (c *SampleCountHealthChecker) Check(ctx context.Context) (Status, string) {
	count, err := c.countFunc(ctx)
	if err != nil {
		return StatusUnhealthy, err.Error()
	}

	if count == 0 {
		return StatusDegraded, "no samples stored"
	}

	return StatusHealthy, ""
}
