package monitor

import (
	"sync"
	"time"

	"github.com/speedwagon-io/vitals/internal/model"
)

// State holds the values currently on screen. Each metric owns its field.
type State struct {
	mu        sync.RWMutex
	values    map[model.MetricType]float64
	updated   map[model.MetricType]time.Time
	connected bool
}

func NewState() *State {
	return &State{
		values:  make(map[model.MetricType]float64),
		updated: make(map[model.MetricType]time.Time),
	}
}

type Snapshot struct {
	HeartRate float64              `json:"heart_rate"`
	HRV       float64              `json:"hrv"`
	Steps     float64              `json:"steps"`
	Connected bool                 `json:"connected"`
	UpdatedAt map[string]time.Time `json:"updated_at,omitempty"`
}

func (s *State) Set(t model.MetricType, value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[t] = value
	s.updated[t] = at
}

func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		HeartRate: s.values[model.HeartRate],
		HRV:       s.values[model.HeartRateVariability],
		Steps:     s.values[model.StepCount],
		Connected: s.connected,
	}
	if len(s.updated) > 0 {
		snap.UpdatedAt = make(map[string]time.Time, len(s.updated))
		for t, at := range s.updated {
			snap.UpdatedAt[string(t)] = at
		}
	}
	return snap
}
