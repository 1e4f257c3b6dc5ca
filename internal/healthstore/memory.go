package healthstore

import (
	"context"
	"sync"
	"time"

	"github.com/speedwagon-io/vitals/internal/model"
)

// MemoryStore keeps samples in process memory, in insertion order.
type MemoryStore struct {
	mu        sync.RWMutex
	samples   map[model.MetricType][]model.Sample
	available bool
	granted   bool
	authErr   error
	queryErr  error
	subs      map[model.MetricType]map[chan Notification]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:   make(map[model.MetricType][]model.Sample),
		available: true,
		granted:   true,
		subs:      make(map[model.MetricType]map[chan Notification]struct{}),
	}
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// SetAuthorization fixes the outcome of RequestAuthorization.
func (s *MemoryStore) SetAuthorization(granted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = granted
	s.authErr = err
}

// FailQueries makes Samples and CumulativeSum return err until reset with nil.
func (s *MemoryStore) FailQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

func (s *MemoryStore) Available(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *MemoryStore) RequestAuthorization(ctx context.Context, types []model.MetricType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.available {
		return false, ErrUnavailable
	}
	return s.granted, s.authErr
}

func (s *MemoryStore) Add(ctx context.Context, samples ...model.Sample) error {
	touched := make(map[model.MetricType]struct{})

	s.mu.Lock()
	for _, sample := range samples {
		if _, err := model.ParseMetricType(string(sample.Type)); err != nil {
			s.mu.Unlock()
			return err
		}
		s.samples[sample.Type] = append(s.samples[sample.Type], sample)
		touched[sample.Type] = struct{}{}
	}
	s.mu.Unlock()

	for t := range touched {
		s.Trigger(Notification{Type: t})
	}
	return nil
}

// Trigger delivers n to every observer of n.Type. Observers that are too far
// behind miss it.
func (s *MemoryStore) Trigger(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs[n.Type] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (s *MemoryStore) Samples(ctx context.Context, t model.MetricType) ([]model.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	out := make([]model.Sample, len(s.samples[t]))
	copy(out, s.samples[t])
	return out, nil
}

func (s *MemoryStore) CumulativeSum(ctx context.Context, t model.MetricType, start, end time.Time) (*model.Quantity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	target := t.DisplayUnit()
	var (
		sum   float64
		found bool
	)
	for _, sample := range s.samples[t] {
		if sample.Start.Before(start) || !sample.Start.Before(end) {
			continue
		}
		v, err := sample.Quantity.ValueIn(target)
		if err != nil {
			return nil, err
		}
		sum += v
		found = true
	}

	if !found {
		return nil, nil
	}
	return &model.Quantity{Value: sum, Unit: target}, nil
}

func (s *MemoryStore) Observe(ctx context.Context, t model.MetricType) <-chan Notification {
	in := make(chan Notification, 16)
	out := make(chan Notification)

	s.mu.Lock()
	if s.subs[t] == nil {
		s.subs[t] = make(map[chan Notification]struct{})
	}
	s.subs[t][in] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs[t], in)
			s.mu.Unlock()
		}()

		if !notify(ctx, out, Notification{Type: t}) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-in:
				if !notify(ctx, out, n) {
					return
				}
			}
		}
	}()

	return out
}

// Observers reports how many watchers are registered for t.
func (s *MemoryStore) Observers(t model.MetricType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[t])
}
