package emulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

func TestGenerator_Next(t *testing.T) {
	g := NewGenerator(42, "emu")
	end := time.Now().UTC()

	for i := 0; i < 100; i++ {
		samples := g.Next(end, 5*time.Second)
		require.Len(t, samples, 3)

		byType := map[model.MetricType]model.Sample{}
		for _, s := range samples {
			byType[s.Type] = s
			assert.Equal(t, "emu", s.Source)
			assert.True(t, s.End.Equal(end))
		}

		hr := byType[model.HeartRate].Quantity
		assert.Equal(t, model.UnitCountPerMinute, hr.Unit)
		assert.GreaterOrEqual(t, hr.Value, 45.0)
		assert.LessOrEqual(t, hr.Value, 180.0)

		hrv := byType[model.HeartRateVariability].Quantity
		assert.Equal(t, model.UnitSecond, hrv.Unit)
		assert.GreaterOrEqual(t, hrv.Value, 0.010)

		assert.GreaterOrEqual(t, byType[model.StepCount].Quantity.Value, 0.0)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	end := time.Now()
	a := NewGenerator(7, "x").Next(end, time.Second)
	b := NewGenerator(7, "x").Next(end, time.Second)

	for i := range a {
		assert.Equal(t, a[i].Quantity, b[i].Quantity)
	}
}

type recordingSender struct {
	mu      sync.Mutex
	batches [][]model.Sample
}

func (r *recordingSender) Send(ctx context.Context, samples []model.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, samples)
	return nil
}

func (r *recordingSender) Health(ctx context.Context) error { return nil }

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recordingSender{}

	done := make(chan struct{})
	go func() {
		Run(ctx, sl.Discard(), NewGenerator(1, "emu"), rec, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
