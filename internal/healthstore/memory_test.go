package healthstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/vitals/internal/model"
)

func TestMemoryStore_PreservesInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	a, b := heartRate(60, now), heartRate(70, now)
	require.NoError(t, s.Add(ctx, a, b))

	got, err := s.Samples(ctx, model.HeartRate)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestMemoryStore_FailQueries(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.FailQueries(boom)

	_, err := s.Samples(context.Background(), model.HeartRate)
	assert.ErrorIs(t, err, boom)

	_, err = s.CumulativeSum(context.Background(), model.StepCount, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStore_ObserveAndTrigger(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Observe(ctx, model.HeartRateVariability)
	<-ch
	assert.Equal(t, 1, s.Observers(model.HeartRateVariability))

	boom := errors.New("watch failed")
	s.Trigger(Notification{Type: model.HeartRateVariability, Err: boom})
	n := <-ch
	assert.ErrorIs(t, n.Err, boom)

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, s.Observers(model.HeartRateVariability))
}

func TestMemoryStore_Unavailable(t *testing.T) {
	s := NewMemoryStore()
	s.SetAvailable(false)

	ok, err := s.RequestAuthorization(context.Background(), []model.MetricType{model.HeartRate})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnavailable)
}
