package vitals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/vitals/internal/healthstore"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

var base = time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

func sample(t model.MetricType, v float64, u model.Unit, end time.Time) model.Sample {
	return model.NewSample(t, model.Quantity{Value: v, Unit: u}, end.Add(-time.Minute), end, "test")
}

func TestMostRecent(t *testing.T) {
	samples := []model.Sample{
		sample(model.HeartRate, 61, model.UnitCountPerMinute, base.Add(2*time.Minute)),
		sample(model.HeartRate, 75, model.UnitCountPerMinute, base.Add(5*time.Minute)),
		sample(model.HeartRate, 58, model.UnitCountPerMinute, base),
	}

	got, ok := MostRecent(samples)
	require.True(t, ok)
	assert.Equal(t, samples[1].ID, got.ID)
}

func TestMostRecent_Empty(t *testing.T) {
	_, ok := MostRecent(nil)
	assert.False(t, ok)
}

func TestMostRecent_TieKeepsFirst(t *testing.T) {
	first := sample(model.HeartRate, 70, model.UnitCountPerMinute, base)
	second := sample(model.HeartRate, 90, model.UnitCountPerMinute, base)

	got, ok := MostRecent([]model.Sample{first, second})
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
}

func newFetcher(store healthstore.Store) *Fetcher {
	f := NewFetcher(sl.Discard(), store)
	f.now = func() time.Time { return base }
	return f
}

func TestFetcher_LatestHeartRate(t *testing.T) {
	store := healthstore.NewMemoryStore()
	require.NoError(t, store.Add(context.Background(),
		sample(model.HeartRate, 72, model.UnitCountPerMinute, base.Add(-time.Hour)),
		sample(model.HeartRate, 60, model.UnitCountPerMinute, base),
	))

	v, ok, err := newFetcher(store).LatestHeartRate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60.0, v)
}

func TestFetcher_LatestHRVConvertsSeconds(t *testing.T) {
	store := healthstore.NewMemoryStore()
	require.NoError(t, store.Add(context.Background(),
		sample(model.HeartRateVariability, 45.0, model.UnitSecond, base),
	))

	v, ok, err := newFetcher(store).LatestHRV(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 45000.0, v, 1e-9)
}

func TestFetcher_EmptyYieldsNothing(t *testing.T) {
	f := newFetcher(healthstore.NewMemoryStore())

	_, ok, err := f.LatestHeartRate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.LatestHRV(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetcher_UnconvertibleSampleDropped(t *testing.T) {
	store := healthstore.NewMemoryStore()
	require.NoError(t, store.Add(context.Background(),
		sample(model.HeartRate, 3, model.UnitSecond, base),
	))

	_, ok, err := newFetcher(store).LatestHeartRate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetcher_QueryError(t *testing.T) {
	store := healthstore.NewMemoryStore()
	boom := errors.New("boom")
	store.FailQueries(boom)

	_, ok, err := newFetcher(store).LatestHeartRate(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestFetcher_StepsToday(t *testing.T) {
	store := healthstore.NewMemoryStore()
	midnight := StartOfDay(base)
	require.NoError(t, store.Add(context.Background(),
		model.NewSample(model.StepCount, model.Quantity{Value: 900, Unit: model.UnitCount}, midnight.Add(-time.Minute), midnight, "test"),
		model.NewSample(model.StepCount, model.Quantity{Value: 1200, Unit: model.UnitCount}, midnight.Add(time.Hour), midnight.Add(2*time.Hour), "test"),
		model.NewSample(model.StepCount, model.Quantity{Value: 300, Unit: model.UnitCount}, base.Add(-time.Minute), base, "test"),
	))

	assert.Equal(t, 1500.0, newFetcher(store).StepsToday(context.Background()))
}

func TestFetcher_StepsTodayDefaultsToZero(t *testing.T) {
	store := healthstore.NewMemoryStore()
	f := newFetcher(store)

	assert.Equal(t, 0.0, f.StepsToday(context.Background()))

	store.FailQueries(errors.New("boom"))
	assert.Equal(t, 0.0, f.StepsToday(context.Background()))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("plus2", 2*3600)
	got := StartOfDay(time.Date(2026, 1, 2, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, loc), got)
}
