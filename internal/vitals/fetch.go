// Package vitals turns raw samples from a health store into display values.
package vitals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/speedwagon-io/vitals/internal/healthstore"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

type Fetcher struct {
	log   *slog.Logger
	store healthstore.Store
	now   func() time.Time
}

func NewFetcher(log *slog.Logger, store healthstore.Store) *Fetcher {
	return &Fetcher{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

// MostRecent returns the sample with the latest end time. On equal end
// times the earliest one in batch order wins.
func MostRecent(samples []model.Sample) (model.Sample, bool) {
	if len(samples) == 0 {
		return model.Sample{}, false
	}

	latest := samples[0]
	for _, s := range samples[1:] {
		if latest.End.Before(s.End) {
			latest = s
		}
	}
	return latest, true
}

// Latest reads every sample of t and converts the most recent one to the
// metric's display unit. ok is false when there is nothing to show.
func (f *Fetcher) Latest(ctx context.Context, t model.MetricType) (model.Reading, bool, error) {
	samples, err := f.store.Samples(ctx, t)
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("failed to query %s samples: %w", t, err)
	}

	sample, ok := MostRecent(samples)
	if !ok {
		return model.Reading{}, false, nil
	}

	unit := t.DisplayUnit()
	value, err := sample.Quantity.ValueIn(unit)
	if err != nil {
		f.log.Debug("dropping unconvertible sample",
			slog.String("metric", string(t)),
			slog.String("id", sample.ID),
			sl.Err(err),
		)
		return model.Reading{}, false, nil
	}

	return model.Reading{Type: t, Value: value, Unit: unit, At: sample.End}, true, nil
}

func (f *Fetcher) LatestHeartRate(ctx context.Context) (float64, bool, error) {
	r, ok, err := f.Latest(ctx, model.HeartRate)
	return r.Value, ok, err
}

func (f *Fetcher) LatestHRV(ctx context.Context) (float64, bool, error) {
	r, ok, err := f.Latest(ctx, model.HeartRateVariability)
	return r.Value, ok, err
}

// StepsToday sums step samples from local midnight until now. Any failure
// or missing result yields 0.
func (f *Fetcher) StepsToday(ctx context.Context) float64 {
	now := f.now()
	start := StartOfDay(now)

	sum, err := f.store.CumulativeSum(ctx, model.StepCount, start, now)
	if err != nil {
		f.log.Debug("step count query failed", sl.Err(err))
		return 0
	}
	if sum == nil {
		return 0
	}

	value, err := sum.ValueIn(model.UnitCount)
	if err != nil {
		f.log.Debug("step count not convertible", sl.Err(err))
		return 0
	}
	return value
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
