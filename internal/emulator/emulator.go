// Package emulator produces synthetic wearable samples.
package emulator

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
	"github.com/speedwagon-io/vitals/internal/sender"
)

// Generator walks heart rate and HRV around resting values and accumulates
// steps. Not safe for concurrent use.
type Generator struct {
	rnd       *rand.Rand
	source    string
	heartRate float64
	hrv       float64
}

func NewGenerator(seed int64, source string) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rnd:       rand.New(rand.NewSource(seed)),
		source:    source,
		heartRate: 68,
		hrv:       0.045,
	}
}

// Next returns one sample per metric covering the period ending at end.
// HRV is reported in seconds, as wearables store SDNN.
func (g *Generator) Next(end time.Time, period time.Duration) []model.Sample {
	start := end.Add(-period)

	g.heartRate = clamp(g.heartRate+g.rnd.NormFloat64()*2, 45, 180)
	g.hrv = clamp(g.hrv+g.rnd.NormFloat64()*0.003, 0.010, 0.150)
	steps := math.Round(math.Max(0, g.rnd.NormFloat64()*10+period.Seconds()*0.8))

	return []model.Sample{
		model.NewSample(model.HeartRate, model.Quantity{Value: math.Round(g.heartRate), Unit: model.UnitCountPerMinute}, end, end, g.source),
		model.NewSample(model.HeartRateVariability, model.Quantity{Value: g.hrv, Unit: model.UnitSecond}, start, end, g.source),
		model.NewSample(model.StepCount, model.Quantity{Value: steps, Unit: model.UnitCount}, start, end, g.source),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// Run generates a batch every interval and hands it to s until ctx is done.
func Run(ctx context.Context, log *slog.Logger, g *Generator, s sender.Sender, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emit := func(now time.Time) {
		samples := g.Next(now, interval)
		if err := s.Send(ctx, samples); err != nil {
			log.Error("failed to send samples", slog.Int("count", len(samples)), sl.Err(err))
			return
		}
		log.Debug("samples sent", slog.Int("count", len(samples)))
	}

	emit(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			emit(now)
		}
	}
}
