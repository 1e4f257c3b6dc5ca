package healthstore

import (
	"context"
	"errors"
	"time"

	"github.com/speedwagon-io/vitals/internal/model"
)

var ErrUnavailable = errors.New("health data unavailable")

// Notification marks one detected update batch for a metric type.
// A non-nil Err means the watcher failed for this batch.
type Notification struct {
	Type model.MetricType
	Err  error
}

// Store is the health-data service the application reads from.
type Store interface {
	// Available reports whether health data can be read at all.
	Available(ctx context.Context) bool
	RequestAuthorization(ctx context.Context, types []model.MetricType) (bool, error)
	// Samples returns every stored sample of the type, in no particular order.
	Samples(ctx context.Context, t model.MetricType) ([]model.Sample, error)
	// CumulativeSum sums samples whose start lies in [start, end).
	// It returns nil when nothing matched.
	CumulativeSum(ctx context.Context, t model.MetricType, start, end time.Time) (*model.Quantity, error)
	// Observe emits once on registration and once per update batch until ctx is done.
	Observe(ctx context.Context, t model.MetricType) <-chan Notification
	Name() string
	Close() error
}

func notify(ctx context.Context, ch chan<- Notification, n Notification) bool {
	select {
	case ch <- n:
		return true
	case <-ctx.Done():
		return false
	}
}
