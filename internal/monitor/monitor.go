package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/speedwagon-io/vitals/internal/healthstore"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
	"github.com/speedwagon-io/vitals/internal/vitals"
)

type Options struct {
	// Watch lists the metrics that get a long-lived watcher.
	Watch []model.MetricType
	// Authorize lists the metrics whose read access decides the connection status.
	Authorize []model.MetricType
}

// Monitor wires store watchers to the display state. The connection status
// and the watchers are independent: watchers run whatever the outcome of
// authorization.
type Monitor struct {
	log     *slog.Logger
	store   healthstore.Store
	fetcher *vitals.Fetcher
	state   *State
	opts    Options
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewMonitor(
	log *slog.Logger,
	store healthstore.Store,
	fetcher *vitals.Fetcher,
	state *State,
	opts Options,
) *Monitor {
	if len(opts.Watch) == 0 {
		opts.Watch = model.MetricTypes()
	}
	if len(opts.Authorize) == 0 {
		opts.Authorize = []model.MetricType{model.HeartRate}
	}

	return &Monitor{
		log:     log,
		store:   store,
		fetcher: fetcher,
		state:   state,
		opts:    opts,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

// Start registers the watchers, checks the connection and blocks until ctx
// is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info("starting monitor",
		slog.String("store", m.store.Name()),
		slog.Int("watchers", len(m.opts.Watch)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, t := range m.opts.Watch {
		m.wg.Add(1)
		go m.watch(ctx, t)
	}

	m.CheckConnection(ctx)
	m.SetUpStepCount(ctx)

	select {
	case <-ctx.Done():
		m.log.Info("context cancelled, stopping monitor")
	case <-m.stopCh:
		m.log.Info("stop signal received, stopping monitor")
	}

	cancel()
	m.wg.Wait()
}

func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

// CheckConnection requests read access and records the outcome.
func (m *Monitor) CheckConnection(ctx context.Context) bool {
	if !m.store.Available(ctx) {
		m.log.Debug("health data not available")
		m.state.SetConnected(false)
		return false
	}

	ok, err := m.store.RequestAuthorization(ctx, m.opts.Authorize)
	if err != nil {
		m.log.Debug("authorization request failed", sl.Err(err))
	}

	m.state.SetConnected(ok)
	m.log.Info("health data connection checked", slog.Bool("connected", ok))
	return ok
}

// SetUpStepCount asks for step-count access and reads today's steps once
// when it is granted.
func (m *Monitor) SetUpStepCount(ctx context.Context) {
	if !m.store.Available(ctx) {
		return
	}

	ok, err := m.store.RequestAuthorization(ctx, []model.MetricType{model.StepCount})
	if err != nil {
		m.log.Debug("step count authorization failed", sl.Err(err))
		return
	}
	if ok {
		m.refresh(ctx, model.StepCount)
	}
}

func (m *Monitor) watch(ctx context.Context, t model.MetricType) {
	defer m.wg.Done()

	for n := range m.store.Observe(ctx, t) {
		if n.Err != nil {
			m.log.Error("error receiving updates",
				slog.String("metric", string(t)),
				sl.Err(n.Err),
			)
			continue
		}
		m.refresh(ctx, t)
	}
}

func (m *Monitor) refresh(ctx context.Context, t model.MetricType) {
	if t == model.StepCount {
		m.state.Set(t, m.fetcher.StepsToday(ctx), m.now())
		return
	}

	reading, ok, err := m.fetcher.Latest(ctx, t)
	if err != nil {
		m.log.Debug("failed to fetch latest sample",
			slog.String("metric", string(t)),
			sl.Err(err),
		)
		return
	}
	if !ok {
		return
	}

	m.state.Set(t, reading.Value, reading.At)
	m.log.Debug("reading updated",
		slog.String("metric", string(t)),
		slog.Float64("value", reading.Value),
	)
}
