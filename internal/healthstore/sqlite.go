package healthstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/model"
)

type SQLiteOptions struct {
	// PollInterval controls how often observers check for writes made by
	// other processes. In-process writes wake observers immediately.
	PollInterval time.Duration
	// Denied metric types make RequestAuthorization report failure.
	Denied []model.MetricType
}

type SQLiteStore struct {
	log          *slog.Logger
	db           *sql.DB
	pollInterval time.Duration
	denied       map[model.MetricType]struct{}

	mu   sync.Mutex
	subs map[model.MetricType]map[chan struct{}]struct{}
}

func NewSQLiteStore(log *slog.Logger, dbPath string, opts SQLiteOptions) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	s := &SQLiteStore{
		log:          log,
		db:           db,
		pollInterval: opts.PollInterval,
		denied:       make(map[model.MetricType]struct{}, len(opts.Denied)),
		subs:         make(map[model.MetricType]map[chan struct{}]struct{}),
	}
	for _, t := range opts.Denied {
		s.denied[t] = struct{}{}
	}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS samples (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			source TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples_type ON samples(type);
		CREATE INDEX IF NOT EXISTS idx_samples_type_start ON samples(type, start_at);
		CREATE TABLE IF NOT EXISTS changes (
			type TEXT PRIMARY KEY,
			anchor INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS authorizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			types TEXT NOT NULL,
			granted INTEGER NOT NULL,
			requested_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Name() string {
	return "sqlite"
}

func (s *SQLiteStore) Available(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *SQLiteStore) RequestAuthorization(ctx context.Context, types []model.MetricType) (bool, error) {
	if !s.Available(ctx) {
		return false, ErrUnavailable
	}

	granted := true
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
		if _, ok := s.denied[t]; ok {
			granted = false
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO authorizations (types, granted, requested_at) VALUES (?, ?, ?)",
		strings.Join(names, ","),
		granted,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record authorization: %w", err)
	}

	s.log.Debug("authorization requested",
		slog.String("types", strings.Join(names, ",")),
		slog.Bool("granted", granted),
	)
	return granted, nil
}

// Add stores samples and wakes observers of the affected types.
func (s *SQLiteStore) Add(ctx context.Context, samples ...model.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (id, type, value, unit, start_at, end_at, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	touched := make(map[model.MetricType]struct{})
	for _, sample := range samples {
		if _, err := model.ParseMetricType(string(sample.Type)); err != nil {
			return err
		}
		if sample.ID == "" {
			sample.ID = uuid.New().String()
		}
		if !sample.Quantity.Unit.Valid() {
			return fmt.Errorf("sample %s: %w: %q", sample.ID, model.ErrIncompatibleUnit, sample.Quantity.Unit)
		}

		if _, err := stmt.ExecContext(ctx,
			sample.ID,
			string(sample.Type),
			sample.Quantity.Value,
			string(sample.Quantity.Unit),
			sample.Start.UnixNano(),
			sample.End.UnixNano(),
			sample.Source,
			now,
		); err != nil {
			return fmt.Errorf("failed to store sample %s: %w", sample.ID, err)
		}
		touched[sample.Type] = struct{}{}
	}

	for t := range touched {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO changes (type, anchor) VALUES (?, 1)
			ON CONFLICT(type) DO UPDATE SET anchor = anchor + 1
		`, string(t)); err != nil {
			return fmt.Errorf("failed to bump anchor for %s: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("samples stored", slog.Int("count", len(samples)))

	for t := range touched {
		s.wake(t)
	}
	return nil
}

func (s *SQLiteStore) Samples(ctx context.Context, t model.MetricType) ([]model.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, value, unit, start_at, end_at, COALESCE(source, '')
		FROM samples
		WHERE type = ?
	`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		var (
			sample         model.Sample
			typ, unit      string
			startNs, endNs int64
		)

		if err := rows.Scan(&sample.ID, &typ, &sample.Quantity.Value, &unit, &startNs, &endNs, &sample.Source); err != nil {
			s.log.Error("failed to scan row", sl.Err(err))
			continue
		}

		sample.Type = model.MetricType(typ)
		sample.Quantity.Unit = model.Unit(unit)
		sample.Start = time.Unix(0, startNs).UTC()
		sample.End = time.Unix(0, endNs).UTC()
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

func (s *SQLiteStore) CumulativeSum(ctx context.Context, t model.MetricType, start, end time.Time) (*model.Quantity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, SUM(value)
		FROM samples
		WHERE type = ? AND start_at >= ? AND start_at < ?
		GROUP BY unit
	`, string(t), start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	target := t.DisplayUnit()
	var (
		sum   float64
		found bool
	)
	for rows.Next() {
		var (
			unit  string
			value float64
		)
		if err := rows.Scan(&unit, &value); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}

		converted, err := model.Quantity{Value: value, Unit: model.Unit(unit)}.ValueIn(target)
		if err != nil {
			return nil, err
		}
		sum += converted
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}
	return &model.Quantity{Value: sum, Unit: target}, nil
}

// Anchor is a counter that grows with every batch written for the type.
func (s *SQLiteStore) Anchor(ctx context.Context, t model.MetricType) (int64, error) {
	var anchor int64
	err := s.db.QueryRowContext(ctx, "SELECT anchor FROM changes WHERE type = ?", string(t)).Scan(&anchor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return anchor, err
}

func (s *SQLiteStore) Observe(ctx context.Context, t model.MetricType) <-chan Notification {
	out := make(chan Notification)
	wake := s.subscribe(t)

	go func() {
		defer close(out)
		defer s.unsubscribe(t, wake)

		last, err := s.Anchor(ctx, t)
		if err != nil {
			if !notify(ctx, out, Notification{Type: t, Err: err}) {
				return
			}
		} else if !notify(ctx, out, Notification{Type: t}) {
			return
		}

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-ticker.C:
			}

			anchor, err := s.Anchor(ctx, t)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !notify(ctx, out, Notification{Type: t, Err: fmt.Errorf("failed to read anchor: %w", err)}) {
					return
				}
				continue
			}
			if anchor == last {
				continue
			}
			last = anchor

			if !notify(ctx, out, Notification{Type: t}) {
				return
			}
		}
	}()

	return out
}

func (s *SQLiteStore) subscribe(t model.MetricType) chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[t] == nil {
		s.subs[t] = make(map[chan struct{}]struct{})
	}
	s.subs[t][ch] = struct{}{}
	return ch
}

func (s *SQLiteStore) unsubscribe(t model.MetricType, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[t], ch)
}

func (s *SQLiteStore) wake(t model.MetricType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[t] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples").Scan(&count)
	return count, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
