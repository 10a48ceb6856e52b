package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation
type DBConfig struct {
	Tracing            bool
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// InstrumentGorm registers otelgorm for spans and the query metrics plugin.
// The returned DBMetrics samples pool stats until Stop.
func InstrumentGorm(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBMetrics, error) {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	m, err := NewDBMetrics(meter, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(&dbMetricsPlugin{metrics: m}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		m.sqlDB = sqlDB
	}
	return m, nil
}

// DBMetrics records query counts, latency and pool usage
type DBMetrics struct {
	queries     *Counter
	duration    *Histogram
	slowQueries *Counter
	pool        *Gauge
	cfg         DBConfig
	logger      *zap.Logger
	sqlDB       *sql.DB
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DBMetrics{cfg: cfg, logger: logger, stop: make(chan struct{})}
	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, "db_query_duration_seconds", "Database query latency", "s", DBDurationBuckets); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.pool, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one finished statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}
	m.queries.Inc(ctx, AttrDBOperation.String(operation))
	m.duration.Record(ctx, d.Seconds(), AttrDBOperation.String(operation))
	if d > m.cfg.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueries.Inc(ctx, AttrDBTable.String(table))
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		m.logger.Warn("Slow query",
			zap.String("operation", operation),
			zap.String("table", table),
			zap.Duration("duration", d),
		)
	}
}

// StartPoolStats samples connection pool stats every PoolStatsInterval
func (m *DBMetrics) StartPoolStats(ctx context.Context) {
	if m.sqlDB == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PoolStatsInterval)
		defer ticker.Stop()
		for {
			m.collectPoolStats(ctx)
			select {
			case <-ticker.C:
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) collectPoolStats(ctx context.Context) {
	s := m.sqlDB.Stats()
	m.pool.Record(ctx, int64(s.Idle), AttrDBState.String("idle"))
	m.pool.Record(ctx, int64(s.InUse), AttrDBState.String("in_use"))
	m.pool.Record(ctx, int64(s.MaxOpenConnections), AttrDBState.String("max"))
}

// Stop ends pool sampling
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
	})
}

type dbStartKey struct{}

// dbMetricsPlugin times every gorm statement
type dbMetricsPlugin struct {
	metrics *DBMetrics
}

func (p *dbMetricsPlugin) Name() string { return "rental:db_metrics" }

func (p *dbMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, dbStartKey{}, time.Now())
		}
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			ctx := tx.Statement.Context
			if ctx == nil {
				return
			}
			start, ok := ctx.Value(dbStartKey{}).(time.Time)
			if !ok {
				return
			}
			if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
				trace.SpanFromContext(ctx).RecordError(tx.Error)
			}
			p.metrics.RecordQuery(ctx, op, tx.Statement.Table, time.Since(start))
		}
	}

	cb := db.Callback()
	steps := []struct {
		op     string
		before error
		after  error
	}{
		{"insert", cb.Create().Before("gorm:create").Register("rental_metrics:before_create", before),
			cb.Create().After("gorm:create").Register("rental_metrics:after_create", after("insert"))},
		{"select", cb.Query().Before("gorm:query").Register("rental_metrics:before_query", before),
			cb.Query().After("gorm:query").Register("rental_metrics:after_query", after("select"))},
		{"update", cb.Update().Before("gorm:update").Register("rental_metrics:before_update", before),
			cb.Update().After("gorm:update").Register("rental_metrics:after_update", after("update"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("rental_metrics:before_delete", before),
			cb.Delete().After("gorm:delete").Register("rental_metrics:after_delete", after("delete"))},
		{"raw", cb.Raw().Before("gorm:raw").Register("rental_metrics:before_raw", before),
			cb.Raw().After("gorm:raw").Register("rental_metrics:after_raw", after("raw"))},
		{"row", cb.Row().Before("gorm:row").Register("rental_metrics:before_row", before),
			cb.Row().After("gorm:row").Register("rental_metrics:after_row", after("select"))},
	}
	for _, s := range steps {
		if err := errors.Join(s.before, s.after); err != nil {
			return err
		}
	}
	return nil
}
