package postgres

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "procuremind.postgres"

type poolGauges struct {
	open      metric.Int64ObservableGauge
	inUse     metric.Int64ObservableGauge
	idle      metric.Int64ObservableGauge
	maxConns  metric.Int64ObservableGauge
	waits     metric.Int64ObservableCounter
	waitTotal metric.Float64ObservableCounter
}

var (
	gaugesOnce sync.Once
	gaugesErr  error
	// observed maps *pgxpool.Pool to its label.
	observed sync.Map
)

func metricName(name string) string {
	return "procuremind_postgres_" + name
}

// observePool publishes pool statistics for pool under label. The returned
// function stops publishing.
func observePool(label string, pool *pgxpool.Pool) (func(), error) {
	gaugesOnce.Do(func() {
		gaugesErr = registerPoolGauges(otel.GetMeterProvider().Meter(meterName))
	})
	if gaugesErr != nil {
		return nil, gaugesErr
	}
	observed.Store(pool, label)
	return func() { observed.Delete(pool) }, nil
}

func registerPoolGauges(meter metric.Meter) error {
	var g poolGauges
	var err error
	int64Gauge := func(name, desc string) metric.Int64ObservableGauge {
		if err != nil {
			return nil
		}
		var inst metric.Int64ObservableGauge
		inst, err = meter.Int64ObservableGauge(metricName(name), metric.WithDescription(desc))
		return inst
	}
	g.open = int64Gauge("connections_open", "Open connections in the pool")
	g.inUse = int64Gauge("connections_in_use", "Connections currently acquired by sessions")
	g.idle = int64Gauge("connections_idle", "Idle connections in the pool")
	g.maxConns = int64Gauge("max_open_connections", "Configured pool size")
	if err != nil {
		return err
	}
	g.waits, err = meter.Int64ObservableCounter(
		metricName("acquire_waits_total"),
		metric.WithDescription("Acquires that waited because the pool was exhausted"),
	)
	if err != nil {
		return err
	}
	g.waitTotal, err = meter.Float64ObservableCounter(
		metricName("acquire_wait_seconds_total"),
		metric.WithDescription("Time sessions spent waiting for a pooled connection"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(g.observe, g.open, g.inUse, g.idle, g.maxConns, g.waits, g.waitTotal)
	return err
}

func (g *poolGauges) observe(_ context.Context, o metric.Observer) error {
	observed.Range(func(key, value any) bool {
		stats := key.(*pgxpool.Pool).Stat()
		attrs := metric.WithAttributes(attribute.String("pool", value.(string)))
		o.ObserveInt64(g.open, int64(stats.TotalConns()), attrs)
		o.ObserveInt64(g.inUse, int64(stats.AcquiredConns()), attrs)
		o.ObserveInt64(g.idle, int64(stats.IdleConns()), attrs)
		o.ObserveInt64(g.maxConns, int64(stats.MaxConns()), attrs)
		o.ObserveInt64(g.waits, stats.EmptyAcquireCount(), attrs)
		o.ObserveFloat64(g.waitTotal, stats.EmptyAcquireWaitTime().Seconds(), attrs)
		return true
	})
	return nil
}

// poolLabel names a pool by host, port and database, lowercased and with
// anything outside [a-z0-9.:-] replaced by underscores.
func poolLabel(cfg *pgxpool.Config) string {
	conn := cfg.ConnConfig
	parts := []string{conn.Host, strconv.Itoa(int(conn.Port)), conn.Database}
	out := parts[:0]
	for _, p := range parts {
		p = strings.Trim(strings.Map(labelRune, strings.ToLower(strings.TrimSpace(p))), "_")
		if p != "" && p != "0" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "default"
	}
	return strings.Join(out, "-")
}

func labelRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == ':':
		return r
	default:
		return '_'
	}
}
