package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const (
	namespace = "mssql"
	exporter  = "exporter"
)

// Registry is where the exporter registers its gauges and what it serves.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// Exporter runs collectors against one session per scrape.
type Exporter struct {
	connector  dbutil.Connector
	collectors []Collector
	metrics    Metrics
	gatherer   prometheus.Gatherer
	upGatherer prometheus.Gatherer
}

// NewExporter registers the exporter's own metrics in reg. The up gauge is
// also kept in a registry of its own, served when the database is
// unreachable.
func NewExporter(connector dbutil.Connector, collectors []Collector, reg Registry) (*Exporter, error) {
	metrics := NewMetrics()
	for _, c := range collectors {
		metrics.ScrapeErrors.WithLabelValues(c.Name())
	}

	for _, m := range []prometheus.Collector{metrics.Up, metrics.Error, metrics.ScrapeErrors} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register exporter metrics: %w", err)
		}
	}

	upRegistry := prometheus.NewRegistry()
	if err := upRegistry.Register(metrics.Up); err != nil {
		return nil, err
	}

	return &Exporter{
		connector:  connector,
		collectors: collectors,
		metrics:    metrics,
		gatherer:   reg,
		upGatherer: upRegistry,
	}, nil
}

// Collectors returns every collector in registry order.
func (e *Exporter) Collectors() []Collector {
	return e.collectors
}

// Gatherer serves all metrics.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.gatherer
}

// UpGatherer serves only the up gauge.
func (e *Exporter) UpGatherer() prometheus.Gatherer {
	return e.upGatherer
}

// Scrape opens a session and runs collectors one after another in the given
// order. A failing collector is logged and skipped; its gauges keep their
// previous values. The only error returned is the *dbutil.ConnectError of a
// session that could not be opened.
func (e *Exporter) Scrape(ctx context.Context, collectors []Collector) error {
	session, err := e.connector.Open(ctx)
	if err != nil {
		var connErr *dbutil.ConnectError
		if !errors.As(err, &connErr) {
			err = &dbutil.ConnectError{Err: err}
		}
		e.metrics.Up.Set(0)
		e.metrics.Error.Set(1)
		log.WithFields(log.Fields{"error": err}).Error("Failed to connect to database")
		return err
	}
	e.metrics.Up.Set(1)

	failed := 0
	for _, c := range collectors {
		if err := e.scrapeOne(ctx, session, c); err != nil {
			failed++
			e.metrics.ScrapeErrors.WithLabelValues(c.Name()).Inc()
			log.WithFields(log.Fields{"collector": c.Name(), "query": c.Query(), "error": err}).Error("Error executing SQL query")
		}
	}

	if failed > 0 {
		e.metrics.Error.Set(1)
	} else {
		e.metrics.Error.Set(0)
	}

	if err := session.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Close Database Connection has error")
	}
	return nil
}

func (e *Exporter) scrapeOne(ctx context.Context, session dbutil.Session, c Collector) (err error) {
	start := time.Now()

	rows, err := session.FetchRowsWithContext(ctx, c.Query())
	if err != nil {
		return &QueryError{Collector: c.Name(), Query: c.Query(), Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &UpdateError{Collector: c.Name(), Query: c.Query(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := c.Update(rows); err != nil {
		return &UpdateError{Collector: c.Name(), Query: c.Query(), Err: err}
	}

	log.WithFields(log.Fields{"collector": c.Name(), "rows": len(rows), "duration": time.Since(start)}).Debug("Collector done")
	return nil
}

// Metrics represents exporter metrics which values can be carried between http requests.
type Metrics struct {
	ScrapeErrors *prometheus.CounterVec
	Error        prometheus.Gauge
	Up           prometheus.Gauge
}

// NewMetrics creates new Metrics instance.
func NewMetrics() Metrics {
	subsystem := exporter
	return Metrics{
		ScrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scrape_errors_total",
			Help:      "Total number of times a collector failed while scraping SQL Server.",
		}, []string{"collector"}),
		Error: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_scrape_error",
			Help:      "Whether the last scrape of SQL Server failed to connect or had a failing collector (1 for error, 0 for success).",
		}),
		Up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "up",
			Help: "UP Status",
		}),
	}
}
