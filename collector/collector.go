package collector

import (
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

// queryCollector binds a query to the handle struct M. update only sees M,
// so it cannot touch a gauge the collector did not declare.
type queryCollector[M any] struct {
	name    string
	help    string
	query   string
	infos   []MetricInfo
	metrics M
	update  func(rows []dbutil.Row, m M) error
}

func newQueryCollector[M any](ms *metricSet, name, help, query string, metrics M, update func([]dbutil.Row, M) error) (Collector, error) {
	if ms.err != nil {
		return nil, ms.err
	}
	return &queryCollector[M]{
		name:    name,
		help:    help,
		query:   query,
		infos:   ms.infos,
		metrics: metrics,
		update:  update,
	}, nil
}

func (c *queryCollector[M]) Name() string {
	return c.name
}

func (c *queryCollector[M]) Help() string {
	return c.help
}

func (c *queryCollector[M]) Query() string {
	return c.query
}

func (c *queryCollector[M]) Metrics() []MetricInfo {
	return c.infos
}

func (c *queryCollector[M]) Update(rows []dbutil.Row) error {
	return c.update(rows, c.metrics)
}
