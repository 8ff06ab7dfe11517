package collector

import (
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

// Collector pairs one query with the gauges it updates.
type Collector interface {
	// Name of the Collector. Should be unique.
	Name() string

	// Help describes the role of the Collector.
	// Example: "collect stats from sys.dm_os_sys_memory"
	Help() string

	// Query is the SQL text run once per scrape.
	Query() string

	// Metrics lists the gauges the Collector updates.
	Metrics() []MetricInfo

	// Update sets the gauges from the rows returned by Query.
	Update(rows []dbutil.Row) error
}
