package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const configurationQuery = `SELECT name, value_in_use FROM sys.configurations
WHERE name IN (
'cost threshold for parallelism',
'cursor threshold',
'fill factor (%)',
'max degree of parallelism',
'max worker threads',
'recovery interval (min)',
'remote access',
'remote admin connections',
'user connections',
'locks',
'remote login timeout (s)',
'remote query timeout (s)',
'min server memory (MB)',
'max server memory (MB)'
)`

func newConfigurationCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.Configuration](ms,
		prometheus.BuildFQName(namespace, "configuration", "value"),
		"MSSQL Configuration value in use")

	return newQueryCollector(ms, "configuration",
		"collect server options from sys.configurations",
		configurationQuery, g, updateConfiguration)
}

func updateConfiguration(rows []dbutil.Row, g *GaugeVec[labels.Configuration]) error {
	for _, r := range rows {
		name, err := stringAt(r, 0)
		if err != nil {
			return err
		}
		v, err := floatAt(r, 1)
		if err != nil {
			return err
		}
		g.Set(labels.NewConfiguration(name), v)
	}
	return nil
}
