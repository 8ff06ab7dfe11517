package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const (
	instanceLocalTimeQuery = `SELECT DATEDIFF(second, '19700101', GETUTCDATE())`

	connectionsQuery = `SELECT DB_NAME(sP.dbid)
     , COUNT(sP.spid)
  FROM sys.sysprocesses sP
 GROUP BY DB_NAME(sP.dbid)`
)

func newInstanceLocalTimeCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "instance", "local_time"),
		"Number of seconds since epoch on local instance")

	return newQueryCollector(ms, "instance_local_time",
		"collect the instance clock from GETUTCDATE()",
		instanceLocalTimeQuery, g, updateScalar)
}

func newConnectionsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.Connection](ms,
		prometheus.BuildFQName(namespace, "", "connections"),
		"Number of active connections")

	return newQueryCollector(ms, "connections",
		"collect connections per database from sys.sysprocesses",
		connectionsQuery, g, updateConnections)
}

func updateConnections(rows []dbutil.Row, g *GaugeVec[labels.Connection]) error {
	for _, r := range rows {
		database, err := stringAt(r, 0)
		if err != nil {
			return err
		}
		v, err := floatAt(r, 1)
		if err != nil {
			return err
		}
		g.Set(labels.NewConnection(database, "current"), v)
	}
	return nil
}

// updateScalar sets g from the first cell of the first row.
func updateScalar(rows []dbutil.Row, g *Gauge) error {
	r, err := firstRow(rows)
	if err != nil {
		return err
	}
	v, err := floatAt(r, 0)
	if err != nil {
		return err
	}
	g.Set(v)
	return nil
}
