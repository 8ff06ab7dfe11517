package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const instanceInfoQuery = `SELECT SERVERPROPERTY('MachineName') AS [MachineName],
SERVERPROPERTY('ServerName') AS [ServerName],
SERVERPROPERTY('InstanceName') AS [Instance],
SERVERPROPERTY('Edition') AS [Edition],
SERVERPROPERTY('ProductLevel') AS [ProductLevel],
SERVERPROPERTY('ProductVersion') AS [ProductVersion],
SERVERPROPERTY('Collation') AS [Collation],
SERVERPROPERTY('IsClustered') AS [IsClustered],
SERVERPROPERTY('IsHadrEnabled') AS [IsHadrEnabled]`

func newInstanceInfoCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.InstanceInfo](ms,
		prometheus.BuildFQName(namespace, "instance", "info"),
		"MSSQL Instance Info, always 1")

	return newQueryCollector(ms, "instance_info",
		"collect SQL Server Basic Instance Info from SERVERPROPERTY",
		instanceInfoQuery, g, updateInstanceInfo)
}

func updateInstanceInfo(rows []dbutil.Row, g *GaugeVec[labels.InstanceInfo]) error {
	r, err := firstRow(rows)
	if err != nil {
		return err
	}

	var v [9]string
	for i := range v {
		if v[i], err = stringAt(r, i); err != nil {
			return err
		}
	}
	g.Set(labels.NewInstanceInfo(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8]), 1)
	return nil
}
