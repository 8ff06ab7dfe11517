package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const dbSpaceQuery = `SELECT DB_NAME(database_id)
     , SUM(CASE WHEN type = 0 THEN cast(size as bigint) ELSE 0 END) * 8192 data_size
     , SUM(CASE WHEN type = 1 THEN cast(size as bigint) ELSE 0 END) * 8192 log_size
     , SUM(CASE WHEN type > 1 THEN cast(size as bigint) ELSE 0 END) * 8192 other_size
  FROM sys.master_files
 GROUP BY DB_NAME(database_id)`

var dbSpaceModes = []string{"data", "log", "other"}

func newDbSpaceCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.DatabaseMode](ms,
		prometheus.BuildFQName(namespace, "database", "space_bytes"),
		"Allocated database file space in bytes by file mode (data, log, other)")

	return newQueryCollector(ms, "db_space",
		"collect allocated space per database from sys.master_files",
		dbSpaceQuery, g, updateDbSpace)
}

func updateDbSpace(rows []dbutil.Row, g *GaugeVec[labels.DatabaseMode]) error {
	for _, r := range rows {
		database, err := stringAt(r, 0)
		if err != nil {
			return err
		}

		values := make([]float64, len(dbSpaceModes))
		for i := range dbSpaceModes {
			if values[i], err = floatAt(r, i+1); err != nil {
				return err
			}
		}
		for i, mode := range dbSpaceModes {
			g.Set(labels.NewDatabaseMode(database, mode), values[i])
		}
	}
	return nil
}
