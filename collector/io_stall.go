package collector

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

// SQL Server 2012 has no io_stall_queued_* columns; they are reported as 0.
const ioStallQueryTemplate = `SELECT cast(DB_Name(a.database_id) as varchar) as name
     , max(io_stall_read_ms)
     , max(io_stall_write_ms)
     , max(io_stall)
     , %s
     , %s
  FROM sys.dm_io_virtual_file_stats(null, null) a
 INNER JOIN sys.master_files b ON a.database_id = b.database_id and a.file_id = b.file_id
 GROUP BY a.database_id`

type ioStallMetrics struct {
	stall *GaugeVec[labels.DatabaseType]
	total *GaugeVec[labels.Database]
}

func ioStallQuery(support2012 bool) string {
	if support2012 {
		return fmt.Sprintf(ioStallQueryTemplate, "0", "0")
	}
	return fmt.Sprintf(ioStallQueryTemplate, "max(io_stall_queued_read_ms)", "max(io_stall_queued_write_ms)")
}

func newIOStallCollector(reg prometheus.Registerer, opts Options) (Collector, error) {
	ms := newMetricSet(reg)
	m := ioStallMetrics{
		stall: newGaugeVec[labels.DatabaseType](ms,
			prometheus.BuildFQName(namespace, "io", "stall"),
			"Wait time (ms) of stall since last restart"),
		total: newGaugeVec[labels.Database](ms,
			prometheus.BuildFQName(namespace, "io", "stall_total"),
			"Wait time (ms) of stall since last restart"),
	}

	return newQueryCollector(ms, "io_stall",
		"collect I/O stall times per database from sys.dm_io_virtual_file_stats",
		ioStallQuery(opts.SupportMSSQL2012), m, updateIOStall)
}

// ioStallTypes maps the stall type label to its column.
var ioStallTypes = []struct {
	name   string
	column int
}{
	{"read", 1},
	{"write", 2},
	{"queued_read", 4},
	{"queued_write", 5},
}

func updateIOStall(rows []dbutil.Row, m ioStallMetrics) error {
	for _, r := range rows {
		database, err := stringAt(r, 0)
		if err != nil {
			return err
		}
		total, err := floatAt(r, 3)
		if err != nil {
			return err
		}

		values := make([]float64, len(ioStallTypes))
		for i, t := range ioStallTypes {
			if values[i], err = floatAt(r, t.column); err != nil {
				return err
			}
		}

		m.total.Set(labels.NewDatabase(database), total)
		for i, t := range ioStallTypes {
			m.stall.Set(labels.NewDatabaseType(database, t.name), values[i])
		}
	}
	return nil
}
