package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const (
	processMemoryQuery = `SELECT page_fault_count, memory_utilization_percentage
  FROM sys.dm_os_process_memory`

	sysMemoryQuery = `SELECT total_physical_memory_kb, available_physical_memory_kb, total_page_file_kb, available_page_file_kb
  FROM sys.dm_os_sys_memory`
)

type processMemoryMetrics struct {
	pageFaults  *Gauge
	utilization *Gauge
}

type sysMemoryMetrics struct {
	totalPhysical     *Gauge
	availablePhysical *Gauge
	totalPageFile     *Gauge
	availablePageFile *Gauge
}

func newProcessMemoryCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	m := processMemoryMetrics{
		pageFaults: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "page_fault_count"),
			"Number of page faults since last restart"),
		utilization: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "memory_utilization_percentage"),
			"Percentage of memory utilization"),
	}

	return newQueryCollector(ms, "os_process_memory",
		"collect process memory from sys.dm_os_process_memory",
		processMemoryQuery, m, func(rows []dbutil.Row, m processMemoryMetrics) error {
			return setColumns(rows, m.pageFaults, m.utilization)
		})
}

func newSysMemoryCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	m := sysMemoryMetrics{
		totalPhysical: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "total_physical_memory_kb"),
			"Total physical memory in KB"),
		availablePhysical: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "available_physical_memory_kb"),
			"Available physical memory in KB"),
		totalPageFile: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "total_page_file_kb"),
			"Total page file in KB"),
		availablePageFile: newGauge(ms,
			prometheus.BuildFQName(namespace, "", "available_page_file_kb"),
			"Available page file in KB"),
	}

	return newQueryCollector(ms, "os_sys_memory",
		"collect system memory from sys.dm_os_sys_memory",
		sysMemoryQuery, m, func(rows []dbutil.Row, m sysMemoryMetrics) error {
			return setColumns(rows, m.totalPhysical, m.availablePhysical, m.totalPageFile, m.availablePageFile)
		})
}

// setColumns sets gauges[i] from column i of the first row. Nothing is set
// unless every column converts.
func setColumns(rows []dbutil.Row, gauges ...*Gauge) error {
	r, err := firstRow(rows)
	if err != nil {
		return err
	}

	values := make([]float64, len(gauges))
	for i := range gauges {
		if values[i], err = floatAt(r, i); err != nil {
			return err
		}
	}
	for i, g := range gauges {
		g.Set(values[i])
	}
	return nil
}
