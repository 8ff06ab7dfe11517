package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const volumeStatsQuery = `SELECT distinct(volume_mount_point)
     , total_bytes
     , available_bytes
  FROM sys.master_files AS f CROSS APPLY
       sys.dm_os_volume_stats(f.database_id, f.file_id)
 GROUP BY volume_mount_point
     , total_bytes
     , available_bytes`

type volumeMetrics struct {
	total     *GaugeVec[labels.Volume]
	available *GaugeVec[labels.Volume]
}

func newVolumeStatsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	m := volumeMetrics{
		total: newGaugeVec[labels.Volume](ms,
			prometheus.BuildFQName(namespace, "volume", "total_bytes"),
			"Total size in bytes of the volume"),
		available: newGaugeVec[labels.Volume](ms,
			prometheus.BuildFQName(namespace, "volume", "available_bytes"),
			"Available free space on the volume"),
	}

	return newQueryCollector(ms, "volume_stats",
		"collect volume sizes from sys.dm_os_volume_stats",
		volumeStatsQuery, m, updateVolumeStats)
}

func updateVolumeStats(rows []dbutil.Row, m volumeMetrics) error {
	for _, r := range rows {
		mountPoint, err := stringAt(r, 0)
		if err != nil {
			return err
		}
		total, err := floatAt(r, 1)
		if err != nil {
			return err
		}
		available, err := floatAt(r, 2)
		if err != nil {
			return err
		}
		m.total.Set(labels.NewVolume(mountPoint), total)
		m.available.Set(labels.NewVolume(mountPoint), available)
	}
	return nil
}
