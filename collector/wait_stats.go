package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

// Idle and background waits are excluded, they grow without indicating load.
const waitStatsQuery = `SELECT wait_type
     , waiting_tasks_count
     , wait_time_ms - signal_wait_time_ms AS wait_time_ms
     , signal_wait_time_ms
  FROM sys.dm_os_wait_stats
 WHERE (waiting_tasks_count > 0 OR wait_time_ms > 0)
   AND wait_type NOT IN (
	'BROKER_EVENTHANDLER', 'BROKER_RECEIVE_WAITFOR', 'BROKER_TASK_STOP',
	'BROKER_TO_FLUSH', 'BROKER_TRANSMITTER', 'CHECKPOINT_QUEUE', 'CHKPT',
	'CLR_AUTO_EVENT', 'CLR_MANUAL_EVENT', 'CLR_SEMAPHORE', 'DIRTY_PAGE_POLL',
	'DISPATCHER_QUEUE_SEMAPHORE', 'FT_IFTS_SCHEDULER_IDLE_WAIT',
	'HADR_FILESTREAM_IOMGR_IOCOMPLETION', 'HADR_WORK_QUEUE', 'KSOURCE_WAKEUP',
	'LAZYWRITER_SLEEP', 'LOGMGR_QUEUE', 'ONDEMAND_TASK_QUEUE',
	'REQUEST_FOR_DEADLOCK_SEARCH', 'RESOURCE_QUEUE', 'SERVER_IDLE_CHECK',
	'SLEEP_BPOOL_FLUSH', 'SLEEP_DBSTARTUP', 'SLEEP_DCOMSTARTUP',
	'SLEEP_MASTERDBREADY', 'SLEEP_MASTERMDREADY', 'SLEEP_MASTERUPGRADED',
	'SLEEP_MSDBSTARTUP', 'SLEEP_SYSTEMTASK', 'SLEEP_TASK', 'SLEEP_TEMPDBSTARTUP',
	'SP_SERVER_DIAGNOSTICS_SLEEP', 'SQLTRACE_BUFFER_FLUSH',
	'SQLTRACE_INCREMENTAL_FLUSH_SLEEP', 'WAITFOR', 'XE_DISPATCHER_WAIT',
	'XE_TIMER_EVENT')`

type waitStatMetrics struct {
	waitingTasks   *GaugeVec[labels.WaitType]
	waitTime       *GaugeVec[labels.WaitType]
	signalWaitTime *GaugeVec[labels.WaitType]
}

func newWaitStatsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	m := waitStatMetrics{
		waitingTasks: newGaugeVec[labels.WaitType](ms,
			prometheus.BuildFQName(namespace, "waitstat", "waiting_tasks"),
			"Number of waits on this wait type since last restart"),
		waitTime: newGaugeVec[labels.WaitType](ms,
			prometheus.BuildFQName(namespace, "waitstat", "wait_time_ms"),
			"Resource wait time (ms) on this wait type since last restart, signal wait excluded"),
		signalWaitTime: newGaugeVec[labels.WaitType](ms,
			prometheus.BuildFQName(namespace, "waitstat", "signal_wait_time_ms"),
			"Signal wait time (ms) on this wait type since last restart"),
	}

	return newQueryCollector(ms, "wait_stats",
		"collect stats from sys.dm_os_wait_stats",
		waitStatsQuery, m, updateWaitStats)
}

func updateWaitStats(rows []dbutil.Row, m waitStatMetrics) error {
	for _, r := range rows {
		waitType, err := stringAt(r, 0)
		if err != nil {
			return err
		}

		var v [3]float64
		for i := range v {
			if v[i], err = floatAt(r, i+1); err != nil {
				return err
			}
		}

		l := labels.NewWaitType(waitType)
		m.waitingTasks.Set(l, v[0])
		m.waitTime.Set(l, v[1])
		m.signalWaitTime.Set(l, v[2])
	}
	return nil
}
