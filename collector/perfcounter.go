package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

// Counters from sys.dm_os_performance_counters. The "/sec" counters are
// cumulative since the last restart, not rates.
const (
	deadlocksQuery = `SELECT cntr_value
  FROM sys.dm_os_performance_counters
 WHERE counter_name = 'Number of Deadlocks/sec' AND instance_name = '_Total'`

	userErrorsQuery = `SELECT cntr_value
  FROM sys.dm_os_performance_counters
 WHERE counter_name = 'Errors/sec' AND instance_name = 'User Errors'`

	killConnectionErrorsQuery = `SELECT cntr_value
  FROM sys.dm_os_performance_counters
 WHERE counter_name = 'Errors/sec' AND instance_name = 'Kill Connection Errors'`

	logGrowthsQuery = `SELECT rtrim(instance_name), cntr_value
  FROM sys.dm_os_performance_counters
 WHERE counter_name = 'Log Growths' AND instance_name <> '_Total'`

	pageLifeExpectancyQuery = `SELECT TOP 1 cntr_value
  FROM sys.dm_os_performance_counters WITH (NOLOCK)
 WHERE counter_name = 'Page life expectancy'`

	batchRequestsQuery = `SELECT TOP 1 cntr_value
  FROM sys.dm_os_performance_counters
 WHERE counter_name = 'Batch Requests/sec'`
)

func newDeadlocksCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "", "deadlocks"),
		"Number of lock requests per second that resulted in a deadlock since last restart")

	return newQueryCollector(ms, "deadlocks",
		"collect Number of Deadlocks/sec from sys.dm_os_performance_counters",
		deadlocksQuery, g, updateScalar)
}

func newUserErrorsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "", "user_errors"),
		"Number of user errors/sec since last restart")

	return newQueryCollector(ms, "user_errors",
		"collect User Errors from sys.dm_os_performance_counters",
		userErrorsQuery, g, updateScalar)
}

func newKillConnectionErrorsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "", "kill_connection_errors"),
		"Number of kill connection errors/sec since last restart")

	return newQueryCollector(ms, "kill_connection_errors",
		"collect Kill Connection Errors from sys.dm_os_performance_counters",
		killConnectionErrorsQuery, g, updateScalar)
}

func newLogGrowthsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.Database](ms,
		prometheus.BuildFQName(namespace, "", "log_growths"),
		"Total number of times the transaction log for the database has been expanded last restart")

	return newQueryCollector(ms, "log_growths",
		"collect Log Growths per database from sys.dm_os_performance_counters",
		logGrowthsQuery, g, updatePerDatabase)
}

func newPageLifeExpectancyCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "", "page_life_expectancy"),
		"Indicates the minimum number of seconds a page will stay in the buffer pool on this node without references. "+
			"The traditional advice from Microsoft used to be that the PLE should remain above 300 seconds")

	return newQueryCollector(ms, "page_life_expectancy",
		"collect Page life expectancy from sys.dm_os_performance_counters",
		pageLifeExpectancyQuery, g, updateTopOne)
}

func newBatchRequestsCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGauge(ms,
		prometheus.BuildFQName(namespace, "", "batch_requests"),
		"Number of Transact-SQL command batches received per second. This statistic is affected by all constraints "+
			"(such as I/O, number of users, cachesize, complexity of requests, and so on). High batch requests mean good throughput")

	return newQueryCollector(ms, "batch_requests",
		"collect Batch Requests/sec from sys.dm_os_performance_counters",
		batchRequestsQuery, g, updateTopOne)
}

// updateTopOne is updateScalar for TOP 1 queries, which may match no counter.
// An empty result leaves g unchanged.
func updateTopOne(rows []dbutil.Row, g *Gauge) error {
	if len(rows) == 0 {
		return nil
	}
	return updateScalar(rows, g)
}

// updatePerDatabase expects (database, value) rows.
func updatePerDatabase(rows []dbutil.Row, g *GaugeVec[labels.Database]) error {
	for _, r := range rows {
		database, err := stringAt(r, 0)
		if err != nil {
			return err
		}
		v, err := floatAt(r, 1)
		if err != nil {
			return err
		}
		g.Set(labels.NewDatabase(database), v)
	}
	return nil
}
