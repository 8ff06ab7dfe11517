package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector/labels"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

const (
	databaseStateQuery = `SELECT name, state FROM master.sys.databases`

	databaseFilesizeQuery = `SELECT DB_NAME(database_id) AS database_name
     , Name AS logical_name
     , type
     , physical_name
     , (size * 8) size_kb
  FROM sys.master_files`

	oldestTransactionQuery = `SELECT DB_NAME(db.database_id) AS 'database'
     , ISNULL(trans.tran_elapsed_time_seconds, 0)
  FROM sys.databases db
  LEFT JOIN (
       SELECT max(DATEDIFF(SECOND, transaction_begin_time, GETDATE())) AS tran_elapsed_time_seconds
            , tdt.database_id
         FROM sys.dm_tran_active_transactions tat
         JOIN sys.dm_tran_database_transactions tdt
           ON tat.transaction_id = tdt.transaction_id
         JOIN sys.dm_tran_session_transactions tst
           ON tat.transaction_id = tst.transaction_id
        GROUP BY tdt.database_id
     ) trans
    ON db.database_id = trans.database_id`
)

func newDatabaseStateCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.Database](ms,
		prometheus.BuildFQName(namespace, "database", "state"),
		"Databases states: 0=ONLINE 1=RESTORING 2=RECOVERING 3=RECOVERY_PENDING 4=SUSPECT 5=EMERGENCY 6=OFFLINE 7=COPYING 10=OFFLINE_SECONDARY")

	return newQueryCollector(ms, "database_state",
		"collect database states from sys.databases",
		databaseStateQuery, g, updatePerDatabase)
}

func newDatabaseFilesizeCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.DatabaseFile](ms,
		prometheus.BuildFQName(namespace, "database", "filesize"),
		"Physical sizes of files used by database in KB, their names and types (0=rows, 1=log, 2=filestream,3=n/a 4=fulltext(before v2008 of MSSQL))")

	return newQueryCollector(ms, "database_filesize",
		"collect database file sizes from sys.master_files",
		databaseFilesizeQuery, g, updateDatabaseFilesize)
}

func updateDatabaseFilesize(rows []dbutil.Row, g *GaugeVec[labels.DatabaseFile]) error {
	for _, r := range rows {
		var cells [4]string
		for i := range cells {
			s, err := stringAt(r, i)
			if err != nil {
				return err
			}
			cells[i] = s
		}
		v, err := floatAt(r, 4)
		if err != nil {
			return err
		}
		g.Set(labels.NewDatabaseFile(cells[0], cells[1], cells[2], cells[3]), v)
	}
	return nil
}

func newOldestTransactionCollector(reg prometheus.Registerer, _ Options) (Collector, error) {
	ms := newMetricSet(reg)
	g := newGaugeVec[labels.Database](ms,
		prometheus.BuildFQName(namespace, "", "oldest_transactions"),
		"Age of the oldest transaction by database in seconds")

	return newQueryCollector(ms, "oldest_transaction_age",
		"collect the oldest active transaction age per database from sys.dm_tran_*",
		oldestTransactionQuery, g, updatePerDatabase)
}
