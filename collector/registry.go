package collector

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Options are the static settings collectors are built with.
type Options struct {
	// SupportMSSQL2012 selects queries that run on SQL Server 2012.
	SupportMSSQL2012 bool
}

// Factory builds one collector and registers its gauges.
type Factory struct {
	Name    string
	Help    string
	Default bool
	New     func(reg prometheus.Registerer, opts Options) (Collector, error)
}

// Factories is the registry of known collectors. Scrapes run collectors in
// this order.
var Factories = []Factory{
	{"instance_local_time", "collect the instance clock", true, newInstanceLocalTimeCollector},
	{"connections", "collect connections per database", true, newConnectionsCollector},
	{"deadlocks", "collect the deadlock counter", true, newDeadlocksCollector},
	{"user_errors", "collect the user errors counter", true, newUserErrorsCollector},
	{"kill_connection_errors", "collect the kill connection errors counter", true, newKillConnectionErrorsCollector},
	{"database_state", "collect database states", true, newDatabaseStateCollector},
	{"log_growths", "collect transaction log growths per database", true, newLogGrowthsCollector},
	{"database_filesize", "collect database file sizes", true, newDatabaseFilesizeCollector},
	{"page_life_expectancy", "collect buffer pool page life expectancy", true, newPageLifeExpectancyCollector},
	{"io_stall", "collect I/O stall times per database", true, newIOStallCollector},
	{"batch_requests", "collect the batch requests counter", true, newBatchRequestsCollector},
	{"os_process_memory", "collect SQL Server process memory", true, newProcessMemoryCollector},
	{"os_sys_memory", "collect operating system memory", true, newSysMemoryCollector},
	{"oldest_transaction_age", "collect the oldest transaction age per database", true, newOldestTransactionCollector},
	{"volume_stats", "collect volume sizes", true, newVolumeStatsCollector},
	{"instance_info", "collect SQL Server instance properties", false, newInstanceInfoCollector},
	{"configuration", "collect server options from sys.configurations", false, newConfigurationCollector},
	{"db_space", "collect allocated space per database", false, newDbSpaceCollector},
	{"wait_stats", "collect stats from sys.dm_os_wait_stats", false, newWaitStatsCollector},
}

// NewCollectors builds the enabled collectors in registry order. A nil
// enabled func keeps each factory's default. A second call on the same
// registerer fails because the gauges are already registered. On failure
// nothing built by the call stays registered, so it can be retried.
func NewCollectors(reg prometheus.Registerer, opts Options, enabled func(name string) bool) ([]Collector, error) {
	tracked := &trackingRegisterer{Registerer: reg}
	var collectors []Collector
	for _, f := range Factories {
		on := f.Default
		if enabled != nil {
			on = enabled(f.Name)
		}
		if !on {
			continue
		}

		c, err := f.New(tracked, opts)
		if err != nil {
			tracked.unregisterAll()
			return nil, fmt.Errorf("create collector %s: %w", f.Name, err)
		}
		collectors = append(collectors, c)
	}
	return collectors, nil
}

// trackingRegisterer remembers what it registered in the wrapped registerer.
type trackingRegisterer struct {
	prometheus.Registerer
	registered []prometheus.Collector
}

func (r *trackingRegisterer) Register(c prometheus.Collector) error {
	if err := r.Registerer.Register(c); err != nil {
		return err
	}
	r.registered = append(r.registered, c)
	return nil
}

func (r *trackingRegisterer) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *trackingRegisterer) Unregister(c prometheus.Collector) bool {
	for i, rc := range r.registered {
		if rc == c {
			r.registered = append(r.registered[:i], r.registered[i+1:]...)
			break
		}
	}
	return r.Registerer.Unregister(c)
}

func (r *trackingRegisterer) unregisterAll() {
	for _, c := range r.registered {
		r.Registerer.Unregister(c)
	}
	r.registered = nil
}
