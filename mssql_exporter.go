package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
	"yunche.pro/dtsre/prometheus-mssql-exporter/collector"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
	"yunche.pro/dtsre/prometheus-mssql-exporter/logutil"
)

var (
	metricPath = kingpin.Flag(
		"web.telemetry-path",
		"Path under which to expose metrics.",
	).Default("/metrics").String()

	listenAddress = kingpin.Flag(
		"web.listen-address",
		"Address (or bare port) to listen on for web interface and telemetry.",
	).Default(":4000").Envar("EXPOSE").String()

	honorScrapeTimeout = kingpin.Flag(
		"web.honor-scrape-timeout",
		"Bound each scrape by the X-Prometheus-Scrape-Timeout-Seconds header.",
	).Default("false").Bool()

	timeoutOffset = kingpin.Flag(
		"timeout-offset",
		"Offset to subtract from timeout in seconds.",
	).Default("0.25").Float64()

	configFile = kingpin.Flag("config", "Optional YAML file with the database settings.").Default("").String()

	dbHost     = kingpin.Flag("db.host", "SQL Server host.").Envar("SERVER").String()
	dbPort     = kingpin.Flag("db.port", "SQL Server port.").Envar("PORT").Int()
	dbUser     = kingpin.Flag("db.user", "SQL Server login (USERNAME is used when USER_ID is unset).").Envar("USER_ID").String()
	dbPassword = kingpin.Flag("db.password", "SQL Server password.").Envar("PASSWORD").String()
	dbInstance = kingpin.Flag("db.instance", "Named instance, used instead of the port.").String()
	dbTrust    = kingpin.Flag("db.trust-server-certificate", "Do not verify the server certificate.").Bool()

	support2012 = kingpin.Flag("mssql.support-2012", "Use queries compatible with SQL Server 2012.").Envar("SUPPORT_2012").Bool()

	printDocs = kingpin.Flag("docs", "Print collectors, their metrics and queries, then exit.").Bool()

	loglevel  = kingpin.Flag("log.level", "exporter log level: debug, info, warn, error").Default("info").String()
	logfile   = kingpin.Flag("log.file", "Write logs to this rotated file instead of stderr.").Default("").String()
	logformat = kingpin.Flag("log.format", "Log format: text or json.").Default("text").String()
)

func main() {
	// Generate ON/OFF flags for all collectors.
	collectorFlags := map[string]*bool{}
	for _, f := range collector.Factories {
		defaultOn := "false"
		if f.Default {
			defaultOn = "true"
		}

		collectorFlags[f.Name] = kingpin.Flag(
			"collect."+f.Name,
			f.Help,
		).Default(defaultOn).Bool()
	}

	kingpin.Parse()

	if err := logutil.InitLog(*logfile, *loglevel, *logformat); err != nil {
		fmt.Fprintf(os.Stderr, "init log: %s\n", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	collectors, err := collector.NewCollectors(registry,
		collector.Options{SupportMSSQL2012: *support2012},
		func(name string) bool { return *collectorFlags[name] })
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Can not create collectors")
		os.Exit(1)
	}

	if *printDocs {
		writeDocs(os.Stdout, collectors)
		return
	}

	config, err := loadConfig()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Invalid configuration")
		os.Exit(1)
	}

	for _, c := range collectors {
		log.WithFields(log.Fields{"collector": c.Name()}).Info("Collector Enabled")
	}

	exporter, err := collector.NewExporter(dbutil.NewMSSQLClient(config), collectors, registry)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Can not create exporter")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    normalizeListenAddress(*listenAddress),
		Handler: newRouter(*metricPath, newHandler(exporter, handlerOpts{honorTimeout: *honorScrapeTimeout, timeoutOffset: *timeoutOffset})),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithFields(log.Fields{"err": err}).Warn("HTTP server shutdown")
		}
	}()

	log.WithFields(log.Fields{"address": srv.Addr, "server": config.String()}).Info("Listening on address")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithFields(log.Fields{"err": err}).Error("Error starting HTTP server")
		os.Exit(1)
	}
}

// loadConfig merges the optional config file with flags and environment,
// the latter taking precedence.
func loadConfig() (dbutil.MSSQLConfig, error) {
	c, err := dbutil.LoadConfig(*configFile)
	if err != nil {
		return c, err
	}

	user := *dbUser
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	c = mergeConfig(c, dbutil.MSSQLConfig{
		Host:                   *dbHost,
		Port:                   *dbPort,
		Username:               user,
		Password:               *dbPassword,
		Instance:               *dbInstance,
		TrustServerCertificate: *dbTrust,
	})
	return c, c.Validate()
}

func mergeConfig(base, override dbutil.MSSQLConfig) dbutil.MSSQLConfig {
	if override.Host != "" {
		base.Host = override.Host
	}
	if override.Port != 0 {
		base.Port = override.Port
	}
	if override.Username != "" {
		base.Username = override.Username
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if override.Instance != "" {
		base.Instance = override.Instance
	}
	if override.TrustServerCertificate {
		base.TrustServerCertificate = true
	}
	return base
}

// normalizeListenAddress accepts a bare port like the EXPOSE variable holds.
func normalizeListenAddress(addr string) string {
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}

func newRouter(metricPath string, metrics http.Handler) *mux.Router {
	// landingPage contains the HTML served at '/'.
	var landingPage = []byte(`<html>
<head><title>SQL Server Database exporter</title></head>
<body>
<h1>SQL Server Database exporter</h1>
<p><a href='` + metricPath + `'>Metrics</a></p>
</body>
</html>
`)

	router := mux.NewRouter()
	router.Handle(metricPath, metrics).Methods(http.MethodGet)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(landingPage)
	}).Methods(http.MethodGet)
	return router
}

type handlerOpts struct {
	honorTimeout  bool
	timeoutOffset float64
}

func newHandler(exporter *collector.Exporter, opts handlerOpts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A started scrape runs to completion even if the client goes away.
		ctx := context.WithoutCancel(r.Context())
		if opts.honorTimeout {
			var cancel context.CancelFunc
			ctx, cancel = withScrapeTimeout(ctx, r.Header.Get("X-Prometheus-Scrape-Timeout-Seconds"), opts.timeoutOffset)
			defer cancel()
		}

		collectors := filterCollectors(exporter.Collectors(), r.URL.Query()["collect[]"])

		if err := exporter.Scrape(ctx, collectors); err != nil {
			w.Header().Set("X-Error", headerValue(err.Error()))
			promhttp.HandlerFor(exporter.UpGatherer(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
			return
		}

		// Delegate http serving to Prometheus client library.
		promhttp.HandlerFor(exporter.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
	}
}

func withScrapeTimeout(ctx context.Context, header string, offset float64) (context.Context, context.CancelFunc) {
	if header == "" {
		return ctx, func() {}
	}

	timeoutSeconds, err := strconv.ParseFloat(header, 64)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Failed to parse timeout from Prometheus header")
		return ctx, func() {}
	}

	if offset >= timeoutSeconds {
		// Ignore timeout offset if it doesn't leave time to scrape.
		log.WithFields(log.Fields{"offset": offset, "prometheus_scrape_timeout": timeoutSeconds}).Error("Timeout offset should be lower than prometheus scrape timeout")
	} else {
		timeoutSeconds -= offset
	}
	return context.WithTimeout(ctx, time.Duration(timeoutSeconds*float64(time.Second)))
}

// filterCollectors keeps registry order whatever the order of names.
func filterCollectors(collectors []collector.Collector, names []string) []collector.Collector {
	if len(names) == 0 {
		return collectors
	}

	filters := make(map[string]bool)
	for _, name := range names {
		filters[name] = true
	}

	var filtered []collector.Collector
	for _, c := range collectors {
		if filters[c.Name()] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func headerValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// writeDocs prints every collector's metrics and query as SQL comments.
func writeDocs(w io.Writer, collectors []collector.Collector) {
	for _, c := range collectors {
		for _, m := range c.Metrics() {
			fmt.Fprintf(w, "-- %s %s\n", m.Name, m.Help)
		}
		fmt.Fprintf(w, "%s;\n\n", c.Query())
	}

	fmt.Fprintln(w, "/*")
	for _, c := range collectors {
		for _, m := range c.Metrics() {
			name := m.Name
			if len(m.LabelNames) > 0 {
				name += "{" + strings.Join(m.LabelNames, ",") + "}"
			}
			fmt.Fprintf(w, "* %s %s\n", name, m.Help)
		}
	}
	fmt.Fprintln(w, "*/")
}
