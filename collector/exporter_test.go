package collector

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"yunche.pro/dtsre/prometheus-mssql-exporter/dbutil"
)

type fakeSession struct {
	rows    map[string][]dbutil.Row
	errs    map[string]error
	queries []string
	closed  int
}

func (s *fakeSession) FetchRowsWithContext(_ context.Context, query string, _ ...interface{}) ([]dbutil.Row, error) {
	s.queries = append(s.queries, query)
	if err := s.errs[query]; err != nil {
		return nil, err
	}
	return s.rows[query], nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeConnector struct {
	session *fakeSession
	err     error
	opened  int
}

func (c *fakeConnector) Open(context.Context) (dbutil.Session, error) {
	c.opened++
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

// stubCollector records its calls in a shared log.
type stubCollector struct {
	name  string
	calls *[]string
	err   error
	panic bool
	gauge *Gauge
	value float64
}

func (c *stubCollector) Name() string          { return c.name }
func (c *stubCollector) Help() string          { return "stub " + c.name }
func (c *stubCollector) Query() string         { return "SELECT " + c.name }
func (c *stubCollector) Metrics() []MetricInfo { return []MetricInfo{c.gauge.Info()} }

func (c *stubCollector) Update([]dbutil.Row) error {
	*c.calls = append(*c.calls, c.name)
	if c.panic {
		panic("boom")
	}
	if c.err != nil {
		return c.err
	}
	c.gauge.Set(c.value)
	return nil
}

func newStubCollectors(t *testing.T, reg prometheus.Registerer, calls *[]string, names ...string) []*stubCollector {
	t.Helper()
	var stubs []*stubCollector
	for i, name := range names {
		ms := newMetricSet(reg)
		g := newGauge(ms, "stub_"+name, "Stub "+name+".")
		require.NoError(t, ms.err)
		stubs = append(stubs, &stubCollector{name: name, calls: calls, gauge: g, value: float64(i + 1)})
	}
	return stubs
}

func asCollectors(stubs []*stubCollector) []Collector {
	out := make([]Collector, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

func render(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	w := httptest.NewRecorder()
	promhttp.HandlerFor(g, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestExporter_ScrapeOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	var calls []string
	stubs := newStubCollectors(t, reg, &calls, "first", "second", "third", "fourth")

	session := &fakeSession{}
	e, err := NewExporter(&fakeConnector{session: session}, asCollectors(stubs), reg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	}

	want := []string{"first", "second", "third", "fourth"}
	assert.Equal(t, append(append(append([]string{}, want...), want...), want...), calls)
	assert.Equal(t, []string{"SELECT first", "SELECT second", "SELECT third", "SELECT fourth"}, session.queries[:4])
	assert.Equal(t, 3, session.closed)
}

func TestExporter_ScrapeFailureIsolation(t *testing.T) {
	reg := prometheus.NewRegistry()
	var calls []string
	stubs := newStubCollectors(t, reg, &calls, "a", "b", "c")

	session := &fakeSession{errs: map[string]error{}}
	e, err := NewExporter(&fakeConnector{session: session}, asCollectors(stubs), reg)
	require.NoError(t, err)

	// Seed a value for b, then make its query fail.
	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	stubs[1].value = 99
	stubs[0].value = 10
	stubs[2].value = 30
	session.errs["SELECT b"] = errors.New("Invalid object name 'sys.nothing'")

	calls = nil
	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	assert.Equal(t, []string{"a", "c"}, calls)

	got := gathered(t, reg)
	assert.Equal(t, map[string]float64{"": 10}, got["stub_a"])
	assert.Equal(t, map[string]float64{"": 2}, got["stub_b"])
	assert.Equal(t, map[string]float64{"": 30}, got["stub_c"])
	assert.Equal(t, map[string]float64{"": 1}, got["up"])
	assert.Equal(t, map[string]float64{"": 1}, got["mssql_exporter_last_scrape_error"])
	assert.Equal(t, map[string]float64{"collector=a": 0, "collector=b": 1, "collector=c": 0}, got["mssql_exporter_scrape_errors_total"])
}

func TestExporter_ScrapeUpdateErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	var calls []string
	stubs := newStubCollectors(t, reg, &calls, "a", "b", "c")
	stubs[0].err = errors.New("unexpected shape")
	stubs[1].panic = true

	e, err := NewExporter(&fakeConnector{session: &fakeSession{}}, asCollectors(stubs), reg)
	require.NoError(t, err)

	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	assert.Equal(t, []string{"a", "b", "c"}, calls)

	got := gathered(t, reg)
	assert.Equal(t, map[string]float64{"": 0}, got["stub_a"])
	assert.Equal(t, map[string]float64{"": 0}, got["stub_b"])
	assert.Equal(t, map[string]float64{"": 3}, got["stub_c"])
	assert.Equal(t, map[string]float64{"collector=a": 1, "collector=b": 1, "collector=c": 0}, got["mssql_exporter_scrape_errors_total"])
}

func TestExporter_scrapeOneErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	var calls []string
	stubs := newStubCollectors(t, reg, &calls, "q", "u", "p")
	stubs[1].err = errors.New("bad row")
	stubs[2].panic = true

	session := &fakeSession{errs: map[string]error{"SELECT q": errors.New("timeout")}}
	e := &Exporter{}

	var qErr *QueryError
	err := e.scrapeOne(context.Background(), session, stubs[0])
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "q", qErr.Collector)
	assert.Equal(t, "SELECT q", qErr.Query)
	assert.EqualError(t, errors.Unwrap(err), "timeout")

	var uErr *UpdateError
	err = e.scrapeOne(context.Background(), session, stubs[1])
	require.True(t, errors.As(err, &uErr))
	assert.Equal(t, "SELECT u", uErr.Query)
	assert.Contains(t, err.Error(), "bad row")

	err = e.scrapeOne(context.Background(), session, stubs[2])
	require.True(t, errors.As(err, &uErr))
	assert.Contains(t, err.Error(), "panic: boom")
}

func TestExporter_ScrapeConnectFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	var calls []string
	stubs := newStubCollectors(t, reg, &calls, "a", "b")

	connector := &fakeConnector{session: &fakeSession{}}
	e, err := NewExporter(connector, asCollectors(stubs), reg)
	require.NoError(t, err)

	// A successful scrape first, so the full registry has values.
	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	calls = nil

	connector.err = errors.New("Login failed for user 'sa'.")
	err = e.Scrape(context.Background(), e.Collectors())
	require.Error(t, err)

	var connErr *dbutil.ConnectError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "Login failed for user 'sa'.", err.Error())
	assert.Empty(t, calls)

	up := render(t, e.UpGatherer())
	assert.Contains(t, up, "\nup 0\n")
	assert.NotContains(t, up, "stub_")
	assert.NotContains(t, up, "mssql_")

	assert.NoError(t, testutil.GatherAndCompare(e.UpGatherer(), strings.NewReader(`
# HELP up UP Status
# TYPE up gauge
up 0
`)))
	assert.Equal(t, map[string]float64{"": 1}, gathered(t, reg)["mssql_exporter_last_scrape_error"])

	connector.err = nil
	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	got := gathered(t, reg)
	assert.Equal(t, map[string]float64{"": 1}, got["up"])
	assert.Equal(t, map[string]float64{"": 0}, got["mssql_exporter_last_scrape_error"])
}

func TestExporter_ScrapeConnectErrorKept(t *testing.T) {
	connErr := &dbutil.ConnectError{Server: "db:1433", Err: errors.New("dial tcp: refused")}
	e, err := NewExporter(&fakeConnector{err: connErr}, nil, prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Same(t, connErr, e.Scrape(context.Background(), nil))
}

func TestExporter_ScrapeIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	enabled := map[string]bool{"database_state": true, "deadlocks": true, "io_stall": true}
	collectors, err := NewCollectors(reg, Options{}, func(name string) bool { return enabled[name] })
	require.NoError(t, err)

	session := &fakeSession{rows: map[string][]dbutil.Row{
		databaseStateQuery: {{"db1", int64(0)}, {"db2", int64(4)}},
		deadlocksQuery:     {{int64(3)}},
		ioStallQuery(false): {
			{"db1", int64(10), int64(20), int64(30), int64(5), int64(7)},
		},
	}}
	e, err := NewExporter(&fakeConnector{session: session}, collectors, reg)
	require.NoError(t, err)

	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	first := render(t, e.Gatherer())

	require.NoError(t, e.Scrape(context.Background(), e.Collectors()))
	second := render(t, e.Gatherer())

	assert.Equal(t, first, second)
	assert.Contains(t, first, `mssql_database_state{database="db1"} 0`)
	assert.Contains(t, first, `mssql_database_state{database="db2"} 4`)
	assert.Contains(t, first, `mssql_io_stall{database="db1",type="queued_write"} 7`)
	assert.Contains(t, first, "\nup 1\n")
	assert.Contains(t, first, "\nmssql_exporter_last_scrape_error 0\n")
}

func TestNewExporter_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewExporter(&fakeConnector{}, nil, reg)
	require.NoError(t, err)

	_, err = NewExporter(&fakeConnector{}, nil, reg)
	assert.Error(t, err)
}

// sessionPerOpen hands out a new session on every Open.
type sessionPerOpen struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (c *sessionPerOpen) Open(context.Context) (dbutil.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeSession{}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func TestExporter_ConcurrentScrapes(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors, err := NewCollectors(reg, Options{}, func(string) bool { return true })
	require.NoError(t, err)

	connector := &sessionPerOpen{}
	e, err := NewExporter(connector, collectors, reg)
	require.NoError(t, err)

	var want []string
	for _, c := range collectors {
		want = append(want, c.Query())
	}

	const scrapes = 8
	var wg sync.WaitGroup
	for i := 0; i < scrapes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Scrape(context.Background(), e.Collectors()))
		}()
	}
	wg.Wait()

	require.Len(t, connector.sessions, scrapes)
	for _, s := range connector.sessions {
		assert.Equal(t, want, s.queries)
		assert.Equal(t, 1, s.closed)
	}
}
