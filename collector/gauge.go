package collector

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var labelNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MetricInfo describes a declared metric handle.
type MetricInfo struct {
	Name       string
	Help       string
	LabelNames []string
}

// Gauge is a handle to an unlabeled gauge.
type Gauge struct {
	info  MetricInfo
	gauge prometheus.Gauge
}

func (g *Gauge) Set(v float64) {
	g.gauge.Set(v)
}

func (g *Gauge) Info() MetricInfo {
	return g.info
}

// GaugeVec is a handle to a labeled gauge. Its label names are the `label`
// tags of L's fields; values can only be supplied as an L, so an update with
// a label set other than the declared one does not compile. L is one of the
// types of package labels, whose constructors take every label.
type GaugeVec[L any] struct {
	info   MetricInfo
	fields []int
	vec    *prometheus.GaugeVec
}

func (g *GaugeVec[L]) Set(labels L, v float64) {
	g.vec.WithLabelValues(g.labelValues(labels)...).Set(v)
}

func (g *GaugeVec[L]) Info() MetricInfo {
	return g.info
}

func (g *GaugeVec[L]) labelValues(labels L) []string {
	rv := reflect.ValueOf(labels)
	values := make([]string, len(g.fields))
	for i, f := range g.fields {
		values[i] = rv.Field(f).String()
	}
	return values
}

// bindLabels derives label names from the struct type t.
func bindLabels(t reflect.Type) ([]string, []int, error) {
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("label set %s is not a struct", t)
	}
	if t.NumField() == 0 {
		return nil, nil, fmt.Errorf("label set %s declares no labels", t)
	}

	names := make([]string, 0, t.NumField())
	fields := make([]int, 0, t.NumField())
	seen := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.String {
			return nil, nil, fmt.Errorf("label set %s: field %s is %s, want string", t, f.Name, f.Type)
		}

		name, ok := f.Tag.Lookup("label")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("label set %s: field %s has no label tag", t, f.Name)
		}
		if !labelNamePattern.MatchString(name) || strings.HasPrefix(name, "__") {
			return nil, nil, fmt.Errorf("label set %s: invalid label name %q", t, name)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("label set %s: duplicate label name %q", t, name)
		}
		seen[name] = true

		names = append(names, name)
		fields = append(fields, i)
	}
	return names, fields, nil
}

// metricSet registers the handles of one collector. The first failure is
// kept and reported when the collector is built, and every handle already
// registered by the set is unregistered again.
type metricSet struct {
	reg        prometheus.Registerer
	infos      []MetricInfo
	registered []prometheus.Collector
	err        error
}

func newMetricSet(reg prometheus.Registerer) *metricSet {
	return &metricSet{reg: reg}
}

func (ms *metricSet) register(c prometheus.Collector, info MetricInfo) bool {
	if ms.err != nil {
		return false
	}
	if err := ms.reg.Register(c); err != nil {
		ms.fail(fmt.Errorf("register %s: %w", info.Name, err))
		return false
	}
	ms.infos = append(ms.infos, info)
	ms.registered = append(ms.registered, c)
	return true
}

func (ms *metricSet) fail(err error) {
	if ms.err != nil {
		return
	}
	ms.err = err
	for _, c := range ms.registered {
		ms.reg.Unregister(c)
	}
	ms.registered = nil
	ms.infos = nil
}

func newGauge(ms *metricSet, name, help string) *Gauge {
	g := &Gauge{
		info:  MetricInfo{Name: name, Help: help},
		gauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}),
	}
	ms.register(g.gauge, g.info)
	return g
}

func newGaugeVec[L any](ms *metricSet, name, help string) *GaugeVec[L] {
	names, fields, err := bindLabels(reflect.TypeOf((*L)(nil)).Elem())
	if err != nil {
		ms.fail(fmt.Errorf("%s: %w", name, err))
		return &GaugeVec[L]{info: MetricInfo{Name: name, Help: help}}
	}

	g := &GaugeVec[L]{
		info:   MetricInfo{Name: name, Help: help, LabelNames: names},
		fields: fields,
		vec:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, names),
	}
	ms.register(g.vec, g.info)
	return g
}
