// Package telemetry holds the Prometheus counters shared by the client components.
package telemetry

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "anidbkit"

// Metrics holds the instruments of one client instance. Each instance owns its registry so
// several clients (and tests) can coexist in a process.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheWrites prometheus.Counter
	CachePruned prometheus.Counter

	Requests    prometheus.Counter
	RateLimited prometheus.Counter

	CatalogStages *prometheus.CounterVec
	IndexBuilds   prometheus.Counter
	IndexedTitles prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Responses served from the response cache.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Response cache lookups that found nothing usable.",
		}),
		CacheWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Responses written to the response cache.",
		}),
		CachePruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_pruned_total",
			Help:      "Expired cache entries removed.",
		}),
		Requests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Governed requests sent to the API.",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate governor.",
		}),
		CatalogStages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_stages_total",
			Help:      "Catalog acquisition stages executed, by stage.",
		}, []string{"stage"}),
		IndexBuilds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Title index builds.",
		}),
		IndexedTitles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_titles",
			Help:      "Titles in the current index.",
		}),
	}
}

// Sample is one gathered series.
type Sample struct {
	Name   string  `json:"name" yaml:"name"`
	Labels string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64 `json:"value" yaml:"value"`
}

// Snapshot gathers every counter and gauge of the registry, sorted by name and labels.
func (m *Metrics) Snapshot() ([]Sample, error) {
	mfs, err := m.Registry.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "failed to gather metrics")
	}

	var samples []Sample
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			value := metric.GetCounter().GetValue()
			if metric.GetGauge() != nil {
				value = metric.GetGauge().GetValue()
			}

			samples = append(samples, Sample{
				Name:   mf.GetName(),
				Labels: strings.Join(labels, ","),
				Value:  value,
			})
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})

	return samples, nil
}
