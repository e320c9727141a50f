// Package metrics counts scraper runs and their per-URL outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadscraper"

// Run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeNoLeads = "no_leads"
	OutcomeError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Runs            *prometheus.CounterVec
	URLsDiscovered  prometheus.Counter
	URLsSkipped     *prometheus.CounterVec
	Leads           prometheus.Counter
	ClassifierCalls *prometheus.CounterVec
}

// New registers the scraper counters plus Go runtime collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		URLsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_discovered_total",
			Help:      "Candidate URLs returned by discovery.",
		}),
		URLsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_skipped_total",
			Help:      "Discovered URLs that produced no lead, by reason.",
		}, []string{"reason"}),
		Leads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Lead records produced.",
		}),
		ClassifierCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_calls_total",
			Help:      "Classifier questions asked, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Runs,
		m.URLsDiscovered,
		m.URLsSkipped,
		m.Leads,
		m.ClassifierCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
