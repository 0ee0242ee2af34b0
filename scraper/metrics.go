package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	PagesTotal         *prometheus.CounterVec
	EntriesTotal       *prometheus.CounterVec
	NavigationDuration prometheus.Histogram
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Listing pages processed, by outcome.",
		},
		[]string{"outcome"},
	)
	entries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_entries_total",
			Help: "Species entries processed, by outcome.",
		},
		[]string{"outcome"},
	)
	navigationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_navigation_duration_seconds",
			Help:    "Time spent rendering a page in the browser.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Navigation errors by classified type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(pages, entries, navigationDuration, errorsTotal)

	return &Metrics{
		Registry:           registry,
		PagesTotal:         pages,
		EntriesTotal:       entries,
		NavigationDuration: navigationDuration,
		ErrorsTotal:        errorsTotal,
	}
}

// IncPage increments the page counter for an outcome label.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// IncEntry increments the entry counter for an outcome label.
func (m *Metrics) IncEntry(outcome string) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveNavigation records how long one navigation took.
func (m *Metrics) ObserveNavigation(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationDuration.Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
