package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Timer collects cursor-layer counters. A nil *Timer is valid and records nothing.
type Timer struct {
	filterGiven     *prometheus.CounterVec
	filterPassed    *prometheus.CounterVec
	filterDiscarded *prometheus.CounterVec
	filterDuration  *prometheus.HistogramVec
	childAdvances   *prometheus.CounterVec
	scans           *prometheus.CounterVec
}

// NewTimer registers the collectors on reg. A nil reg keeps them unregistered,
// which is what tests want.
func NewTimer(reg prometheus.Registerer) *Timer {
	f := promauto.With(reg)
	return &Timer{
		filterGiven: f.NewCounterVec(prometheus.CounterOpts{
			Name: "record_filter_given_total",
			Help: "Elements handed to a filter stage",
		}, []string{"stage"}),
		filterPassed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "record_filter_passed_total",
			Help: "Elements accepted by a filter stage",
		}, []string{"stage"}),
		filterDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "record_filter_discarded_total",
			Help: "Elements rejected by a filter stage",
		}, []string{"stage"}),
		filterDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "record_filter_duration_seconds",
			Help:    "Time spent evaluating filter predicates",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"stage"}),
		childAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "record_merge_child_advances_total",
			Help: "Child cursor advances issued by merge cursors",
		}, []string{"cursor"}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "record_text_scans_total",
			Help: "Text scans opened, by comparison type",
		}, []string{"comparison"}),
	}
}

func (t *Timer) RecordFilter(stage string, passed bool, d time.Duration) {
	if t == nil {
		return
	}
	t.filterGiven.WithLabelValues(stage).Inc()
	if passed {
		t.filterPassed.WithLabelValues(stage).Inc()
	} else {
		t.filterDiscarded.WithLabelValues(stage).Inc()
	}
	t.filterDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Timer) CountChildAdvance(cursor string, n int) {
	if t == nil || n <= 0 {
		return
	}
	t.childAdvances.WithLabelValues(cursor).Add(float64(n))
}

func (t *Timer) CountScan(comparison string) {
	if t == nil {
		return
	}
	t.scans.WithLabelValues(comparison).Inc()
}

// Collectors exposes the underlying collectors, mostly for tests.
func (t *Timer) Collectors() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"filter_given":     t.filterGiven,
		"filter_passed":    t.filterPassed,
		"filter_discarded": t.filterDiscarded,
		"filter_duration":  t.filterDuration,
		"child_advances":   t.childAdvances,
		"scans":            t.scans,
	}
}
