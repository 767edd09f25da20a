// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the backserver.
//
// # Description
//
// Metrics cover the two hot paths of the service: the upload/triage flow
// (request counters, upload quality outcomes) and the active-learning
// control plane (label pool depth, retrain runs and durations, promotion
// and rollback counters, the single retrain slot).
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all backserver metrics.
const metricsNamespace = "backserver"

// Metrics holds all Prometheus metrics for the triage backend.
// Initialize once at startup via InitMetrics().
type Metrics struct {
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency by route.
	RequestDurationSeconds *prometheus.HistogramVec

	// UploadsTotal counts image uploads by quality outcome.
	// Labels: status (success, fail)
	UploadsTotal *prometheus.CounterVec

	// CasesSubmittedTotal counts case summaries by entry type.
	// Labels: entry_type (case, uncertain, reject)
	CasesSubmittedTotal *prometheus.CounterVec

	// LabelsAddedTotal counts corrected labels entering the pool.
	LabelsAddedTotal prometheus.Counter

	// UnusedLabels tracks labels not yet consumed by a retrain run.
	UnusedLabels prometheus.Gauge

	// RetrainRunsTotal counts retrain jobs by outcome.
	// Labels: outcome (completed, failed, skipped)
	RetrainRunsTotal *prometheus.CounterVec

	// RetrainDurationSeconds measures end-to-end retrain duration.
	RetrainDurationSeconds prometheus.Histogram

	// RetrainActive is 1 while the single training slot is occupied.
	RetrainActive prometheus.Gauge

	// PromotionsTotal counts registry transitions by kind.
	// Labels: kind (auto, manual, rollback, archived)
	PromotionsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics creates and registers all backserver metrics. Call once at
// startup; a second call returns the existing instance.
func InitMetrics() *Metrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics registers the metric set against the given registerer.
// Tests pass a private registry so parallel packages do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),

		RequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Handler latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Image uploads by quality-gate outcome.",
		}, []string{"status"}),

		CasesSubmittedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cases_submitted_total",
			Help:      "Case summaries submitted by entry type.",
		}, []string{"entry_type"}),

		LabelsAddedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "labels_added_total",
			Help:      "Corrected labels added to the pool.",
		}),

		UnusedLabels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "unused_labels",
			Help:      "Labels in the pool not yet used by a retrain run.",
		}),

		RetrainRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retrain_runs_total",
			Help:      "Retrain jobs by outcome.",
		}, []string{"outcome"}),

		RetrainDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "retrain_duration_seconds",
			Help:      "End-to-end retrain duration.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		}),

		RetrainActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "retrain_active",
			Help:      "1 while the single training slot is occupied.",
		}),

		PromotionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "promotions_total",
			Help:      "Registry transitions by kind.",
		}, []string{"kind"}),
	}
}

// InstrumentHTTP records request counts and latency per route. Uses the
// route template (not the raw path) so case IDs do not explode label
// cardinality.
func (m *Metrics) InstrumentHTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpload records one image upload outcome.
func (m *Metrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
}

// ObserveCase records one case summary submission.
func (m *Metrics) ObserveCase(entryType string) {
	if m == nil {
		return
	}
	m.CasesSubmittedTotal.WithLabelValues(entryType).Inc()
}

// ObserveLabel records one label added and the new unused depth.
func (m *Metrics) ObserveLabel(unusedCount int) {
	if m == nil {
		return
	}
	m.LabelsAddedTotal.Inc()
	m.UnusedLabels.Set(float64(unusedCount))
}

// ObserveRetrain records a finished retrain job.
func (m *Metrics) ObserveRetrain(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RetrainRunsTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.RetrainDurationSeconds.Observe(duration.Seconds())
	}
}

// ObservePromotion records a registry transition.
func (m *Metrics) ObservePromotion(kind string) {
	if m == nil {
		return
	}
	m.PromotionsTotal.WithLabelValues(kind).Inc()
}
