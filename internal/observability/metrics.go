// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the FamTrack Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EmailsTotal     *prometheus.CounterVec
	RemindersTotal  *prometheus.CounterVec
	SweptTotal      *prometheus.CounterVec
}

// NewMetrics creates the FamTrack collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famtrack_http_requests_total",
				Help: "Total number of API requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "famtrack_http_request_duration_seconds",
				Help:    "API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famtrack_emails_total",
				Help: "Total number of email deliveries by template and status",
			},
			[]string{"template", "status"},
		),
		RemindersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famtrack_reminders_total",
				Help: "Total number of expense reminders by trigger and status",
			},
			[]string{"trigger", "status"},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famtrack_expired_rows_swept_total",
				Help: "Total number of expired rows removed by the sweep, by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.EmailsTotal, m.RemindersTotal, m.SweptTotal)
	return m
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordEmail records one delivery attempt. status is "sent" or "failed".
func (m *Metrics) RecordEmail(template, status string) {
	m.EmailsTotal.WithLabelValues(template, status).Inc()
}

// RecordReminders adds a dispatch tally.
func (m *Metrics) RecordReminders(trigger string, sent, failed int) {
	m.RemindersTotal.WithLabelValues(trigger, "sent").Add(float64(sent))
	m.RemindersTotal.WithLabelValues(trigger, "failed").Add(float64(failed))
}

// RecordSweep adds the rows removed by one expiry sweep.
func (m *Metrics) RecordSweep(kind string, n int64) {
	m.SweptTotal.WithLabelValues(kind).Add(float64(n))
}
