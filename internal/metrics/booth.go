// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instrumentation for boothd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boothd_sessions_started_total",
		Help: "Total number of sessions started",
	})

	sessionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boothd_sessions_completed_total",
		Help: "Total number of sessions that reached the print handoff",
	})

	sessionsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boothd_sessions_cancelled_total",
		Help: "Total number of sessions cancelled by stage",
	}, []string{"stage"}) // stage=capture|composition

	commandRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boothd_command_rejections_total",
		Help: "Commands rejected without side effects by reason",
	}, []string{"command", "reason"}) // reason=conflict|invalid

	// Hardware metrics
	photosCapturedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boothd_photos_captured_total",
		Help: "Capture attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	captureDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boothd_capture_duration_seconds",
		Help:    "Time spent in a single camera capture",
		Buckets: prometheus.DefBuckets,
	})

	compositionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boothd_composition_duration_seconds",
		Help:    "Time spent composing strip and print sheet",
		Buckets: prometheus.DefBuckets,
	})

	printJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boothd_print_jobs_total",
		Help: "Print submissions by outcome",
	}, []string{"outcome"}) // outcome=accepted|failure

	// Health metrics
	healthLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boothd_health_level",
		Help: "Current health level (0=ok, 1=warning, 2=error)",
	})

	// Fileserver metrics
	fileRequestsDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boothd_file_requests_denied_total",
		Help: "Artifact file requests denied by reason",
	}, []string{"reason"})
)

func IncSessionStarted()               { sessionsStartedTotal.Inc() }
func IncSessionCompleted()             { sessionsCompletedTotal.Inc() }
func IncSessionCancelled(stage string) { sessionsCancelledTotal.WithLabelValues(stage).Inc() }

func IncCommandRejected(command, reason string) {
	commandRejectionsTotal.WithLabelValues(command, reason).Inc()
}

func IncPhotoCaptured(outcome string)        { photosCapturedTotal.WithLabelValues(outcome).Inc() }
func ObserveCaptureDuration(sec float64)     { captureDurationSeconds.Observe(sec) }
func ObserveCompositionDuration(sec float64) { compositionDurationSeconds.Observe(sec) }

func IncPrintJob(outcome string) { printJobsTotal.WithLabelValues(outcome).Inc() }

func RecordHealthLevel(level int) { healthLevel.Set(float64(level)) }

func IncFileRequestDenied(reason string) { fileRequestsDeniedTotal.WithLabelValues(reason).Inc() }
