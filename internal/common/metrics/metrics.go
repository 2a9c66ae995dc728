// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_runs_total",
			Help: "Total number of verification runs by overall status",
		},
		[]string{"status"},
	)

	VerificationRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "verification_run_duration_seconds",
			Help: "Duration of full verification runs in seconds",
		},
		[]string{"status"},
	)

	FieldVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_field_verdicts_total",
			Help: "Per-field verdict outcomes",
		},
		[]string{"field", "matched"},
	)

	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_extraction_attempts_total",
			Help: "OCR collaborator call attempts by outcome",
		},
		[]string{"outcome"},
	)
)
