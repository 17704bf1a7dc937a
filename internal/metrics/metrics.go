package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts image generations by outcome.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renderri_generations_total",
		Help: "Image generation attempts by outcome.",
	}, []string{"outcome"})

	// QuotaExceededTotal counts requests rejected for lack of quota.
	QuotaExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renderri_quota_exceeded_total",
		Help: "Generation requests rejected because the weekly quota was spent.",
	})

	// RefundFailuresTotal counts quota refunds that could not be written back.
	RefundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renderri_quota_refund_failures_total",
		Help: "Quota compensation writes that failed after retries.",
	})

	// HistoryInsertFailuresTotal counts history rows lost after a successful
	// generation. The request still succeeds; this is the only visibility.
	HistoryInsertFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renderri_history_insert_failures_total",
		Help: "Generation history inserts that failed and were swallowed.",
	})

	// EnhancementsTotal counts enhancement attempts by outcome.
	EnhancementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renderri_enhancements_total",
		Help: "Image enhancement attempts by outcome.",
	}, []string{"outcome"})

	// OffloadsTotal counts worker image offloads by outcome.
	OffloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renderri_image_offloads_total",
		Help: "Image offload jobs by outcome.",
	}, []string{"outcome"})
)
