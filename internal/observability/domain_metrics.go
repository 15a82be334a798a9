package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoptalk_chat_turns_total",
			Help: "Total number of conversation turns by terminal outcome.",
		},
		[]string{"outcome"},
	)
	translationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shoptalk_translation_failures_total",
			Help: "Total number of failed natural-language-to-SQL translator calls.",
		},
	)
	sqlRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shoptalk_sql_rejections_total",
			Help: "Total number of generated SQL statements rejected by validation.",
		},
	)
	warehouseQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoptalk_warehouse_query_duration_seconds",
			Help:    "Warehouse query execution latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	historyWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shoptalk_history_write_failures_total",
			Help: "Total number of failed chat history writes.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		translationFailuresTotal,
		sqlRejectionsTotal,
		warehouseQueryDurationSeconds,
		historyWriteFailuresTotal,
	)
}

func ObserveChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
}

func IncrementTranslationFailure() {
	translationFailuresTotal.Inc()
}

func IncrementSQLRejection() {
	sqlRejectionsTotal.Inc()
}

func ObserveWarehouseQueryDuration(duration time.Duration) {
	warehouseQueryDurationSeconds.Observe(duration.Seconds())
}

func IncrementHistoryWriteFailure() {
	historyWriteFailuresTotal.Inc()
}
