// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the pipeline updates. A single
// instance is created in main and shared.
type Metrics struct {
	StageOutcomes   *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	DocumentSeconds prometheus.Histogram
	LLMCostUSD      prometheus.Counter
	LLMTokens       *prometheus.CounterVec
	ChunksStored    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_stage_outcomes_total",
			Help: "Pipeline stage outcomes by stage and action.",
		}, []string{"stage", "outcome"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_errors_total",
			Help: "Pipeline errors by kind.",
		}, []string{"kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_ingest_queue_depth",
			Help: "Documents waiting in the ingest queue.",
		}),
		DocumentSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkwell_document_duration_seconds",
			Help:    "End-to-end processing time per document.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		LLMCostUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_llm_cost_usd_total",
			Help: "Accumulated LLM spend in USD.",
		}),
		LLMTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_llm_tokens_total",
			Help: "LLM tokens by direction.",
		}, []string{"direction"}),
		ChunksStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_chunks_stored_total",
			Help: "Chunks written to the vector store.",
		}),
	}
}

// RecordStage increments the outcome counter for one stage.
func (m *Metrics) RecordStage(stage, outcome string) {
	m.StageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// RecordError counts one error by kind.
func (m *Metrics) RecordError(kind string) {
	m.Errors.WithLabelValues(kind).Inc()
}

// RecordLLMUsage accumulates spend and token counters.
func (m *Metrics) RecordLLMUsage(usd float64, tokensIn, tokensOut int) {
	m.LLMCostUSD.Add(usd)
	m.LLMTokens.WithLabelValues("in").Add(float64(tokensIn))
	m.LLMTokens.WithLabelValues("out").Add(float64(tokensOut))
}
