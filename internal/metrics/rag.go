package metrics

import "github.com/prometheus/client_golang/prometheus"

// Question answering and ingestion Prometheus metrics.
var (
	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haqnow_rag",
			Name:      "questions_total",
			Help:      "Total number of questions by outcome",
		},
		[]string{"outcome"}, // "answered" / "degraded" / "failed"
	)

	QuestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "haqnow_rag",
			Name:      "question_duration_seconds",
			Help:      "End-to-end question answering duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "haqnow_rag",
			Name:      "retrieved_chunks",
			Help:      "Number of chunks retrieved per question after filtering",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haqnow_rag",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "haqnow_rag",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	IngestedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haqnow_rag",
			Name:      "ingested_documents_total",
			Help:      "Total number of ingested documents by terminal status",
		},
		[]string{"status"}, // "indexed" / "failed"
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "haqnow_rag",
			Name:      "ingest_duration_seconds",
			Help:      "Per-document ingestion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

var ragMetricsRegistered bool

// RegisterRAGMetrics registers Prometheus question and ingestion metrics. Must be called once from main.
func RegisterRAGMetrics() {
	if ragMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuestionsTotal)
	prometheus.MustRegister(QuestionDuration)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	prometheus.MustRegister(IngestedDocumentsTotal)
	prometheus.MustRegister(IngestDuration)
	ragMetricsRegistered = true
}
