package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsProcessedTotal, documentsProcessedTotal, resultsPublishedTotal)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_jobs_processed_total",
		Help: "Total number of ingestion jobs finished, labeled by terminal status.",
	},
	[]string{"status"}, // 'done', 'error'
)

var documentsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_documents_processed_total",
		Help: "Total number of documents run through the pipeline, labeled by outcome.",
	},
	[]string{"status"}, // 'processed', 'failed'
)

var resultsPublishedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ingest_results_published_total",
		Help: "Total number of extracted results persisted and broadcast.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncDocument(status string) {
	documentsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func AddResultsPublished(n int) {
	resultsPublishedTotal.Add(float64(n))
}
