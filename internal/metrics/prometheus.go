package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medgraph_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"intent"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medgraph_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medgraph_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RetrievalResultsCount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medgraph_retrieval_results_count",
			Help:    "Number of retrieval results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"branch"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medgraph_cache_hits_total",
			Help: "Total answer cache hits",
		},
		[]string{"result"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgraph_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	GraphEntitiesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgraph_graph_entities_created_total",
			Help: "Total entities created in the knowledge graph",
		},
	)

	GraphRelationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medgraph_graph_relations_created_total",
			Help: "Total relations created in the knowledge graph",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(RetrievalResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(GraphEntitiesCreated)
	prometheus.MustRegister(GraphRelationsCreated)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
