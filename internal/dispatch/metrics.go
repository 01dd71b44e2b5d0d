package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics, registered in the default registry.
var (
	chunksMeshed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxmesh",
		Name:      "chunks_meshed_total",
		Help:      "Number of chunk meshes applied to the renderer.",
	})
	meshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxmesh",
		Name:      "mesh_failures_total",
		Help:      "Number of mesh worker failures.",
	})
	quadsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxmesh",
		Name:      "quads_emitted_total",
		Help:      "Number of merged quads emitted across all chunks.",
	})
	meshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voxmesh",
		Name:      "mesh_duration_seconds",
		Help:      "Time spent meshing a single chunk.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	deferredResults = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voxmesh",
		Name:      "deferred_results",
		Help:      "Mesh results waiting for the texture atlas to finish building.",
	})
)

func init() {
	prometheus.MustRegister(chunksMeshed, meshFailures, quadsEmitted, meshDuration, deferredResults)
}
