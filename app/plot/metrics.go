package plot

import "github.com/prometheus/client_golang/prometheus"

var resolveSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "explorer",
	Name:      "plot_resolve_seconds",
	Help:      "Time spent resolving uncached plot dimensions.",
	Buckets:   prometheus.DefBuckets,
}, []string{"index_type"})

func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(resolveSeconds)
}
