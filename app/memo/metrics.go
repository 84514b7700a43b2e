package memo

import "github.com/prometheus/client_golang/prometheus"

const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultShared      = "shared"
	resultError       = "error"
	resultUncacheable = "uncacheable"
)

var requests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "explorer",
	Subsystem: "memo",
	Name:      "requests_total",
	Help:      "Memoized calls by memoizer name and outcome.",
}, []string{"memo", "result"})

// RegisterMetrics registers the memo counters with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(requests)
}

func observe(name, result string) {
	requests.WithLabelValues(name, result).Inc()
}
