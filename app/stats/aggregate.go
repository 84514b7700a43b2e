package stats

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
)

// Aggregation collapses the values that match one index row into one.
type Aggregation string

const (
	AggFirst       Aggregation = "first"
	AggMean        Aggregation = "mean"
	AggMedian      Aggregation = "median"
	AggQ1          Aggregation = "25%tile"
	AggQ3          Aggregation = "75%tile"
	AggCorrelation Aggregation = "correlation"
)

func (a Aggregation) Valid() bool {
	switch a {
	case AggFirst, AggMean, AggMedian, AggQ1, AggQ3, AggCorrelation:
		return true
	}
	return false
}

// Aggregate applies a to the finite values of xs; with none it returns NaN.
// Correlation is not a per-row reduction, callers build a matrix instead.
func Aggregate(a Aggregation, xs []float64) (float64, error) {
	finite := make([]float64, 0, len(xs))
	for _, x := range xs {
		if isFinite(x) {
			finite = append(finite, x)
		}
	}
	switch a {
	case AggFirst, AggMean, AggMedian, AggQ1, AggQ3:
	case AggCorrelation:
		return 0, fmt.Errorf("aggregation %q does not reduce a row", a)
	default:
		return 0, fmt.Errorf("unknown aggregation %q", a)
	}
	if len(finite) == 0 {
		return math.NaN(), nil
	}

	sample := stats.Sample{Xs: finite}
	switch a {
	case AggFirst:
		return finite[0], nil
	case AggMean:
		return stats.Mean(finite), nil
	case AggMedian:
		return sample.Quantile(0.5), nil
	case AggQ1:
		return sample.Quantile(0.25), nil
	default:
		return sample.Quantile(0.75), nil
	}
}
