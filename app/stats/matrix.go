package stats

import (
	"math"
)

// Series is one named column of a correlation matrix.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Matrix is a square correlation matrix; Values[i][j] correlates
// Columns[i] with Columns[j].
type Matrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"matrix"`
}

// CorrelationMatrix correlates every pair of series. Each pair only uses the
// positions where both values are finite. With useClustering set the columns
// are reordered so that correlated series end up next to each other; the
// values themselves are unchanged.
func CorrelationMatrix(series []Series, useClustering bool) Matrix {
	n := len(series)
	m := Matrix{
		Columns: make([]string, n),
		Values:  make([][]float64, n),
	}
	for i := range series {
		m.Columns[i] = series[i].Name
		m.Values[i] = make([]float64, n)
	}
	for i := range n {
		for j := i; j < n; j++ {
			x, y := FinitePairs(series[i].Values, series[j].Values)
			r := Pearson(x, y).Statistic
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	if useClustering && n > 2 {
		m = m.Permute(ClusterOrder(m.Values))
	}
	return m
}

// FinitePairs returns the (x[i], y[i]) pairs where both are finite.
func FinitePairs(x, y []float64) (xs, ys []float64) {
	n := min(len(x), len(y))
	xs = make([]float64, 0, n)
	ys = make([]float64, 0, n)
	for i := range n {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return xs, ys
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Permute reorders rows and columns: position i of the result holds what was
// at position order[i].
func (m Matrix) Permute(order []int) Matrix {
	out := Matrix{
		Columns: make([]string, len(order)),
		Values:  make([][]float64, len(order)),
	}
	for i, oi := range order {
		out.Columns[i] = m.Columns[oi]
		out.Values[i] = make([]float64, len(order))
		for j, oj := range order {
			out.Values[i][j] = m.Values[oi][oj]
		}
	}
	return out
}
