// Package stats computes correlations, regressions and correlation matrices
// over numeric series.
//
// Callers filter their inputs to finite pairs first. Degenerate inputs (fewer
// than two points, or no variance) produce NaN results rather than errors.
package stats

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
)

// Result is the outcome of a correlation test.
type Result struct {
	Statistic float64 `json:"statistic"`
}

// Regression is an ordinary least squares fit of y on x.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RValue    float64 `json:"rvalue"`
	PValue    float64 `json:"pvalue"`
	StdErr    float64 `json:"stderr"`
}

// moments returns the centered sums of squares and cross products of the
// first n points of x and y.
func moments(x, y []float64) (n int, mx, my, sxx, syy, sxy float64) {
	n = min(len(x), len(y))
	if n == 0 {
		return 0, math.NaN(), math.NaN(), 0, 0, 0
	}
	x, y = x[:n], y[:n]
	mx, my = stats.Mean(x), stats.Mean(y)
	for i := range n {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	return n, mx, my, sxx, syy, sxy
}

func pearsonR(sxx, syy, sxy float64) float64 {
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	r := sxy / math.Sqrt(sxx*syy)
	// Rounding can push |r| slightly past 1.
	return math.Max(-1, math.Min(1, r))
}

// Pearson returns the product-moment correlation of x and y.
func Pearson(x, y []float64) Result {
	n, _, _, sxx, syy, sxy := moments(x, y)
	if n < 2 {
		return Result{Statistic: math.NaN()}
	}
	return Result{Statistic: pearsonR(sxx, syy, sxy)}
}

// Spearman returns the rank correlation of x and y. Tied values get the
// average of the ranks they span.
func Spearman(x, y []float64) Result {
	n := min(len(x), len(y))
	if n < 2 {
		return Result{Statistic: math.NaN()}
	}
	return Pearson(Rank(x[:n]), Rank(y[:n]))
}

// Rank returns the 1-based fractional ranks of xs.
func Rank(xs []float64) []float64 {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && xs[order[j]] == xs[order[i]] {
			j++
		}
		// Positions i..j-1 share ranks i+1..j.
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

const tiny = 1e-20

// LinRegress fits y = Slope*x + Intercept. PValue is the two-sided p-value
// for a zero slope, from Student's t with n-2 degrees of freedom.
func LinRegress(x, y []float64) Regression {
	nan := math.NaN()
	n, mx, my, sxx, syy, sxy := moments(x, y)
	if n < 2 || sxx == 0 {
		return Regression{Slope: nan, Intercept: nan, RValue: nan, PValue: nan, StdErr: nan}
	}

	slope := sxy / sxx
	reg := Regression{Slope: slope, Intercept: my - slope*mx}
	if syy == 0 {
		// Flat y: the fit is exact but there is no correlation to test.
		reg.RValue, reg.PValue, reg.StdErr = nan, nan, nan
		return reg
	}
	r := pearsonR(sxx, syy, sxy)
	reg.RValue = r

	if n == 2 {
		// Two points are always fit exactly.
		reg.PValue, reg.StdErr = 0, nan
		return reg
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	reg.PValue = 2 * stats.TDist{V: df}.CDF(-math.Abs(t))
	reg.StdErr = math.Sqrt((1 - r*r) * syy / sxx / df)
	return reg
}
