package stats

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegenerateInputs(t *testing.T) {
	testCases := []struct {
		name string
		x, y []float64
	}{
		{"empty", []float64{}, []float64{}},
		{"nil", nil, nil},
		{"single point", []float64{1}, []float64{1}},
		{"constant x", []float64{2, 2, 2}, []float64{1, 2, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.True(t, math.IsNaN(Pearson(tc.x, tc.y).Statistic))
				assert.True(t, math.IsNaN(Spearman(tc.x, tc.y).Statistic))
				reg := LinRegress(tc.x, tc.y)
				assert.True(t, math.IsNaN(reg.Slope))
				assert.True(t, math.IsNaN(reg.PValue))
				assert.True(t, math.IsNaN(reg.StdErr))
			})
		})
	}
}

func TestPearsonAndRegression(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{5, 6, 7, 8, 7}

	assert.InDelta(t, 0.8320503, Pearson(x, y).Statistic, 1e-6)
	assert.InDelta(t, 0.8207827, Spearman(x, y).Statistic, 1e-6)

	reg := LinRegress(x, y)
	assert.InDelta(t, 0.6, reg.Slope, 1e-12)
	assert.InDelta(t, 4.8, reg.Intercept, 1e-12)
	assert.InDelta(t, 0.8320503, reg.RValue, 1e-6)
	assert.InDelta(t, 0.0805096, reg.PValue, 1e-5)
	assert.InDelta(t, 0.2309401, reg.StdErr, 1e-6)
}

func TestLinRegress_PerfectFit(t *testing.T) {
	reg := LinRegress([]float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})
	assert.InDelta(t, 2, reg.Slope, 1e-12)
	assert.InDelta(t, 1, reg.Intercept, 1e-12)
	assert.InDelta(t, 1, reg.RValue, 1e-12)
	assert.InDelta(t, 0, reg.PValue, 1e-9)

	two := LinRegress([]float64{0, 1}, []float64{0, 2})
	assert.Equal(t, 2.0, two.Slope)
	assert.Equal(t, 0.0, two.PValue)
	assert.True(t, math.IsNaN(two.StdErr))

	flat := LinRegress([]float64{1, 2, 3}, []float64{4, 4, 4})
	assert.Equal(t, 0.0, flat.Slope)
	assert.True(t, math.IsNaN(flat.RValue))
	assert.True(t, math.IsNaN(flat.StdErr))
}

func TestRank(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 3.5, 5, 3.5}, Rank([]float64{5, 6, 7, 8, 7}))
	assert.Equal(t, []float64{2, 2, 2}, Rank([]float64{1, 1, 1}))
	assert.Empty(t, Rank(nil))
}

func TestCorrelationMatrix(t *testing.T) {
	series := []Series{
		{Name: "a", Values: []float64{1, 2, 3, 4, math.NaN()}},
		{Name: "b", Values: []float64{2, 4, 6, 8, 100}},
		{Name: "c", Values: []float64{4, 3, 2, 1, 0}},
	}
	m := CorrelationMatrix(series, false)
	assert.Equal(t, []string{"a", "b", "c"}, m.Columns)
	require.Len(t, m.Values, 3)
	for i := range 3 {
		assert.InDelta(t, 1, m.Values[i][i], 1e-12)
	}
	// The NaN in a drops position 4 from that pair only.
	assert.InDelta(t, 1, m.Values[0][1], 1e-12)
	assert.InDelta(t, -1, m.Values[0][2], 1e-12)
	assert.Equal(t, m.Values[1][2], m.Values[2][1])
}

func TestCorrelationMatrix_ClusteringIsPermutation(t *testing.T) {
	series := []Series{
		{Name: "s0", Values: []float64{1, 2, 3, 4, 5, 6}},
		{Name: "s1", Values: []float64{6, 1, 5, 2, 4, 3}},
		{Name: "s2", Values: []float64{1.1, 2.3, 2.9, 4.2, 5.1, 5.8}},
		{Name: "s3", Values: []float64{5, 2, 6, 1, 3, 4}},
		{Name: "s4", Values: []float64{2, 2, 2, 2, 2, 2}},
	}
	plain := CorrelationMatrix(series, false)
	clustered := CorrelationMatrix(series, true)

	assert.ElementsMatch(t, plain.Columns, clustered.Columns)
	assert.Equal(t, sortedValues(plain), sortedValues(clustered))

	// Every cell still correlates the same pair of series.
	pos := map[string]int{}
	for i, c := range plain.Columns {
		pos[c] = i
	}
	for i, ci := range clustered.Columns {
		for j, cj := range clustered.Columns {
			want := plain.Values[pos[ci]][pos[cj]]
			got := clustered.Values[i][j]
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(got))
			} else {
				assert.Equal(t, want, got)
			}
		}
	}

	// s0 and s2 are nearly collinear, they must be adjacent.
	i0, i2 := indexOf(clustered.Columns, "s0"), indexOf(clustered.Columns, "s2")
	assert.Equal(t, 1, abs(i0-i2))

	again := CorrelationMatrix(series, true)
	assert.Equal(t, clustered.Columns, again.Columns)
}

func TestClusterOrder_TiesUseOriginalOrder(t *testing.T) {
	// All off-diagonal distances equal.
	corr := [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	assert.Equal(t, []int{0, 1, 2, 3}, ClusterOrder(corr))
	assert.Equal(t, []int{}, ClusterOrder(nil))
}

func TestAggregate(t *testing.T) {
	xs := []float64{math.NaN(), 4, 1, 3, 2}
	testCases := []struct {
		agg      Aggregation
		expected float64
	}{
		{AggFirst, 4},
		{AggMean, 2.5},
		{AggMedian, 2.5},
	}
	for _, tc := range testCases {
		t.Run(string(tc.agg), func(t *testing.T) {
			got, err := Aggregate(tc.agg, xs)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, got, 1e-12)
		})
	}

	q1, err := Aggregate(AggQ1, xs)
	require.NoError(t, err)
	q3, err := Aggregate(AggQ3, xs)
	require.NoError(t, err)
	assert.Less(t, q1, 2.5)
	assert.Greater(t, q3, 2.5)

	empty, err := Aggregate(AggMean, []float64{math.NaN()})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(empty))

	_, err = Aggregate(AggCorrelation, xs)
	assert.Error(t, err)
	_, err = Aggregate("mode", xs)
	assert.Error(t, err)
	assert.False(t, Aggregation("mode").Valid())
}

func sortedValues(m Matrix) []float64 {
	var out []float64
	for _, row := range m.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				v = math.Inf(1)
			}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
