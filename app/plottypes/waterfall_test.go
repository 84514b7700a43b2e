package plottypes

import (
	"math"
	"testing"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func waterfallResponse(x dataservice.Values, category []any) *plot.PlotResponse {
	labels := []string{"A", "B", "C", "D", "E"}[:len(x)]
	resp := &plot.PlotResponse{
		IndexType:    "depmap_model",
		IndexLabels:  labels,
		IndexAliases: []dataservice.Alias{{Label: "ID", Values: append([]string{}, labels...)}},
		Dimensions:   map[string]*plot.DimensionData{plot.RoleX: {Label: "SOX10 CRISPR", Values: x}},
		Filters:      map[string]*plot.FilterData{},
		Metadata:     map[string]*plot.MetadataData{},
	}
	if category != nil {
		resp.Metadata["lineage"] = &plot.MetadataData{Label: "Lineage", Values: category}
	}
	return resp
}

func TestWaterfall_SortsAndRanks(t *testing.T) {
	resp := waterfallResponse(dataservice.Values{3, nan(), 1}, nil)
	resp.Filters[plot.FilterVisible] = &plot.FilterData{Name: "Skin", Values: []bool{true, false, false}}

	out, err := Waterfall(resp, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, out.IndexLabels)
	assert.Equal(t, dataservice.Values{0, 1, 2}, out.Dimensions[plot.RoleX].Values)

	y := out.Dimensions[plot.RoleY]
	assert.Equal(t, "SOX10 CRISPR", y.Label)
	assert.Equal(t, 1.0, y.Values[0])
	assert.Equal(t, 3.0, y.Values[1])
	assert.True(t, math.IsNaN(y.Values[2]))

	assert.Equal(t, []string{"C", "A", "B"}, out.IndexAliases[0].Values)
	assert.Equal(t, []bool{false, true, false}, out.Filters[plot.FilterVisible].Values)

	// The input is not reordered.
	assert.Equal(t, []string{"A", "B", "C"}, resp.IndexLabels)
	_, hasY := resp.Dimensions[plot.RoleY]
	assert.False(t, hasY)
}

func TestWaterfall_Category(t *testing.T) {
	testCases := []struct {
		name     string
		x        dataservice.Values
		category []any
		color    string
		expected []string
	}{
		{
			"missing category first then alphabetical",
			dataservice.Values{5, 4, 3, 2, 1},
			[]any{"Skin", nil, "Lung", "Skin", nil},
			"lineage",
			[]string{"E", "B", "C", "D", "A"},
		},
		{
			"ties keep index order",
			dataservice.Values{1, 1, nan(), 1},
			[]any{"Skin", "Skin", "Skin", "Lung"},
			"lineage",
			[]string{"D", "A", "B", "C"},
		},
		{
			"unresolved color property sorts by value only",
			dataservice.Values{2, 1, 3},
			[]any{"Skin", "Lung", "Bone"},
			"disease",
			[]string{"B", "A", "C"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Waterfall(waterfallResponse(tc.x, tc.category), tc.color)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out.IndexLabels)
			for _, d := range out.Dimensions {
				assert.Len(t, d.Values, len(tc.expected))
			}
		})
	}
}

func TestWaterfall_NeedsX(t *testing.T) {
	resp := waterfallResponse(dataservice.Values{1}, nil)
	delete(resp.Dimensions, plot.RoleX)
	_, err := Waterfall(resp, "")
	var ce *common.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}
