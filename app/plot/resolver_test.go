package plot

import (
	"context"
	"math"
	"testing"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake() *fakeService {
	return &fakeService{
		index: &dataservice.SharedIndex{
			IndexType: "depmap_model",
			Labels:    []string{"A", "B", "C"},
			Aliases:   []dataservice.Alias{{Label: "ID", Values: []string{"id-a", "id-b", "id-c"}}},
		},
		dimensions: map[string]*dataservice.DimensionResult{
			"crispr":     {Label: "SOX10 CRISPR", DatasetLabel: "CRISPR", IndexedValues: map[string]float64{"A": 1, "C": 3, "Z": 9}},
			"expression": {Label: "SOX10 Expression", DatasetLabel: "Expression", IndexedValues: map[string]float64{"B": 2}},
		},
		filters: map[string]*dataservice.FilterResult{
			"Skin": {Name: "Skin", IndexedValues: map[string]bool{"A": true, "B": false}},
		},
		metadata: map[string]*dataservice.MetadataResult{
			"lineage": {Label: "Lineage", IndexedValues: map[string]any{"B": "Lung", "C": "Skin"}},
		},
	}
}

func dim(dataset string) dataservice.Dimension {
	c := contexts.Context{Name: "SOX10", DimensionType: "gene", Expr: contexts.Eq(contexts.FieldEntityLabel, "SOX10")}
	return dataservice.Dimension{
		AxisType: dataservice.AxisEntity, EntityType: "gene", DatasetID: dataset,
		Context: &c, Aggregation: stats.AggFirst,
	}
}

func skinFilter() contexts.Context {
	return contexts.Context{Name: "Skin", DimensionType: "depmap_model", Expr: contexts.Eq("lineage", "Skin")}
}

func TestFetchPlotDimensions_AlignsEverythingToIndex(t *testing.T) {
	svc := newFake()
	r := NewResolver(svc)

	resp, err := r.FetchPlotDimensions(context.Background(), "depmap_model",
		map[string]dataservice.Dimension{
			RoleX:     dim("crispr"),
			RoleY:     dim("expression"),
			RoleColor: {DatasetID: "crispr"},
		},
		map[string]contexts.Context{FilterVisible: skinFilter()},
		map[string]MetadataRef{
			"lineage": {SliceID: "lineage"},
			"draft":   {SliceID: "partial:lin"},
			"empty":   {},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, resp.IndexLabels)
	assert.Equal(t, []string{"crispr", "expression"}, svc.indexArgs)

	require.Len(t, resp.Dimensions, 2)
	x := resp.Dimensions[RoleX]
	assert.Equal(t, "SOX10 CRISPR", x.Label)
	assert.Equal(t, 1.0, x.Values[0])
	assert.True(t, math.IsNaN(x.Values[1]))
	assert.Equal(t, 3.0, x.Values[2])

	y := resp.Dimensions[RoleY]
	assert.True(t, math.IsNaN(y.Values[0]))
	assert.Equal(t, 2.0, y.Values[1])

	assert.Equal(t, []bool{true, false, false}, resp.Filters[FilterVisible].Values)
	assert.Equal(t, []any{nil, "Lung", "Skin"}, resp.Metadata["lineage"].Values)
	assert.Len(t, resp.Metadata, 1)

	for _, d := range resp.Dimensions {
		assert.Len(t, d.Values, resp.Len())
	}
	assert.Equal(t, 1, svc.Calls("metadata"))
}

func TestFetchPlotDimensions_NoDimensionsStillHasIndex(t *testing.T) {
	svc := newFake()
	r := NewResolver(svc)

	resp, err := r.FetchPlotDimensions(context.Background(), "depmap_model", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, resp.IndexLabels)
	assert.Empty(t, svc.indexArgs)
	assert.Empty(t, resp.Dimensions)
}

func TestFetchPlotDimensions_Memoized(t *testing.T) {
	svc := newFake()
	r := NewResolver(svc)
	ctx := context.Background()
	dims := map[string]dataservice.Dimension{RoleX: dim("crispr")}

	first, err := r.FetchPlotDimensions(ctx, "depmap_model", dims, nil, nil)
	require.NoError(t, err)
	first.Permute([]int{2, 1, 0})

	second, err := r.FetchPlotDimensions(ctx, "depmap_model", map[string]dataservice.Dimension{RoleX: dim("crispr")}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Calls("index"))
	assert.Equal(t, 1, svc.Calls("dimension"))
	// Reordering one caller's copy does not leak into the cache.
	assert.Equal(t, []string{"A", "B", "C"}, second.IndexLabels)
}

func TestFetchPlotDimensions_SubRequestFailure(t *testing.T) {
	svc := newFake()
	svc.failDatasets = map[string]bool{"expression": true}
	r := NewResolver(svc)

	resp, err := r.FetchPlotDimensions(context.Background(), "depmap_model",
		map[string]dataservice.Dimension{RoleX: dim("crispr"), RoleY: dim("expression")}, nil, nil)
	assert.Nil(t, resp)

	var rf *common.ResolutionFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, `dimension "y"`, rf.Request)
	assert.ErrorIs(t, err, errUnavailable)

	// Failures are not cached.
	svc.failDatasets = nil
	_, err = r.FetchPlotDimensions(context.Background(), "depmap_model",
		map[string]dataservice.Dimension{RoleX: dim("crispr"), RoleY: dim("expression")}, nil, nil)
	assert.NoError(t, err)
}

func TestResolvePlot_RequiresIndexType(t *testing.T) {
	r := NewResolver(newFake())
	_, err := r.ResolvePlot(context.Background(), PlotConfig{PlotType: PlotScatter})
	var ce *common.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestPlotResponse_Permute(t *testing.T) {
	resp := &PlotResponse{
		IndexLabels:  []string{"A", "B", "C"},
		IndexAliases: []dataservice.Alias{{Label: "ID", Values: []string{"1", "2", "3"}}},
		Dimensions:   map[string]*DimensionData{RoleX: {Values: dataservice.Values{1, 2, 3}}},
		Filters:      map[string]*FilterData{FilterVisible: {Values: []bool{true, false, true}}},
		Metadata:     map[string]*MetadataData{"m": {Values: []any{"a", nil, "c"}}},
	}
	clone := resp.Clone()
	resp.Permute([]int{2, 0, 1})

	assert.Equal(t, []string{"C", "A", "B"}, resp.IndexLabels)
	assert.Equal(t, []string{"3", "1", "2"}, resp.IndexAliases[0].Values)
	assert.Equal(t, dataservice.Values{3, 1, 2}, resp.Dimensions[RoleX].Values)
	assert.Equal(t, []bool{true, true, false}, resp.Filters[FilterVisible].Values)
	assert.Equal(t, []any{"c", "a", nil}, resp.Metadata["m"].Values)

	assert.Equal(t, []string{"A", "B", "C"}, clone.IndexLabels)
	assert.Equal(t, dataservice.Values{1, 2, 3}, clone.Dimensions[RoleX].Values)
}
