package server

import (
	"io"
	"net/http"
	"testing"

	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/filters"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/mahesh-hegde/explorer/app/plottypes"
	"github.com/mahesh-hegde/explorer/app/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sox10Dimension(dataset string) dataservice.Dimension {
	return dataservice.Dimension{
		AxisType: dataservice.AxisEntity, EntityType: "gene", DatasetID: dataset,
		Context: geneContext("SOX10"), Aggregation: stats.AggFirst,
	}
}

func TestResolveRoute(t *testing.T) {
	s := newTestServer(t)

	cfg := plot.PlotConfig{
		PlotType:   plot.PlotDensity1D,
		IndexType:  "depmap_model",
		Dimensions: map[string]dataservice.Dimension{plot.RoleX: sox10Dimension("expression")},
	}
	var resp plot.PlotResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/resolve", cfg, &resp))
	assert.Equal(t, []string{"A375", "A549", "SKMEL5", "MCF7"}, resp.IndexLabels)
	assert.Equal(t, dataservice.Values{8.1, 0.5, 7.7, 0.3}, resp.Dimensions[plot.RoleX].Values)
	assert.Equal(t, "SOX10 Expression", resp.Dimensions[plot.RoleX].Label)

	var body dataservice.ErrorBody
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/plot/resolve", plot.PlotConfig{}, &body))
	assert.Contains(t, body.Error, "index type")
}

func TestWaterfallRoute(t *testing.T) {
	s := newTestServer(t)

	cfg := plot.PlotConfig{
		PlotType:   plot.PlotWaterfall,
		IndexType:  "depmap_model",
		Dimensions: map[string]dataservice.Dimension{plot.RoleX: sox10Dimension("crispr")},
	}
	var resp plot.PlotResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/waterfall", cfg, &resp))
	assert.Equal(t, []string{"A375", "SKMEL5", "A549", "HELA"}, resp.IndexLabels)
	assert.Equal(t, dataservice.Values{0, 1, 2, 3}, resp.Dimensions[plot.RoleX].Values)
	assert.Equal(t, dataservice.Values{-1.2, -1.0, 0.1, 0.2}, resp.Dimensions[plot.RoleY].Values)
	assert.Equal(t, []string{"ACH-000001", "ACH-000003", "ACH-000002", "ACH-000004"}, resp.IndexAliases[0].Values)
}

func TestRegressionRoute(t *testing.T) {
	s := newTestServer(t)

	req := RegressionRequest{
		Config: plot.PlotConfig{
			PlotType:  plot.PlotScatter,
			IndexType: "depmap_model",
			Dimensions: map[string]dataservice.Dimension{
				plot.RoleX: sox10Dimension("crispr"),
				plot.RoleY: sox10Dimension("expression"),
			},
			Metadata: map[string]plot.MetadataRef{"lineage": {SliceID: "lineage"}},
		},
		Grouping: plottypes.Grouping{CategoryKey: "lineage"},
	}
	var rows []plottypes.GroupRegression
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/regression", req, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Lung", *rows[0].Group)
	assert.Equal(t, 1, rows[0].N)
	assert.Equal(t, "Skin", *rows[1].Group)
	assert.Equal(t, 2, rows[1].N)
	assert.InDelta(t, -2.0, float64(rows[1].Slope), 1e-9)
}

func TestHeatmapRoute(t *testing.T) {
	s := newTestServer(t)

	genes := kinases()
	cfg := plot.PlotConfig{
		PlotType:  plot.PlotCorrelationHeatmap,
		IndexType: "depmap_model",
		Dimensions: map[string]dataservice.Dimension{
			plot.RoleX: {AxisType: dataservice.AxisContext, EntityType: "gene", DatasetID: "crispr", Context: &genes, Aggregation: stats.AggCorrelation},
		},
		Filters: map[string]contexts.Context{
			plottypes.FilterDistinguish2: {Name: "Skin", DimensionType: "depmap_model", Expr: contexts.Eq("lineage", "Skin")},
		},
	}
	var resp plottypes.HeatmapResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/heatmap", cfg, &resp))
	assert.Equal(t, "Kinases (2 genes)", resp.AxisLabel)
	require.Len(t, resp.Dimensions, 2)

	x := resp.Dimensions[plot.RoleX]
	assert.Equal(t, []string{"BRAF", "MAPK1"}, x.Columns)
	assert.Equal(t, 4, x.IndexCount)
	assert.InDelta(t, 1.0, x.Matrix[0][0], 1e-9)
	assert.Equal(t, 2, resp.Dimensions[plot.RoleX2].IndexCount)

	// Every gene is more than the configured maximum of three.
	all := contexts.AllOf("gene")
	cfg.Dimensions[plot.RoleX] = dataservice.Dimension{AxisType: dataservice.AxisContext, EntityType: "gene", DatasetID: "crispr", Context: &all, Aggregation: stats.AggCorrelation}
	resp = plottypes.HeatmapResponse{}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/heatmap", cfg, &resp))
	assert.NotEmpty(t, resp.Placeholder)
	assert.Empty(t, resp.Dimensions)
}

func TestFilterMaskRoute(t *testing.T) {
	s := newTestServer(t)

	domain := [2]float64{1, 5}
	req := FilterMaskRequest{
		Filters:  []filters.Spec{{Kind: filters.KindRange, Key: "score", Label: "Score", Value: []float64{2, 10}}},
		Previous: []filters.Spec{{Kind: filters.KindRange, Key: "score", Label: "Score", Domain: &domain}},
		Data:     filters.Table{"score": {1.0, 5.0, nil}},
	}
	var resp struct {
		Mask    []bool   `json:"mask"`
		Changed []string `json:"changed"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/filter-mask", req, &resp))
	assert.Equal(t, []bool{false, true, false}, resp.Mask)
	assert.Equal(t, []string{"score"}, resp.Changed)

	bad := FilterMaskRequest{Filters: []filters.Spec{{Kind: "slider", Key: "score", Label: "Score"}}}
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/plot/filter-mask", bad, nil))
}

func TestEncodeDecodeRoutes(t *testing.T) {
	s := newTestServer(t)

	genes := kinases()
	cfg := plot.PlotConfig{
		PlotType:  plot.PlotScatter,
		IndexType: "depmap_model",
		Dimensions: map[string]dataservice.Dimension{
			plot.RoleX: sox10Dimension("crispr"),
			plot.RoleY: {AxisType: dataservice.AxisContext, EntityType: "gene", DatasetID: "expression", Context: &genes, Aggregation: stats.AggMean},
		},
		Filters: map[string]contexts.Context{
			plot.FilterVisible: contexts.Negate(contexts.Context{Name: "Skin", DimensionType: "depmap_model", Expr: contexts.Eq("lineage", "Skin")}),
		},
	}
	var enc EncodeResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/encode", cfg, &enc))
	require.NotEmpty(t, enc.Encoded)

	var decoded plot.PlotConfig
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/plot/decode/"+enc.Encoded, nil, &decoded))
	assert.Equal(t, cfg.IndexType, decoded.IndexType)
	assert.True(t, contexts.Equal(genes, *decoded.Dimensions[plot.RoleY].Context))
	assert.True(t, decoded.Filters[plot.FilterVisible].Negated)

	// The persisted contexts are fetchable by anyone holding the URL.
	hash, err := genes.Hash()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/contexts/"+hash, nil, nil))

	var body dataservice.ErrorBody
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/plot/decode/not-a-plot", nil, &body))
	assert.Equal(t, "cannot open shared plot: malformed plot URL", body.Error)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	var saved dataservice.PersistResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/catalog", SaveContextRequest{Context: kinases()}, &saved))
	require.NotEmpty(t, saved.Hash)

	var entries []contexts.CatalogEntry
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/catalog?dimension_type=gene", nil, &entries))
	assert.Equal(t, []contexts.CatalogEntry{{Hash: saved.Hash, Name: "Kinases", DimensionType: "gene"}}, entries)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/catalog/"+saved.Hash, nil, nil))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/catalog", nil, &entries))
	assert.Empty(t, entries)

	unnamed := kinases()
	unnamed.Name = ""
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/catalog", SaveContextRequest{Context: unnamed}, nil))
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t)

	cfg := plot.PlotConfig{
		IndexType:  "depmap_model",
		Dimensions: map[string]dataservice.Dimension{plot.RoleX: sox10Dimension("crispr")},
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/plot/resolve", cfg, nil))

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "explorer_plot_resolve_seconds")
	assert.Contains(t, string(data), "explorer_memo_requests_total")
}
