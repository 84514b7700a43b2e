package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/filters"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/mahesh-hegde/explorer/app/plottypes"
)

type FilterMaskRequest struct {
	Filters []filters.Spec `json:"filters"`
	Data    filters.Table  `json:"data"`
	// Previous, when set, is compared with Filters to report which keys
	// changed.
	Previous []filters.Spec `json:"previous,omitempty"`
}

type FilterMaskResponse struct {
	Mask    []bool           `json:"mask"`
	Filters []filters.Filter `json:"filters"`
	Changed []string         `json:"changed"`
}

type RegressionRequest struct {
	Config   plot.PlotConfig    `json:"config"`
	Visible  string             `json:"visible,omitempty"`
	Grouping plottypes.Grouping `json:"grouping"`
}

type EncodeResponse struct {
	Encoded string `json:"encoded"`
}

func (ec *ExplorerController) ResolvePlot(c echo.Context) error {
	var cfg plot.PlotConfig
	if err := ec.bind(c, &cfg); err != nil {
		return err
	}
	resp, err := ec.resolver.ResolvePlot(c.Request().Context(), cfg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (ec *ExplorerController) FilterMask(c echo.Context) error {
	var req FilterMaskRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	fs, err := filters.NormalizeFilters(req.Data, req.Filters)
	if err != nil {
		return err
	}
	resp := FilterMaskResponse{
		Mask:    ec.filters.SatisfiesFilters(fs, req.Data),
		Filters: fs,
		Changed: []string{},
	}
	if req.Previous != nil {
		prev, err := filters.NormalizeFilters(req.Data, req.Previous)
		if err != nil {
			return err
		}
		resp.Changed = filters.GetChangedFilters(prev, fs)
	}
	return c.JSON(http.StatusOK, resp)
}

func (ec *ExplorerController) Waterfall(c echo.Context) error {
	var cfg plot.PlotConfig
	if err := ec.bind(c, &cfg); err != nil {
		return err
	}
	resp, err := ec.resolver.ResolvePlot(c.Request().Context(), cfg)
	if err != nil {
		return err
	}
	sorted, err := plottypes.Waterfall(resp, cfg.ColorProperty)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sorted)
}

func (ec *ExplorerController) Regression(c echo.Context) error {
	var req RegressionRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	resp, err := ec.resolver.ResolvePlot(c.Request().Context(), req.Config)
	if err != nil {
		return err
	}
	rows, err := plottypes.LinearRegressionByGroup(resp, req.Visible, req.Grouping)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (ec *ExplorerController) Heatmap(c echo.Context) error {
	var cfg plot.PlotConfig
	if err := ec.bind(c, &cfg); err != nil {
		return err
	}
	resp, err := plottypes.CorrelationHeatmap(c.Request().Context(), ec.svc, cfg, plottypes.HeatmapOptions{
		MaxEntities: ec.conf.MaxCorrelationEntities,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (ec *ExplorerController) EncodePlot(c echo.Context) error {
	var cfg plot.PlotConfig
	if err := ec.bind(c, &cfg); err != nil {
		return err
	}
	encoded, err := ec.codec.EncodePlotForURL(c.Request().Context(), cfg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EncodeResponse{Encoded: encoded})
}

func (ec *ExplorerController) DecodePlot(c echo.Context) error {
	cfg, err := ec.codec.DecodePlotFromURL(c.Request().Context(), c.Param("encoded"))
	if err != nil {
		return common.WrapErrorForResponse(err, "cannot open shared plot")
	}
	return c.JSON(http.StatusOK, cfg)
}
