package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

func (ec *ExplorerController) EvaluateContext(c echo.Context) error {
	var req contexts.Context
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	set, err := ec.svc.EvaluateContext(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, set)
}

func (ec *ExplorerController) PersistContext(c echo.Context) error {
	var req contexts.Context
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	hash, err := ec.svc.PersistContext(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataservice.PersistResponse{Hash: hash})
}

func (ec *ExplorerController) FetchContext(c echo.Context) error {
	cx, err := ec.svc.FetchContext(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cx)
}

func (ec *ExplorerController) GetSharedIndex(c echo.Context) error {
	var req dataservice.IndexRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	idx, err := ec.svc.GetSharedIndex(c.Request().Context(), req.IndexType, req.DatasetIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idx)
}

func (ec *ExplorerController) GetDimension(c echo.Context) error {
	var req dataservice.DimensionRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	if !req.Dimension.IsComplete() {
		return common.NewConfigurationError("dimension is incomplete")
	}
	res, err := ec.svc.GetDimension(c.Request().Context(), req.IndexType, req.Dimension)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (ec *ExplorerController) GetFilter(c echo.Context) error {
	var req dataservice.FilterRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	res, err := ec.svc.GetFilter(c.Request().Context(), req.IndexType, req.Context)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (ec *ExplorerController) GetMetadata(c echo.Context) error {
	var req dataservice.MetadataRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	res, err := ec.svc.GetMetadata(c.Request().Context(), req.IndexType, req.SliceID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (ec *ExplorerController) GetSliceMatrix(c echo.Context) error {
	var req dataservice.SliceMatrixRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	if req.DatasetID == "" {
		return common.NewConfigurationError("dataset_id is required")
	}
	res, err := ec.svc.GetSliceMatrix(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (ec *ExplorerController) ListDatasets(c echo.Context) error {
	res, err := ec.svc.ListDatasets(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (ec *ExplorerController) GetDataset(c echo.Context) error {
	id := c.Param("id")
	all, err := ec.svc.ListDatasets(c.Request().Context())
	if err != nil {
		return err
	}
	for _, d := range all {
		if d.ID == id || (d.GivenID != "" && d.GivenID == id) {
			return c.JSON(http.StatusOK, d)
		}
	}
	return common.NewUserVisibleError(http.StatusNotFound, "dataset not found: "+id)
}

func (ec *ExplorerController) SearchEntities(c echo.Context) error {
	limit := defaultSearchLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return common.NewConfigurationError("limit must be a positive integer, got %q", s)
		}
		limit = min(n, maxSearchLimit)
	}
	hits, err := ec.svc.SearchEntities(c.Request().Context(), c.QueryParam("dimension_type"), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hits)
}
