package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

type SaveContextRequest struct {
	Context     contexts.Context `json:"context"`
	ReplaceHash string           `json:"replace_hash,omitempty"`
}

var errNoCatalog = common.NewUserVisibleError(http.StatusServiceUnavailable, "context catalog is not enabled")

func (ec *ExplorerController) ListCatalog(c echo.Context) error {
	if ec.catalog == nil {
		return errNoCatalog
	}
	entries, err := ec.catalog.List(c.QueryParam("dimension_type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (ec *ExplorerController) SaveToCatalog(c echo.Context) error {
	if ec.catalog == nil {
		return errNoCatalog
	}
	var req SaveContextRequest
	if err := ec.bind(c, &req); err != nil {
		return err
	}
	if err := req.Context.Validate(); err != nil {
		return err
	}
	hash, err := ec.catalog.Save(c.Request().Context(), req.Context, req.ReplaceHash)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataservice.PersistResponse{Hash: hash})
}

func (ec *ExplorerController) DeleteFromCatalog(c echo.Context) error {
	if ec.catalog == nil {
		return errNoCatalog
	}
	if err := ec.catalog.Delete(c.Param("hash")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
