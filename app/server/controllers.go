package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/config"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/filters"
	"github.com/mahesh-hegde/explorer/app/memo"
	"github.com/mahesh-hegde/explorer/app/plot"
)

type ExplorerController struct {
	svc      dataservice.Service
	resolver *plot.Resolver
	codec    *plot.Codec
	filters  *filters.Engine
	catalog  *contexts.Catalog
	conf     *config.ExplorerConfig
	validate *validator.Validate
}

// NewExplorerController serves the data API from svc and resolves plots
// against it. cs persists and restores the contexts of encoded plots.
// catalog may be nil, in which case the catalog routes are unavailable.
func NewExplorerController(
	svc dataservice.Service,
	cs *contexts.ContextService,
	catalog *contexts.Catalog,
	conf *config.ExplorerConfig,
) *ExplorerController {
	ttl := memo.WithTTL(conf.CacheTTL())
	return &ExplorerController{
		svc:      svc,
		resolver: plot.NewResolver(svc, ttl),
		codec:    plot.NewCodec(cs),
		filters:  filters.NewEngine(ttl),
		catalog:  catalog,
		conf:     conf,
		validate: validator.New(),
	}
}

// bind decodes the request body into req and validates it. req must be a
// pointer to a struct.
func (ec *ExplorerController) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := ec.validate.Struct(req); err != nil {
		return common.NewConfigurationError("invalid request: %v", err)
	}
	return nil
}

func (ec *ExplorerController) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"instance": ec.conf.InstanceName,
	})
}
