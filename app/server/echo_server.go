package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mahesh-hegde/explorer/app/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

// NewEcho builds the HTTP server with its middleware and routes. Metrics
// registered on reg are served at /metrics.
func NewEcho(controller *ExplorerController, conf *config.ExplorerConfig, serverConf config.ServerRuntimeConfig, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = jsonErrorHandler
	e.HideBanner = true

	if serverConf.CertDir != "" {
		e.Pre(middleware.HTTPSRedirect())
	}
	e.Pre(middleware.RemoveTrailingSlash())
	if serverConf.AcmeEnabled && len(conf.Hostnames) > 0 {
		e.Pre(echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				req := c.Request()
				url := req.URL
				if req.Host != conf.Hostnames[0] {
					url.Host = conf.Hostnames[0]
					slog.Info("redirect to canonical hostname", "original_hostname", req.Host)
					return c.Redirect(http.StatusPermanentRedirect, url.String())
				}
				return next(c)
			}
		}))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	var identifierExtractor middleware.Extractor
	if serverConf.BehindLoadBalancer {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		}
	} else {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.Request().RemoteAddr, nil
		}
	}

	if serverConf.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(serverConf.RateLimit),
					Burst:     3 * serverConf.RateLimit,
					ExpiresIn: 3 * time.Minute,
				},
			),
			IdentifierExtractor: identifierExtractor,
			ErrorHandler: func(c echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
			},
		}))
	}

	if serverConf.GzipLevel != 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: serverConf.GzipLevel, MinLength: 512}))
	}

	if conf.TimeoutSeconds != 0 {
		e.Use(middleware.ContextTimeout(time.Duration(conf.TimeoutSeconds) * time.Second))
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   conf.LogLatency,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.String("remote_ip", v.RemoteIP),
					slog.String("request_id", v.RequestID),
				)
			} else {
				logger.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
					slog.String("remote_ip", v.RemoteIP),
					slog.String("request_id", v.RequestID),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
				)
			}
			return nil
		},
	}))

	e.GET("/healthz", controller.GetHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := e.Group("/api")

	api.POST("/contexts/evaluate", controller.EvaluateContext)
	api.POST("/contexts", controller.PersistContext)
	api.GET("/contexts/:hash", controller.FetchContext)
	api.POST("/index", controller.GetSharedIndex)
	api.POST("/dimensions", controller.GetDimension)
	api.POST("/filters", controller.GetFilter)
	api.POST("/metadata", controller.GetMetadata)
	api.POST("/slice-matrix", controller.GetSliceMatrix)
	api.GET("/datasets", controller.ListDatasets)
	api.GET("/datasets/:id", controller.GetDataset)
	api.GET("/search", controller.SearchEntities)

	api.POST("/plot/resolve", controller.ResolvePlot)
	api.POST("/plot/filter-mask", controller.FilterMask)
	api.POST("/plot/waterfall", controller.Waterfall)
	api.POST("/plot/regression", controller.Regression)
	api.POST("/plot/heatmap", controller.Heatmap)
	api.POST("/plot/encode", controller.EncodePlot)
	api.GET("/plot/decode/:encoded", controller.DecodePlot)

	api.GET("/catalog", controller.ListCatalog)
	api.POST("/catalog", controller.SaveToCatalog)
	api.DELETE("/catalog/:hash", controller.DeleteFromCatalog)

	return e
}

func StartServer(controller *ExplorerController, conf *config.ExplorerConfig, serverConf config.ServerRuntimeConfig, reg *prometheus.Registry) {
	e := NewEcho(controller, conf, serverConf, reg)

	addr := fmt.Sprintf("%s:%d", serverConf.Addr, serverConf.Port)
	certDir := serverConf.CertDir

	if certDir != "" {
		if serverConf.AcmeEnabled {
			slog.Info("using TLS with ACME", "dir", certDir)
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(conf.Hostnames...)
			e.AutoTLSManager.Cache = autocert.DirCache(certDir)
			e.Logger.Fatal(e.StartAutoTLS(addr))
		} else {
			slog.Info("using TLS with certDir", "dir", certDir)
			e.Logger.Fatal(e.StartTLS(addr, path.Join(certDir, "fullchain.pem"), path.Join(certDir, "privkey.pem")))
		}
	} else {
		slog.Info("starting server", "addr", addr)
		e.Logger.Fatal(e.Start(addr))
	}
}
