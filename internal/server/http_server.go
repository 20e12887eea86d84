package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	echoapi "github.com/appboost/bridge/api/echo"
	"github.com/appboost/bridge/config"
	"github.com/appboost/bridge/log"
)

// NewHTTPServer creates and configures the echo HTTP server hosting the
// auth and billing API plus the metrics endpoint.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *echoapi.BridgeAPI, registry *prometheus.Registry) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))

	// Request logging through the shared logger interface.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := map[string]interface{}{
				"method":  c.Request().Method,
				"path":    c.Request().URL.Path,
				"status":  c.Response().Status,
				"latency": time.Since(start).String(),
				"ip":      c.RealIP(),
			}
			if err != nil {
				appLogger.Error(c.Request().Context(), "HTTP request failed", err, fields)
			} else {
				appLogger.Info(c.Request().Context(), "HTTP request", fields)
			}
			return err
		}
	})

	api.RegisterRoutes(e)

	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
