// Package metricsroute registers the prometheus /metrics endpoint on the
// shared echo instance, alongside health's /healthz and /readyz.
package metricsroute

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	echofx "github.com/flowkit/jobqueue/pkg/fx/echo"
)

var Module = fx.Module("metricsroute",
	fx.Provide(
		fx.Annotate(
			NewHandler,
			fx.As(new(echofx.RouteRegistrar)),
			fx.ResultTags(`group:"route_registrar"`),
		),
	),
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
