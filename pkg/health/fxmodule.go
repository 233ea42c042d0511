package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	echofx "github.com/flowkit/jobqueue/pkg/fx/echo"
)

// Module provides the Checker and registers /healthz and /readyz.
var Module = fx.Module("health",
	fx.Provide(
		NewChecker,
		fx.Annotate(
			NewHandler,
			fx.As(new(echofx.RouteRegistrar)),
			fx.ResultTags(`group:"route_registrar"`),
		),
	),
)

// Handler registers the health endpoints on the shared echo instance.
type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		resp := h.checker.HealthCheck()
		code := http.StatusOK
		if resp.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	})
	e.GET("/readyz", func(c echo.Context) error {
		resp := h.checker.ReadinessCheck()
		code := http.StatusOK
		if resp.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	})
}
