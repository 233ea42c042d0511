// Package echo wires the minimal HTTP health/metrics façade into fx using a
// RouteRegistrar group, so independently provided services can each
// contribute routes without knowing about each other.
package echo

import (
	"context"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/flowkit/jobqueue/pkg/config"
)

var log = logging.Logger("fx/echo")

var Module = fx.Module("echo",
	fx.Provide(NewEcho),
	fx.Invoke(RegisterRoutes, StartEchoServer),
)

// RouteRegistrar is implemented by any component that wants to contribute
// routes to the shared echo instance (health, metrics, ...).
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	return e
}

// Server wraps echo with fx lifecycle management.
type Server struct {
	echo *echo.Echo
	addr string
}

func (s *Server) Address() string { return s.addr }

func StartEchoServer(cfg config.AppConfig, e *echo.Echo, lc fx.Lifecycle) (*Server, error) {
	addr := cfg.Server.Addr()
	srv := &Server{echo: e, addr: addr}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("starting health server on %s", addr)
			go func() {
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					log.Errorf("health server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down health server")
			return e.Shutdown(ctx)
		},
	})
	return srv, nil
}

type routeParams struct {
	fx.In
	Registrars []RouteRegistrar `group:"route_registrar"`
}

func RegisterRoutes(e *echo.Echo, params routeParams) {
	log.Infof("registering routes from %d registrars", len(params.Registrars))
	for _, r := range params.Registrars {
		r.RegisterRoutes(e)
	}
}
