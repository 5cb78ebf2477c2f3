// Command salestrack-api serves the sales tracking HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/jacentio/salestrack/api"
	"github.com/jacentio/salestrack/cmd/fx/configfx"
	"github.com/jacentio/salestrack/cmd/fx/salesfx"
	"github.com/jacentio/salestrack/cmd/fx/storefx"
	"github.com/jacentio/salestrack/internal/config"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/sales"
	"github.com/jacentio/salestrack/share"
)

func main() {
	app := fx.New(
		configfx.Module,
		storefx.Module,
		salesfx.Module,

		fx.Provide(provideAuthenticator, provideServer, provideHTTPServer),
		fx.Invoke(startServer),
	)

	app.Run()
}

func provideAuthenticator(cfg config.Config, logger *slog.Logger) *api.Authenticator {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; every request will be rejected")
	}
	return api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
}

func provideServer(p struct {
	fx.In

	Config   config.Config
	Service  *sales.Service
	Shares   *share.Manager
	Prefills *prefill.Engine
	Auth     *api.Authenticator
	Logger   *slog.Logger
}) *api.Server {
	return api.NewServer(p.Service, p.Shares, p.Prefills, p.Auth, api.Options{
		AllowedOrigins: p.Config.AllowedOrigins,
	}, p.Logger)
}

func provideHTTPServer(cfg config.Config, srv *api.Server) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startServer(lc fx.Lifecycle, httpServer *http.Server, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting HTTP server", "addr", httpServer.Addr)
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return httpServer.Shutdown(ctx)
		},
	})
}
