package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
)

// Module provides the HTTP server and binds it to the application
// lifecycle.
var Module = fx.Module("api",
	fx.Provide(NewServer),
	fx.Invoke(registerServer),
)

type serverParams struct {
	fx.In
	LC     fx.Lifecycle
	Cfg    *config.Config
	Logger *zap.Logger
	Server *Server
}

func registerServer(params serverParams) {
	srv := &http.Server{
		Addr:    params.Cfg.Server.Addr,
		Handler: params.Server.Handler(),
	}

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Bind synchronously so a busy port fails startup instead
			// of dying in the background.
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}

			params.Logger.Info("HTTP server listening", zap.String("addr", srv.Addr))

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					params.Logger.Error("HTTP server exited", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("Shutting down HTTP server")

			return srv.Shutdown(ctx)
		},
	})
}
