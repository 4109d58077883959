// Package main provides the entry point for the multi-account Discord
// session manager.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/api"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/app"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/dispatcher"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/infrastructure"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/session"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/voice"
	pkginfra "github.com/3cgajwdsuykk/discord-multi-manager/pkg/infrastructure"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Local development keeps overrides in a .env file; absence is
	// fine in production.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// Domain modules
		gateway.Module,
		session.Module,
		voice.Module,
		dispatcher.Module,
		api.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Route Fx's own logging through Zap
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
