// Command fortivo serves the estate-planning API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/R3E-Network/fortivo/internal/app/runtime"
	"github.com/R3E-Network/fortivo/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $FORTIVO_CONFIG)")
	envFile := flag.String("env", ".env", "dotenv file loaded before configuration; missing files are ignored")
	flag.Parse()

	log := logger.NewDefault("fortivo")
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to load env file")
		}
	}

	app, err := runtime.NewApplication(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := app.Run(ctx)
	if runErr != nil {
		log.WithError(runErr).Error("server stopped")
	}
	if err := app.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
	if runErr != nil {
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
