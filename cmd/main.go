package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wakeupmusic/internal/api"
	"wakeupmusic/internal/clock"
	"wakeupmusic/internal/config"
	"wakeupmusic/internal/ha"
	"wakeupmusic/internal/wakeup"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Fatal("Failed to load settings", zap.Error(err))
	}

	logger.Info("Starting Wakeup Music Client",
		zap.String("url", settings.HAURL),
		zap.String("config_path", settings.ConfigPath),
		zap.Bool("read_only", settings.ReadOnly))

	// Create HA client
	client := ha.NewClient(settings.HAURL, settings.HAToken, logger)

	// Connect to Home Assistant
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
	}
	defer client.Disconnect()

	logger.Info("Connected to Home Assistant")

	// An invalid wakeup config keeps the process alive but inactive, so the
	// health endpoint stays up and the config can be fixed without a crash loop
	var manager *wakeup.Manager
	cfg, err := config.LoadWakeupConfig(settings.ConfigPath, logger)
	if err != nil {
		logger.Error("Invalid wakeup configuration, running inactive", zap.Error(err))
	} else {
		manager = wakeup.NewManager(client, cfg, clock.NewRealClock(), logger, settings.ReadOnly)
		if err := manager.Start(); err != nil {
			logger.Fatal("Failed to start wakeup manager", zap.Error(err))
		}
		defer manager.Stop()
	}

	if settings.ReadOnly {
		logger.Info("Running in READ-ONLY mode - no changes will be made to Home Assistant")
	}

	// Start HTTP API server (port 0 disables it)
	if settings.APIPort > 0 {
		apiServer := api.NewServer(manager, logger, settings.APIPort)
		if err := apiServer.Start(); err != nil {
			logger.Fatal("Failed to start API server", zap.Error(err))
		}
		defer apiServer.Stop()
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-sigChan

	logger.Info("Shutting down gracefully...")
}
