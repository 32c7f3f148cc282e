package main

import (
	"fmt"
	"os"

	"github.com/issuetrackhq/tracker-tui/internal/config"
	"github.com/issuetrackhq/tracker-tui/internal/logger"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
	"github.com/issuetrackhq/tracker-tui/internal/tui"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(VersionInfo())
		os.Exit(0)
	}

	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := parseLogLevel(cfg.LogLevel)
	if err := logger.Init(cfg.LogFile, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Application starting")
	logger.Debug("Configuration: APIBaseURL=%s, CacheTTL=%s, Timeout=%s",
		cfg.APIBaseURL, cfg.CacheTTL, cfg.Timeout)

	// Create tracker API client with full configuration
	apiClient := trackerapi.NewClient(trackerapi.ClientConfig{
		Token:   cfg.APIToken,
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.Timeout,
	})

	// Create and run tview application
	app := tui.NewApp(apiClient, cfg)

	if err := app.Run(); err != nil {
		logger.ErrorWithErr(err, "Application error")
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Application shutdown")
}

// parseLogLevel converts a string log level to a logger.LogLevel.
func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warning":
		return logger.LevelWarning
	case "error":
		return logger.LevelError
	default:
		return logger.LevelWarning
	}
}
