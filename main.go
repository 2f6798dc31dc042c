package main

import (
	"log/slog"
	"os"

	"github.com/mkallio/skycast-go/cmd"
	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/logging"
)

func main() {
	logging.Init(slog.LevelInfo)

	settings, err := conf.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if settings.Debug {
		logging.Init(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
