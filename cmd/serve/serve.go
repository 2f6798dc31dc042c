// Package serve implements the serve subcommand, the long-running ingestion
// and forecast service.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/mkallio/skycast-go/internal/api"
	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/forecast"
	"github.com/mkallio/skycast-go/internal/imagefetch"
	"github.com/mkallio/skycast-go/internal/logging"
	"github.com/mkallio/skycast-go/internal/observability"
	"github.com/mkallio/skycast-go/internal/scaler"
	"github.com/mkallio/skycast-go/internal/skymodel"
)

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the telemetry ingestion and forecast service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

// runServer wires the pipeline and blocks until SIGINT or SIGTERM.
func runServer(settings *conf.Settings) error {
	log := logging.ForService("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	// Scaler parameters and the model are both immutable process state;
	// failing to load either makes forecasting impossible, so bail out now.
	scalerStore, err := scaler.Load(settings.Forecast.ScalerPath)
	if err != nil {
		return fmt.Errorf("loading scaler parameters: %w", err)
	}
	model, err := skymodel.New(settings)
	if err != nil {
		return fmt.Errorf("loading sky model: %w", err)
	}

	fetcher := imagefetch.New(settings.ImageFetchTimeout())
	engine := forecast.NewEngine(settings, ds, model, scalerStore, fetcher, metrics.Forecast)
	scheduler := forecast.NewScheduler(settings, ds, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	e := echo.New()
	e.HideBanner = true

	apiLogger, closeAPILog, err := logging.NewFileLogger("logs/api.log", "api", slog.LevelInfo)
	if err != nil {
		return fmt.Errorf("creating API log file: %w", err)
	}
	defer func() { _ = closeAPILog() }()

	api.New(e, ds, settings, scheduler, metrics, api.WithLogger(apiLogger))

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		log.Info("HTTP server starting", "addr", addr, "station", settings.Station.Name)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	// Finish queued forecast runs before taking the API away.
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	return nil
}
