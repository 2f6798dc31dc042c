// engine.go resolves a scoring image, runs inference and records the forecast.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/logging"
	"github.com/mkallio/skycast-go/internal/observability/metrics"
	"github.com/mkallio/skycast-go/internal/scaler"
	"github.com/mkallio/skycast-go/internal/skymodel"
)

// Predictor runs inference on a prepared image tensor and returns the model's
// scaled scalar output. Satisfied by skymodel.SkyModel, stubbed in tests.
type Predictor interface {
	Predict(tensor []float32) (float32, error)
	InputSize() int
}

// ImageFetcher retrieves sky image bytes from the blob store.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Engine produces and durably records one forecast per qualifying reading.
// On success exactly one ForecastRecord row is inserted; every failure path
// leaves zero rows behind.
type Engine struct {
	settings *conf.Settings
	ds       datastore.Interface
	model    Predictor
	scaler   *scaler.Store
	fetcher  ImageFetcher
	metrics  *metrics.ForecastMetrics
	log      *slog.Logger
}

// NewEngine wires the forecast engine. metrics may be nil.
func NewEngine(settings *conf.Settings, ds datastore.Interface, model Predictor, sc *scaler.Store, fetcher ImageFetcher, fm *metrics.ForecastMetrics) *Engine {
	return &Engine{
		settings: settings,
		ds:       ds,
		model:    model,
		scaler:   sc,
		fetcher:  fetcher,
		metrics:  fm,
		log:      logging.ForService("forecast"),
	}
}

// Run generates a forecast for the reading with the given id. A forecast that
// already exists for the target instant is a no-op success. Errors are
// reported to the caller; the caller decides whether they fail anything
// beyond this run.
func (e *Engine) Run(ctx context.Context, readingID uint) error {
	runID := uuid.New().String()[:8]
	log := e.log.With("run_id", runID, "reading_id", readingID)

	reading, err := e.ds.GetReading(readingID)
	if err != nil {
		e.recordRun("database_error")
		return errors.New(fmt.Errorf("loading source reading: %w", err)).
			Component("forecast").
			Build()
	}

	targetTime := reading.Timestamp.Add(e.settings.ForecastHorizon())
	log = log.With("forecast_time", targetTime.Format(time.RFC3339))

	// Fast-path idempotency check. The unique index on forecast_time is the
	// authoritative guard; this avoids fetch and inference work when a
	// forecast for the instant already exists.
	exists, err := e.ds.HasForecastFor(targetTime)
	if err != nil {
		e.recordRun("database_error")
		return err
	}
	if exists {
		log.Debug("Forecast already exists for target instant, skipping")
		e.recordRun("duplicate")
		return nil
	}

	// The reading that triggered this run is not necessarily the reading
	// whose image should be scored: the camera upload may lag the sensor
	// sample. Resolve by stored timestamp instead.
	img, err := e.ds.MostRecentImageAtOrBefore(reading.Timestamp)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			e.recordRun("missing_input")
			return errors.New(fmt.Errorf("no sky image available to score: %w", err)).
				Component("forecast").
				Category(errors.CategoryMissingInput).
				Build()
		}
		e.recordRun("database_error")
		return err
	}

	fetchStart := time.Now()
	imageData, err := e.fetcher.Fetch(ctx, img.ImageURL)
	if e.metrics != nil {
		e.metrics.RecordImageFetchDuration(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		e.recordRun("fetch_error")
		return errors.New(fmt.Errorf("fetching scoring image: %w", err)).
			Component("forecast").
			Context("image_url", img.ImageURL).
			Build()
	}

	tensor, err := skymodel.PrepareImageTensor(imageData, e.model.InputSize())
	if err != nil {
		e.recordRun("inference_error")
		return errors.New(fmt.Errorf("preparing image tensor: %w", err)).
			Component("forecast").
			Build()
	}

	inferStart := time.Now()
	scaled, err := e.model.Predict(tensor)
	if e.metrics != nil {
		e.metrics.RecordInferenceDuration(time.Since(inferStart).Seconds())
	}
	if err != nil {
		e.recordRun("inference_error")
		return errors.New(fmt.Errorf("running inference: %w", err)).
			Component("forecast").
			Category(errors.CategoryInference).
			Build()
	}

	predicted := e.scaler.InverseScalar(float64(scaled)) + e.settings.Forecast.OutputOffset

	inserted, err := e.ds.SaveForecast(&datastore.ForecastRecord{
		SourceReadingID: reading.ID,
		ForecastTime:    targetTime,
		PredictedValue:  predicted,
	})
	if err != nil {
		e.recordRun("database_error")
		return err
	}
	if !inserted {
		// A concurrent run won the insert between the pre-check and here.
		// The stored forecast is equally valid, so this run succeeded.
		log.Debug("Concurrent run already stored a forecast for target instant")
		e.recordRun("duplicate")
		return nil
	}

	if e.metrics != nil {
		e.metrics.UpdatePredictedValue(predicted)
	}
	e.recordRun("success")

	log.Info("Forecast stored",
		"source_image", img.ImageURL,
		"scaled_output", scaled,
		"predicted_value", predicted)

	return nil
}

func (e *Engine) recordRun(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordRun(outcome)
	}
}
