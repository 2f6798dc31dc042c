package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/forecast"
	"github.com/mkallio/skycast-go/internal/httpclient"
	"github.com/mkallio/skycast-go/internal/imagefetch"
	"github.com/mkallio/skycast-go/internal/scaler"
)

// stubPredictor stands in for the TFLite model in pipeline tests.
type stubPredictor struct {
	value float32
}

func (p *stubPredictor) Predict(tensor []float32) (float32, error) { return p.value, nil }
func (p *stubPredictor) InputSize() int                            { return 8 }

func pipelineScaler(t *testing.T) *scaler.Store {
	t.Helper()
	store, err := scaler.NewStore(scaler.Parameters{
		Min:       []float64{0},
		Scale:     []float64{0.001},
		DataMin:   []float64{0},
		DataMax:   []float64{1000},
		DataRange: []float64{1000},
	})
	require.NoError(t, err)
	return store
}

func skyFramePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 140, B: 230, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pipeline wires the full ingest-to-forecast path with a stubbed model and a
// mocked blob store transport.
type pipeline struct {
	controller *Controller
	ds         datastore.Interface
	scheduler  *forecast.Scheduler
	settings   *conf.Settings
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	settings := testSettings(t)
	settings.Forecast.OutputOffset = 10.0

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	engine := forecast.NewEngine(settings, ds, &stubPredictor{value: 0.5}, pipelineScaler(t),
		imagefetch.NewWithClient(client, 2*time.Second), nil)
	scheduler := forecast.NewScheduler(settings, ds, engine)
	scheduler.Start(context.Background())
	t.Cleanup(scheduler.Stop)

	c := New(echo.New(), ds, settings, scheduler, nil)
	return &pipeline{controller: c, ds: ds, scheduler: scheduler, settings: settings}
}

// seedPreviousDay inserts enough readings on the day before to satisfy the
// scheduling gate for day.
func (p *pipeline) seedPreviousDay(t *testing.T, day time.Time, n int) {
	t.Helper()
	prev := day.AddDate(0, 0, -1)
	for i := range n {
		r := &datastore.Reading{Timestamp: prev.Add(time.Duration(i+1) * time.Hour)}
		require.NoError(t, p.ds.SaveReading(r))
	}
}

func TestIngestTriggersForecast(t *testing.T) {
	p := newPipeline(t)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p.seedPreviousDay(t, day, 5)

	httpmock.RegisterResponder("GET", "https://blob/sky/frame.jpg",
		httpmock.NewBytesResponder(http.StatusOK, skyFramePNG(t)))

	ts := day.Add(12 * time.Hour)
	rec := doRequest(p.controller, http.MethodPost, "/api/v1/readings",
		ingestPayload(ts, "https://blob/sky/frame.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	p.scheduler.Drain()

	record, err := p.ds.LatestForecast()
	require.NoError(t, err)
	assert.Equal(t, ts.Add(5*time.Minute).Unix(), record.ForecastTime.Unix())
	// inverse-scaled 0.5 over a [0, 1000] training range, plus offset 10
	assert.InDelta(t, 510.0, record.PredictedValue, 1e-9)
}

func TestIngestSurvivesImageFetchFailure(t *testing.T) {
	p := newPipeline(t)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p.seedPreviousDay(t, day, 5)

	httpmock.RegisterResponder("GET", "https://blob/sky/frame.jpg",
		httpmock.NewErrorResponder(assert.AnError))

	ts := day.Add(12 * time.Hour)
	rec := doRequest(p.controller, http.MethodPost, "/api/v1/readings",
		ingestPayload(ts, "https://blob/sky/frame.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code, "ingestion succeeds despite the downstream failure")

	p.scheduler.Drain()

	records, err := p.ds.ForecastsBetween(ts, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records, "no forecast rows on the failure path")

	// The reading itself is durably stored.
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	stored, err := p.ds.GetReading(uint(body["reading_id"].(float64)))
	require.NoError(t, err)
	require.NotNil(t, stored.Image)
}

func TestIngestBelowGateSchedulesNothing(t *testing.T) {
	p := newPipeline(t)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p.seedPreviousDay(t, day, 4)

	rec := doRequest(p.controller, http.MethodPost, "/api/v1/readings",
		ingestPayload(day.Add(12*time.Hour), "https://blob/sky/frame.jpg"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["forecast_scheduled"])

	p.scheduler.Drain()
	_, err := p.ds.LatestForecast()
	require.Error(t, err)
}
