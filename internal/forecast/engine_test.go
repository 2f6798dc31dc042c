package forecast

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/httpclient"
	"github.com/mkallio/skycast-go/internal/imagefetch"
	"github.com/mkallio/skycast-go/internal/scaler"
)

// fixedPredictor returns a constant scaled output, standing in for the CNN.
type fixedPredictor struct {
	value float32
	err   error
}

func (p *fixedPredictor) Predict(tensor []float32) (float32, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.value, nil
}

func (p *fixedPredictor) InputSize() int { return 8 }

// stubFetcher returns canned bytes or an error without any network I/O.
type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Station.UTCOffsetHours = 0
	s.Forecast.HorizonMinutes = 5
	s.Forecast.MinDailySamples = 5
	s.Forecast.OutputOffset = 10.0
	s.Forecast.FetchTimeout = 5
	s.Forecast.QueueSize = 8
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = filepath.Join(t.TempDir(), "forecast_test.db")
	return s
}

func openTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

// irradianceScaler maps model output 0.5 to 500 before the output offset.
func irradianceScaler(t *testing.T) *scaler.Store {
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

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 160, B: 220, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func insertReadingWithImage(t *testing.T, ds datastore.Interface, ts time.Time, url string) *datastore.Reading {
	t.Helper()
	reading := &datastore.Reading{
		Timestamp:    ts,
		TemperatureC: 22.5,
		Humidity:     40,
		Pressure:     1008,
	}
	require.NoError(t, ds.SaveReadingWithImage(reading, url))
	return reading
}

func TestRunStoresInverseScaledForecast(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reading := insertReadingWithImage(t, ds, ts, "https://blob/sky/img1.jpg")

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t),
		&stubFetcher{data: smallPNG(t)}, nil)

	require.NoError(t, engine.Run(context.Background(), reading.ID))

	record, err := ds.LatestForecast()
	require.NoError(t, err)
	assert.Equal(t, reading.ID, record.SourceReadingID)
	assert.Equal(t, ts.Add(5*time.Minute).Unix(), record.ForecastTime.Unix())
	// inverse(0.5) = 500, plus the configured output offset of 10
	assert.InDelta(t, 510.0, record.PredictedValue, 1e-9)
}

func TestRunIsIdempotentPerTargetTime(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := insertReadingWithImage(t, ds, ts, "https://blob/sky/a.jpg")
	// A second reading with the same device timestamp maps to the same
	// target instant.
	second := insertReadingWithImage(t, ds, ts, "https://blob/sky/b.jpg")

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t),
		&stubFetcher{data: smallPNG(t)}, nil)

	require.NoError(t, engine.Run(context.Background(), first.ID))
	require.NoError(t, engine.Run(context.Background(), first.ID))
	require.NoError(t, engine.Run(context.Background(), second.ID))

	records, err := ds.ForecastsBetween(ts, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, records, 1, "exactly one forecast per target instant")
}

func TestRunFailsWithoutScoringImage(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	reading := &datastore.Reading{Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, ds.SaveReading(reading))

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t),
		&stubFetcher{data: smallPNG(t)}, nil)

	err := engine.Run(context.Background(), reading.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryMissingInput))

	_, err = ds.LatestForecast()
	require.Error(t, err, "no forecast may be recorded without a scoring image")
}

func TestRunFetchFailureLeavesNoForecast(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reading := insertReadingWithImage(t, ds, ts, "https://blob/sky/img1.jpg")

	// Wire the real fetcher against a mocked transport to exercise the
	// network failure path end to end.
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", "https://blob/sky/img1.jpg",
		httpmock.NewErrorResponder(assert.AnError))

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t),
		imagefetch.NewWithClient(client, 2*time.Second), nil)

	err := engine.Run(context.Background(), reading.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))

	records, derr := ds.ForecastsBetween(ts, ts.Add(time.Hour))
	require.NoError(t, derr)
	assert.Empty(t, records, "zero rows on the fetch failure path")
}

func TestRunInferenceFailureLeavesNoForecast(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reading := insertReadingWithImage(t, ds, ts, "https://blob/sky/img1.jpg")

	engine := NewEngine(settings, ds, &fixedPredictor{err: assert.AnError}, irradianceScaler(t),
		&stubFetcher{data: smallPNG(t)}, nil)

	err := engine.Run(context.Background(), reading.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInference))

	records, derr := ds.ForecastsBetween(ts, ts.Add(time.Hour))
	require.NoError(t, derr)
	assert.Empty(t, records)
}

func TestRunUnknownReading(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t),
		&stubFetcher{data: smallPNG(t)}, nil)

	err := engine.Run(context.Background(), 424242)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestRunScoresLaggingImage(t *testing.T) {
	settings := testSettings(t)
	ds := openTestStore(t, settings)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// The camera frame arrived with an earlier reading; the triggering
	// reading itself has no image.
	insertReadingWithImage(t, ds, base.Add(-2*time.Minute), "https://blob/sky/lagged.jpg")
	trigger := &datastore.Reading{Timestamp: base}
	require.NoError(t, ds.SaveReading(trigger))

	var fetchedURL string
	fetcher := &recordingFetcher{data: smallPNG(t), urls: &fetchedURL}

	engine := NewEngine(settings, ds, &fixedPredictor{value: 0.5}, irradianceScaler(t), fetcher, nil)
	require.NoError(t, engine.Run(context.Background(), trigger.ID))

	assert.Equal(t, "https://blob/sky/lagged.jpg", fetchedURL)
}

// recordingFetcher captures the URL it was asked for.
type recordingFetcher struct {
	data []byte
	urls *string
}

func (f *recordingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	*f.urls = url
	return f.data, nil
}
