// internal/api/readings.go
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/errors"
)

// ReadingRequest is the ingestion payload sent by the field device after it
// has uploaded its sky-camera frame to blob storage.
type ReadingRequest struct {
	Timestamp     time.Time `json:"timestamp"`
	TemperatureC  float64   `json:"temperature_c"`
	TemperatureF  float64   `json:"temperature_f"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	WindMaxSpeed  float64   `json:"wind_max_speed"`
	Rain          float64   `json:"rain"`
	UV            float64   `json:"uv"`
	UVI           float64   `json:"uvi"`
	LightLux      float64   `json:"light_lux"`
	BatteryOK     bool      `json:"battery_ok"`
	ImageURL      string    `json:"image_url"`
}

// ReadingResponse mirrors a stored reading, including its sky image URL when
// one exists.
type ReadingResponse struct {
	ID            uint      `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TemperatureC  float64   `json:"temperature_c"`
	TemperatureF  float64   `json:"temperature_f"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	WindMaxSpeed  float64   `json:"wind_max_speed"`
	Rain          float64   `json:"rain"`
	UV            float64   `json:"uv"`
	UVI           float64   `json:"uvi"`
	LightLux      float64   `json:"light_lux"`
	BatteryOK     bool      `json:"battery_ok"`
	ImageURL      string    `json:"image_url,omitempty"`
}

func toReadingResponse(r *datastore.Reading) ReadingResponse {
	resp := ReadingResponse{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		TemperatureC:  r.TemperatureC,
		TemperatureF:  r.TemperatureF,
		Humidity:      r.Humidity,
		Pressure:      r.Pressure,
		WindSpeed:     r.WindSpeed,
		WindDirection: r.WindDirection,
		WindMaxSpeed:  r.WindMaxSpeed,
		Rain:          r.Rain,
		UV:            r.UV,
		UVI:           r.UVI,
		LightLux:      r.LightLux,
		BatteryOK:     r.BatteryOK,
	}
	if r.Image != nil {
		resp.ImageURL = r.Image.ImageURL
	}
	return resp
}

// CreateReading handles POST /api/v1/readings. The reading and its image URL
// are stored in one transaction, then the forecast scheduler is consulted.
// A failed or skipped forecast never fails the ingestion.
func (c *Controller) CreateReading(ctx echo.Context) error {
	start := time.Now()

	var req ReadingRequest
	if err := ctx.Bind(&req); err != nil {
		c.recordIngest("validation_error")
		return c.HandleError(ctx, err, "Invalid reading payload", http.StatusBadRequest)
	}
	if req.Timestamp.IsZero() {
		c.recordIngest("validation_error")
		return c.HandleError(ctx, nil, "Field timestamp is required", http.StatusBadRequest)
	}
	if req.ImageURL == "" {
		c.recordIngest("validation_error")
		return c.HandleError(ctx, nil, "Field image_url is required", http.StatusBadRequest)
	}

	reading := &datastore.Reading{
		Timestamp:     req.Timestamp.UTC(),
		TemperatureC:  req.TemperatureC,
		TemperatureF:  req.TemperatureF,
		Humidity:      req.Humidity,
		Pressure:      req.Pressure,
		WindSpeed:     req.WindSpeed,
		WindDirection: req.WindDirection,
		WindMaxSpeed:  req.WindMaxSpeed,
		Rain:          req.Rain,
		UV:            req.UV,
		UVI:           req.UVI,
		LightLux:      req.LightLux,
		BatteryOK:     req.BatteryOK,
	}

	if err := c.DS.SaveReadingWithImage(reading, req.ImageURL); err != nil {
		if errors.HasCategory(err, errors.CategoryValidation) {
			c.recordIngest("validation_error")
			return c.HandleError(ctx, err, "Invalid reading payload", http.StatusBadRequest)
		}
		c.recordIngest("database_error")
		return c.HandleError(ctx, err, "Failed to store reading", http.StatusInternalServerError)
	}

	c.liveCache.Delete(liveCacheKey)
	c.recordIngest("success")
	if c.metrics != nil {
		c.metrics.Ingest.RecordIngestDuration(time.Since(start).Seconds())
	}

	scheduled := false
	if c.Scheduler != nil {
		scheduled = c.Scheduler.MaybeSchedule(reading.ID, reading.Timestamp)
	}

	c.apiLogger.Info("Reading ingested",
		"reading_id", reading.ID,
		"timestamp", reading.Timestamp.Format(time.RFC3339),
		"forecast_scheduled", scheduled)

	return ctx.JSON(http.StatusCreated, map[string]any{
		"message":            "Reading and image stored",
		"reading_id":         reading.ID,
		"forecast_scheduled": scheduled,
	})
}

// GetLiveData handles GET /api/v1/readings/live. The device uploads on a
// fixed cadence while dashboards poll faster, so the response is cached for
// a few seconds.
func (c *Controller) GetLiveData(ctx echo.Context) error {
	if cached, found := c.liveCache.Get(liveCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	reading, err := c.DS.LatestReading()
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, err, "No data found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get live data", http.StatusInternalServerError)
	}

	resp := toReadingResponse(&reading)
	c.liveCache.SetDefault(liveCacheKey, resp)
	return ctx.JSON(http.StatusOK, resp)
}

// GetHistory handles GET /api/v1/readings/history?date=YYYY-MM-DD. The date
// is interpreted in the station's local offset.
func (c *Controller) GetHistory(ctx echo.Context) error {
	dateStr := ctx.QueryParam("date")
	if dateStr == "" {
		return c.HandleError(ctx, nil, "Query parameter date is required in YYYY-MM-DD format", http.StatusBadRequest)
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, c.Settings.StationLocation())
	if err != nil {
		return c.HandleError(ctx, err, "Query parameter date is required in YYYY-MM-DD format", http.StatusBadRequest)
	}

	readings, err := c.DS.ReadingsForDay(day)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get historical data", http.StatusInternalServerError)
	}

	resp := make([]ReadingResponse, 0, len(readings))
	for i := range readings {
		resp = append(resp, toReadingResponse(&readings[i]))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// csvHeader is the export column set, stable for downstream notebooks.
var csvHeader = []string{
	"id", "timestamp", "temperature_c", "temperature_f", "humidity",
	"pressure", "wind_speed", "wind_direction", "wind_max_speed",
	"rain", "uv", "uvi", "light_lux", "battery_ok", "image_url",
}

// ExportCSV handles GET /api/v1/readings/export?start=&end= with RFC 3339
// bounds, streaming readings in the range as a CSV attachment.
func (c *Controller) ExportCSV(ctx echo.Context) error {
	startStr, endStr := ctx.QueryParam("start"), ctx.QueryParam("end")
	if startStr == "" || endStr == "" {
		return c.HandleError(ctx, nil, "Query parameters start and end are required in RFC 3339 format", http.StatusBadRequest)
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid start timestamp", http.StatusBadRequest)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid end timestamp", http.StatusBadRequest)
	}
	if !end.After(start) {
		return c.HandleError(ctx, nil, "End must be after start", http.StatusBadRequest)
	}

	readings, err := c.DS.ReadingsBetween(start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to export data", http.StatusInternalServerError)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, "text/csv")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="weather-data.csv"`)
	ctx.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(ctx.Response())
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := range readings {
		r := &readings[i]
		imageURL := ""
		if r.Image != nil {
			imageURL = r.Image.ImageURL
		}
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Timestamp.Format(time.RFC3339),
			formatFloat(r.TemperatureC),
			formatFloat(r.TemperatureF),
			formatFloat(r.Humidity),
			formatFloat(r.Pressure),
			formatFloat(r.WindSpeed),
			formatFloat(r.WindDirection),
			formatFloat(r.WindMaxSpeed),
			formatFloat(r.Rain),
			formatFloat(r.UV),
			formatFloat(r.UVI),
			formatFloat(r.LightLux),
			strconv.FormatBool(r.BatteryOK),
			imageURL,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing CSV export: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Controller) recordIngest(status string) {
	if c.metrics != nil {
		c.metrics.Ingest.RecordReading(status)
	}
}
