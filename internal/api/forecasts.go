// internal/api/forecasts.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/errors"
)

// ForecastResponse is one stored irradiance prediction.
type ForecastResponse struct {
	ID              uint      `json:"id"`
	SourceReadingID uint      `json:"source_reading_id"`
	ForecastTime    time.Time `json:"forecast_time"`
	PredictedValue  float64   `json:"predicted_value"`
	CreatedAt       time.Time `json:"created_at"`
}

func toForecastResponse(r *datastore.ForecastRecord) ForecastResponse {
	return ForecastResponse{
		ID:              r.ID,
		SourceReadingID: r.SourceReadingID,
		ForecastTime:    r.ForecastTime,
		PredictedValue:  r.PredictedValue,
		CreatedAt:       r.CreatedAt,
	}
}

// GetLatestForecast handles GET /api/v1/forecasts/latest.
func (c *Controller) GetLatestForecast(ctx echo.Context) error {
	record, err := c.DS.LatestForecast()
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, err, "No forecasts found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get latest forecast", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toForecastResponse(&record))
}

// GetDayForecasts handles GET /api/v1/forecasts/day. Without a date parameter
// it returns the current station-local day.
func (c *Controller) GetDayForecasts(ctx echo.Context) error {
	loc := c.Settings.StationLocation()

	day := time.Now().In(loc)
	if dateStr := ctx.QueryParam("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			return c.HandleError(ctx, err, "Query parameter date must be in YYYY-MM-DD format", http.StatusBadRequest)
		}
		day = parsed
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	records, err := c.DS.ForecastsBetween(dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get forecasts", http.StatusInternalServerError)
	}

	resp := make([]ForecastResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toForecastResponse(&records[i]))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetNextForecast handles GET /api/v1/forecasts/next, the first forecast
// whose target instant is still ahead of the server clock.
func (c *Controller) GetNextForecast(ctx echo.Context) error {
	record, err := c.DS.NextForecastAfter(time.Now().UTC())
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, err, "No upcoming forecast", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get next forecast", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toForecastResponse(&record))
}
