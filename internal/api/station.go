// internal/api/station.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// SunTimesResponse holds the solar day boundaries for the station, in
// station-local time.
type SunTimesResponse struct {
	Date      string    `json:"date"`
	CivilDawn time.Time `json:"civil_dawn"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	CivilDusk time.Time `json:"civil_dusk"`
}

// GetSunTimes handles GET /api/v1/station/sun?date=YYYY-MM-DD. Without a date
// parameter it returns the current station-local day.
func (c *Controller) GetSunTimes(ctx echo.Context) error {
	loc := c.Settings.StationLocation()

	day := time.Now().In(loc)
	if dateStr := ctx.QueryParam("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			return c.HandleError(ctx, err, "Query parameter date must be in YYYY-MM-DD format", http.StatusBadRequest)
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	times, err := c.SunCalc.GetSunEventTimes(day)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to calculate sun event times", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, SunTimesResponse{
		Date:      day.Format("2006-01-02"),
		CivilDawn: times.CivilDawn,
		Sunrise:   times.Sunrise,
		Sunset:    times.Sunset,
		CivilDusk: times.CivilDusk,
	})
}
