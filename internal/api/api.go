// internal/api/api.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/mkallio/skycast-go/internal/buildinfo"
	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/logging"
	"github.com/mkallio/skycast-go/internal/observability"
	"github.com/mkallio/skycast-go/internal/suncalc"
)

// ReadingScheduler is the slice of the forecast scheduler the API needs.
// Satisfied by forecast.Scheduler.
type ReadingScheduler interface {
	MaybeSchedule(readingID uint, ts time.Time) bool
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Scheduler ReadingScheduler
	SunCalc   *suncalc.SunCalc

	metrics   *observability.Metrics
	liveCache *cache.Cache // caches the live-data response between polls
	apiLogger *slog.Logger
}

// liveCacheKey is the single key used in liveCache.
const liveCacheKey = "live"

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger replaces the default API logger, typically with a rotating
// file logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.apiLogger = logger
	}
}

// New creates a Controller and registers its routes on e. Scheduler and
// metrics may be nil; ingestion then persists without forecasting or
// instrumentation, which is how most handler tests run.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	scheduler ReadingScheduler, m *observability.Metrics, opts ...Option) *Controller {

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Scheduler: scheduler,
		SunCalc:   suncalc.New(settings.Station.Latitude, settings.Station.Longitude, settings.StationLocation()),
		metrics:   m,
		liveCache: cache.New(10*time.Second, time.Minute),
		apiLogger: logging.ForService("api"),
	}

	for _, opt := range opts {
		opt(c)
	}

	e.Use(middleware.Recover())

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/healthz", c.HealthCheck)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = c.Echo.Group("/api/v1")

	c.Group.POST("/readings", c.CreateReading)
	c.Group.GET("/readings/live", c.GetLiveData)
	c.Group.GET("/readings/history", c.GetHistory)
	c.Group.GET("/readings/export", c.ExportCSV)

	c.Group.GET("/forecasts/latest", c.GetLatestForecast)
	c.Group.GET("/forecasts/day", c.GetDayForecasts)
	c.Group.GET("/forecasts/next", c.GetNextForecast)

	c.Group.GET("/station/sun", c.GetSunTimes)
}

// HealthCheck handles the service health probe.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"station":     c.Settings.Station.Name,
		"version":     buildinfo.Version,
		"build_date":  buildinfo.BuildDate,
		"server_time": time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponse is the JSON body returned on every error path.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError builds the error response, logs it with a correlation id and
// writes it to the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := uuid.New().String()[:8]

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	c.apiLogger.Error("API error",
		"correlation_id", correlationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	})
}
