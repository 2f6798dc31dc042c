// validate.go - startup validation of settings
package conf

import (
	"github.com/mkallio/skycast-go/internal/errors"
)

// ValidateSettings checks that required configuration is present and sane.
// The process must not serve traffic with an invalid configuration, so any
// error returned here is fatal at startup.
func ValidateSettings(settings *Settings) error {
	validators := []func(*Settings) error{
		validateStationSettings,
		validateForecastSettings,
		validateOutputSettings,
		validateWebServerSettings,
	}

	for _, v := range validators {
		if err := v(settings); err != nil {
			return err
		}
	}
	return nil
}

func validateStationSettings(settings *Settings) error {
	s := &settings.Station
	if s.Latitude < -90 || s.Latitude > 90 {
		return configError("station latitude out of range: %f", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return configError("station longitude out of range: %f", s.Longitude)
	}
	if s.UTCOffsetHours < -12 || s.UTCOffsetHours > 14 {
		return configError("station UTC offset out of range: %d", s.UTCOffsetHours)
	}
	return nil
}

func validateForecastSettings(settings *Settings) error {
	f := &settings.Forecast
	if f.HorizonMinutes <= 0 {
		return configError("forecast horizon must be positive, got %d", f.HorizonMinutes)
	}
	if f.MinDailySamples <= 0 {
		return configError("forecast mindailysamples must be positive, got %d", f.MinDailySamples)
	}
	if f.ScalerPath == "" {
		return configError("forecast scaler path is required")
	}
	if f.Model.Path == "" {
		return configError("forecast model path is required")
	}
	if f.Model.InputSize <= 0 {
		return configError("forecast model input size must be positive, got %d", f.Model.InputSize)
	}
	if f.FetchTimeout <= 0 {
		return configError("forecast fetch timeout must be positive, got %d", f.FetchTimeout)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	o := &settings.Output
	if !o.SQLite.Enabled && !o.MySQL.Enabled {
		return configError("no database enabled, enable either sqlite or mysql output")
	}
	if o.SQLite.Enabled && o.SQLite.Path == "" {
		return configError("sqlite output enabled but path is empty")
	}
	if o.MySQL.Enabled {
		if o.MySQL.Username == "" || o.MySQL.Host == "" || o.MySQL.Database == "" {
			return configError("mysql output enabled but username, host or database is missing")
		}
	}
	return nil
}

func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		return configError("web server enabled but port is empty")
	}
	return nil
}

func configError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
