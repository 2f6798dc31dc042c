package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/skycast-go/internal/errors"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Station.Latitude = 60.17
	s.Station.Longitude = 24.94
	s.Station.UTCOffsetHours = 2
	s.Forecast.HorizonMinutes = 5
	s.Forecast.MinDailySamples = 5
	s.Forecast.ScalerPath = "model/scaler.json"
	s.Forecast.FetchTimeout = 15
	s.Forecast.Model.Path = "model/skycast_cnn.tflite"
	s.Forecast.Model.InputSize = 128
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "skycast.db"
	s.WebServer.Enabled = true
	s.WebServer.Port = "8090"
	return s
}

func TestValidateSettingsAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsMissingArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"missing scaler path", func(s *Settings) { s.Forecast.ScalerPath = "" }},
		{"missing model path", func(s *Settings) { s.Forecast.Model.Path = "" }},
		{"no database enabled", func(s *Settings) { s.Output.SQLite.Enabled = false }},
		{"zero horizon", func(s *Settings) { s.Forecast.HorizonMinutes = 0 }},
		{"zero sample gate", func(s *Settings) { s.Forecast.MinDailySamples = 0 }},
		{"bad latitude", func(s *Settings) { s.Station.Latitude = 91 }},
		{"zero fetch timeout", func(s *Settings) { s.Forecast.FetchTimeout = 0 }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tc.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestStationLocationOffset(t *testing.T) {
	t.Parallel()

	s := validSettings()
	loc := s.StationLocation()
	_, offset := time.Now().In(loc).Zone()
	assert.Equal(t, 2*3600, offset)
}
