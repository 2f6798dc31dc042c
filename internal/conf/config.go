// config.go: settings struct and loading for the skycast service.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/mkallio/skycast-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// StationSettings describes the physical weather station the service fronts.
type StationSettings struct {
	Name            string  // station identifier used in logs and API responses
	Latitude        float64 // station latitude
	Longitude       float64 // station longitude
	UTCOffsetHours  int     // station local offset from UTC, used for calendar-day math
}

// ModelSettings describes the pretrained sky-camera CNN.
type ModelSettings struct {
	Path       string // path to the TFLite model file
	InputSize  int    // square input resolution expected by the model
	UseXNNPACK bool   // true to enable XNNPACK delegate
	Threads    int    // interpreter thread count, 0 for automatic
}

// ForecastSettings controls the irradiance forecast pipeline.
type ForecastSettings struct {
	HorizonMinutes  int     // offset from source reading to predicted instant
	MinDailySamples int     // readings required in the gate day before forecasting
	OutputOffset    float64 // additive constant applied to the inverse-scaled model output
	ScalerPath      string  // path to the MinMax scaler parameter artifact
	FetchTimeout    int     // image fetch timeout in seconds
	QueueSize       int     // pending forecast job capacity
	Model           ModelSettings
}

// OutputSettings selects and configures the backing database.
type OutputSettings struct {
	SQLite struct {
		Enabled bool
		Path    string
	}
	MySQL struct {
		Enabled  bool
		Username string
		Password string
		Host     string
		Port     string
		Database string
	}
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Port    string
}

// Settings is the root configuration for the service.
type Settings struct {
	Debug bool

	Station   StationSettings
	Forecast  ForecastSettings
	Output    OutputSettings
	WebServer WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a Settings instance and validates it.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment variables override file values, e.g. SKYCAST_OUTPUT_MYSQL_PASSWORD
	viper.SetEnvPrefix("skycast")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at: %s", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the paths where a config file is searched for,
// in priority order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "skycast-go"))
	}
	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// StationLocation returns the fixed-offset location used for local calendar
// day computations at the station.
func (s *Settings) StationLocation() *time.Location {
	return time.FixedZone("station", s.Station.UTCOffsetHours*3600)
}

// ForecastHorizon returns the horizon as a duration.
func (s *Settings) ForecastHorizon() time.Duration {
	return time.Duration(s.Forecast.HorizonMinutes) * time.Minute
}

// ImageFetchTimeout returns the image fetch timeout as a duration.
func (s *Settings) ImageFetchTimeout() time.Duration {
	return time.Duration(s.Forecast.FetchTimeout) * time.Second
}
