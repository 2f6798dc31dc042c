// defaults.go default values for viper settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets the default values for the configuration parameters.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Station node defaults
	viper.SetDefault("station.name", "skycast")
	viper.SetDefault("station.latitude", 0.0)
	viper.SetDefault("station.longitude", 0.0)
	viper.SetDefault("station.utcoffsethours", 0)

	// Forecast pipeline defaults
	viper.SetDefault("forecast.horizonminutes", 5)
	viper.SetDefault("forecast.mindailysamples", 5)
	viper.SetDefault("forecast.outputoffset", 0.0)
	viper.SetDefault("forecast.scalerpath", "model/scaler.json")
	viper.SetDefault("forecast.fetchtimeout", 15)
	viper.SetDefault("forecast.queuesize", 64)
	viper.SetDefault("forecast.model.path", "model/skycast_cnn.tflite")
	viper.SetDefault("forecast.model.inputsize", 128)
	viper.SetDefault("forecast.model.usexnnpack", true)
	viper.SetDefault("forecast.model.threads", 0)

	// Database defaults
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "skycast.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "skycast")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "skycast")

	// Web server defaults
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")
}
