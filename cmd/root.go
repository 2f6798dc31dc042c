package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkallio/skycast-go/cmd/serve"
	"github.com/mkallio/skycast-go/internal/buildinfo"
	"github.com/mkallio/skycast-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skycast",
		Short:   "SkyCast-Go weather telemetry and irradiance forecast service",
		Version: fmt.Sprintf("%s (built %s)", buildinfo.Version, buildinfo.BuildDate),
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(serve.Command(settings))

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64Var(&settings.Station.Latitude, "latitude", viper.GetFloat64("station.latitude"), "Station latitude")
	rootCmd.PersistentFlags().Float64Var(&settings.Station.Longitude, "longitude", viper.GetFloat64("station.longitude"), "Station longitude")
	rootCmd.PersistentFlags().StringVar(&settings.Forecast.Model.Path, "model", viper.GetString("forecast.model.path"), "Path to the TFLite model file")
	rootCmd.PersistentFlags().StringVar(&settings.Forecast.ScalerPath, "scaler", viper.GetString("forecast.scalerpath"), "Path to the scaler parameter artifact")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
