// cmd/root.go - Root command implementation
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/wgs_correction/internal/config"
	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/internal/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wgs-correction",
	Short: "Correct Chinese map datums (BD09, GCJ02) to WGS84",
	Long: `wgs-correction converts coordinates captured on Chinese web maps back to WGS84.

Baidu maps use the BD09 datum; AMap/Gaode, Tencent and Google China use GCJ02
("Mars coordinates"). Both are obfuscated offsets of WGS84. This tool applies the
inverse conversion to every coordinate of every feature in a dataset and writes a
new dataset of the same format, schema and attributes.

Supported formats:
- ESRI Shapefile (.shp, with .dbf, .prj and .cpg sidecars)
- GeoJSON (.geojson, .json, optionally gzip compressed)

Correction kinds:
- bd: BD09 (Baidu) to WGS84
- gd: GCJ02 (AMap/Gaode) to WGS84

Examples:
  # Correct an AMap shapefile
  wgs-correction correct --kind gd roads.shp roads_wgs84.shp

  # Correct a Baidu GeoJSON file into a compressed output
  wgs-correction correct --kind bd poi.geojson poi_wgs84.geojson.gz

  # Correct every dataset below a directory
  wgs-correction batch --input-dir ./amap --output-dir ./wgs84 --kind gd

  # Correct a single coordinate
  wgs-correction point --kind bd 116.404 39.915`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wgs-correction.yaml)")

	// Correction flags
	rootCmd.PersistentFlags().StringP("kind", "k", "gd", "source datum: bd (BD09/Baidu) or gd (GCJ02/AMap)")
	rootCmd.PersistentFlags().String("encoding", "UTF-8", "shapefile attribute encoding when no .cpg file exists")

	// Output flags
	rootCmd.PersistentFlags().Bool("pretty", false, "indent GeoJSON output")
	rootCmd.PersistentFlags().Bool("compression", false, "gzip GeoJSON output")
	rootCmd.PersistentFlags().Bool("overwrite", true, "replace existing outputs")

	// Logging flags
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("correction.kind", rootCmd.PersistentFlags().Lookup("kind"))
	viper.BindPFlag("dataset.encoding", rootCmd.PersistentFlags().Lookup("encoding"))
	viper.BindPFlag("output.pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.BindPFlag("output.compression", rootCmd.PersistentFlags().Lookup("compression"))
	viper.BindPFlag("output.overwrite", rootCmd.PersistentFlags().Lookup("overwrite"))
	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".wgs-correction" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wgs-correction")
	}

	// Environment variables, e.g. WGS_CORRECTION_CORRECTION_KIND
	viper.SetEnvPrefix("WGS_CORRECTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// datasetOptions maps the loaded configuration onto dataset options
func datasetOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{
		Encoding:    cfg.Dataset.Encoding,
		Pretty:      cfg.Output.Pretty,
		Compression: cfg.Output.Compression,
		Overwrite:   cfg.Output.Overwrite,
	}
}

// loadConfig loads and validates the configuration and sets up logging
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger.Setup(cfg.Logging), nil
}
