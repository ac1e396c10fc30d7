// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Correction CorrectionConfig `mapstructure:"correction"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Output     OutputConfig     `mapstructure:"output"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CorrectionConfig selects the source datum
type CorrectionConfig struct {
	Kind string `mapstructure:"kind"`
}

// DatasetConfig contains dataset reading options
type DatasetConfig struct {
	// Encoding is used for shapefile attributes when no .cpg sidecar exists
	Encoding string `mapstructure:"encoding"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Pretty      bool `mapstructure:"pretty"`
	Compression bool `mapstructure:"compression"`
	Overwrite   bool `mapstructure:"overwrite"`
}

// BatchConfig contains batch processing configuration
type BatchConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FailOnError bool          `mapstructure:"fail_on_error"`
	Pattern     string        `mapstructure:"pattern"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Output  string `mapstructure:"output"`
	Verbose bool   `mapstructure:"verbose"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("correction.kind", "gd")

	v.SetDefault("dataset.encoding", "UTF-8")

	// Output defaults
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.compression", false)
	v.SetDefault("output.overwrite", true)

	// Batch defaults
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.timeout", 30*time.Minute)
	v.SetDefault("batch.fail_on_error", false)
	v.SetDefault("batch.pattern", "*.shp,*.geojson,*.json")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.verbose", false)
}

// Patterns splits the batch file pattern list
func (c *BatchConfig) Patterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.Pattern, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}
