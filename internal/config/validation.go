// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/pkg/datum"
)

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if err := validateCorrection(&config.Correction); err != nil {
		return fmt.Errorf("correction configuration invalid: %w", err)
	}

	if err := validateDataset(&config.Dataset); err != nil {
		return fmt.Errorf("dataset configuration invalid: %w", err)
	}

	if err := validateBatch(&config.Batch); err != nil {
		return fmt.Errorf("batch configuration invalid: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	return nil
}

// validateCorrection checks the correction kind
func validateCorrection(config *CorrectionConfig) error {
	_, err := datum.ParseKind(config.Kind)
	return err
}

// validateDataset checks that the fallback encoding is known
func validateDataset(config *DatasetConfig) error {
	if config.Encoding == "" {
		return fmt.Errorf("encoding cannot be empty")
	}
	if _, err := dataset.LookupEncoding(config.Encoding); err != nil {
		return err
	}
	return nil
}

// validateBatch validates batch processing configuration parameters
func validateBatch(config *BatchConfig) error {
	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if config.Concurrency > 256 {
		return fmt.Errorf("concurrency must not exceed 256")
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	patterns := config.Patterns()
	if len(patterns) == 0 {
		return fmt.Errorf("pattern cannot be empty")
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}

	return nil
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of %v", config.Level, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of %v", config.Format, validFormats)
	}

	validOutputs := []string{"stdout", "stderr"}
	if !contains(validOutputs, config.Output) {
		return fmt.Errorf("invalid log output: %s, must be one of %v", config.Output, validOutputs)
	}

	return nil
}

// contains checks if a string slice contains a specific string (case-insensitive)
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
