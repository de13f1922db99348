// Package config loads, defaults and validates the zonefs configuration,
// and builds the configured components from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/campusfiles/zonefs/pkg/browser"
)

// Config is the complete zonefs configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (ZONEFS_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Storage locates the zone trees on disk.
	Storage StorageConfig `mapstructure:"storage"`

	// Metadata selects and configures the metadata store backend.
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Quotas overrides the built-in per-zone quota policies. Keys are zone
	// names (e.g. "admi_doc_crs"); unlisted zones keep their defaults.
	Quotas map[string]QuotaConfig `mapstructure:"quotas"`

	// Uploads restricts accepted uploads.
	Uploads browser.UploadRules `mapstructure:"uploads"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// StorageConfig locates zone trees and temporary links on disk.
type StorageConfig struct {
	// BaseDir is the directory holding every zone tree.
	BaseDir string `mapstructure:"base_dir" validate:"required"`

	// TempLinkDir holds temporary public download links. Empty disables
	// public links.
	TempLinkDir string `mapstructure:"temp_link_dir"`

	// TempLinkTTL bounds the life of temporary public links.
	TempLinkTTL time.Duration `mapstructure:"temp_link_ttl" validate:"gte=0"`
}

// MetadataConfig selects the metadata store backend.
//
// The Type field determines which implementation is used; only the
// matching type-specific section applies.
type MetadataConfig struct {
	// Type is the backend to use. Valid values: memory, badger.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory holds memory-specific configuration (none currently).
	Memory map[string]any `mapstructure:"memory"`

	// Badger holds BadgerDB-specific configuration.
	Badger map[string]any `mapstructure:"badger"`
}

// QuotaConfig is one per-zone quota override.
type QuotaConfig struct {
	MaxFiles   int64 `mapstructure:"max_files" validate:"gte=0"`
	MaxFolders int64 `mapstructure:"max_folders" validate:"gte=0"`
	MaxBytes   int64 `mapstructure:"max_bytes" validate:"gte=0"`
	MaxLevels  uint  `mapstructure:"max_levels" validate:"gte=0"`
}

// MetricsConfig controls metrics collection. Exposing the registry over
// HTTP is the embedding service's job; see metrics.GetRegistry.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/zonefs/config.yaml) is searched and a missing file is
// not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and config file
// locations. Environment variables use the ZONEFS_ prefix with underscores,
// e.g. ZONEFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ZONEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is only an error when it was named explicitly.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configPath == "" {
			return nil
		}
		if os.IsNotExist(err) && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "zonefs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "zonefs")
}
