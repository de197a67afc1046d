package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/banklens.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data/processed" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports" validate:"required"`
}

// EngineConfig contains the numerical settings of the estimation engine
type EngineConfig struct {
	// Tolerance is the two-way demeaning convergence tolerance
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" default:"1e-8" validate:"gt=0"`
	// MaxIterations caps alternating demeaning sweeps
	MaxIterations int `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" default:"100" validate:"gte=1"`
	// VIFThreshold flags regressors above this variance inflation factor
	VIFThreshold float64 `yaml:"vif_threshold" envconfig:"VIF_THRESHOLD" default:"10" validate:"gt=1"`
	// Workers bounds concurrent estimations inside a batch
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"4" validate:"gte=1"`
	// HACBandwidth is the default Newey-West lag bandwidth; negative selects
	// the automatic rule floor(4*(T/100)^(2/9))
	HACBandwidth int `yaml:"hac_bandwidth" envconfig:"HAC_BANDWIDTH" default:"-1"`
}

// Load loads configuration from environment variables and an optional config
// file. Environment variables use the BANKLENS_ prefix; a config.yaml next
// to the working directory (or named by BANKLENS_CONFIG) overrides them.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("BANKLENS", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	configFile := os.Getenv("BANKLENS_CONFIG")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration invariants
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// PanelArtifactPath returns the expected location of the modeling dataset
func (c *Config) PanelArtifactPath() string {
	return filepath.Join(c.Paths.DataDir, "modeling_dataset.csv")
}
