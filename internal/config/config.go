package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "lacphcli/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. LACPH_SERVER_ADDR.
const EnvPrefix = "LACPH"

// Config represents the complete application configuration
type Config struct {
	Fetch      FetchConfig      `yaml:"fetch" envconfig:"FETCH"`
	Store      StoreConfig      `yaml:"store" envconfig:"STORE"`
	Rules      RulesConfig      `yaml:"rules" envconfig:"RULES"`
	Population PopulationConfig `yaml:"population" envconfig:"POPULATION"`
	Regions    RegionsConfig    `yaml:"regions" envconfig:"REGIONS"`
	Series     SeriesConfig     `yaml:"series" envconfig:"SERIES"`
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
}

// FetchConfig controls where bulletins come from.
type FetchConfig struct {
	// Source is "http" for the public site or "dir" for a cache directory.
	Source      string        `yaml:"source" envconfig:"SOURCE" validate:"oneof=http dir"`
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	IndexFile   string        `yaml:"index_file" envconfig:"INDEX_FILE"`
	CacheDir    string        `yaml:"cache_dir" envconfig:"CACHE_DIR"`
	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=32"`
	RPS         float64       `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst       int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// StoreConfig selects the report store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=memory sqlite"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// RulesConfig points at a correction rule table. Empty uses the built-in one.
type RulesConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// PopulationConfig points at a reference population file. Empty uses the
// built-in one.
type PopulationConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// RegionsConfig points at an area to region CSV. Empty uses the built-in one.
type RegionsConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// SeriesConfig tunes the area activity filter.
type SeriesConfig struct {
	ActiveWindowDays int `yaml:"active_window_days" envconfig:"ACTIVE_WINDOW_DAYS" validate:"min=1"`
	ActiveMinDays    int `yaml:"active_min_days" envconfig:"ACTIVE_MIN_DAYS" validate:"min=0,ltefield=ActiveWindowDays"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig contains OpenTelemetry exporter settings
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Source:      "http",
			BaseURL:     "http://publichealth.lacounty.gov/phcommon/public/media/mediapubdetail.cfm",
			Concurrency: 4,
			RPS:         2,
			Burst:       1,
			Timeout:     30 * time.Second,
			UserAgent:   "lacph/1.0",
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Series: SeriesConfig{
			ActiveWindowDays: 60,
			ActiveMinDays:    50,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/lacph.log",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Paths: PathsConfig{
			DataDir: "data",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// LACPH_* environment variables, in increasing precedence. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewConfigError("read config file", err).WithContext("path", path)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, apperrors.NewConfigError("decode config file", err).WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	if c.Fetch.Source == "http" && c.Fetch.BaseURL == "" {
		return apperrors.NewConfigError("fetch.base_url is required for the http source", nil)
	}
	return nil
}
