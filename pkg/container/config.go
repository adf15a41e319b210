package container

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override Config
const EnvPrefix = "GOCDI_"

// Config contains configuration options for the container
type Config struct {
	// EnableMetrics enables bean metrics
	EnableMetrics bool `yaml:"enable_metrics"`
	// StrictQualifiers reports several qualifier matches as ambiguous instead
	// of picking the first registered one
	StrictQualifiers bool `yaml:"strict_qualifiers"`
	// EagerSingletons creates every singleton during start
	EagerSingletons bool `yaml:"eager_singletons"`
	// RetryFailedSingletons lets a later lookup retry a singleton whose
	// construction failed. When false the first failure is returned forever.
	RetryFailedSingletons bool `yaml:"retry_failed_singletons"`
	// LogLevel is debug, info, warn or error. Ignored when Logger is set.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json. Ignored when Logger is set.
	LogFormat string `yaml:"log_format"`

	// Logger for container operations (uses slog.Default if nil and no
	// level or format is configured)
	Logger *slog.Logger `yaml:"-"`
	// MetricsRegistry receives the Prometheus collectors. Nil keeps only the
	// in-memory snapshot.
	MetricsRegistry *prometheus.Registry `yaml:"-"`
	// PropertyLoaders run before the builder block, in order
	PropertyLoaders []PropertyLoader `yaml:"-"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		EnableMetrics:         true,
		RetryFailedSingletons: true,
		PropertyLoaders: []PropertyLoader{
			YamlLoader{},
			EnvLoader{},
		},
	}
}

// LoadConfig builds a Config from the container section of a YAML file, then
// a .env file if present, then GOCDI_* environment variables. The same YAML
// file is also loaded as properties. A missing file is not an error.
//
//	container:
//	  strict_qualifiers: true
//	  log_level: debug
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			file := struct {
				Container Config `yaml:"container"`
			}{Container: *cfg}
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, ConfigurationError("parsing "+path, err)
			}
			*cfg = file.Container
			cfg.PropertyLoaders = []PropertyLoader{YamlLoader{ConfigPath: path}, EnvLoader{}}
		case !os.IsNotExist(err):
			return nil, ConfigurationError("reading "+path, err)
		}
	}

	// .env may not exist in production
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ConfigurationError("loading .env", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	bools := map[string]*bool{
		"ENABLE_METRICS":          &c.EnableMetrics,
		"STRICT_QUALIFIERS":       &c.StrictQualifiers,
		"EAGER_SINGLETONS":        &c.EagerSingletons,
		"RETRY_FAILED_SINGLETONS": &c.RetryFailedSingletons,
	}
	for name, target := range bools {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ConfigurationError(fmt.Sprintf("invalid %s%s", EnvPrefix, name), err)
		}
		*target = b
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return nil
}

// Validate checks the logging options
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
		return nil
	}
	return ConfigurationError("unknown log format "+c.LogFormat, nil)
}

// logger returns the configured logger, building one from LogLevel and
// LogFormat when no Logger is set
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel == "" && c.LogFormat == "" {
		return slog.Default()
	}

	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(c.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, ConfigurationError("unknown log level "+level, nil)
}
