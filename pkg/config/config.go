// Package config provides configuration loading and validation for heatmap.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidPort         = errors.New("invalid server port")
	ErrInvalidPalette      = errors.New("invalid palette")
	ErrInvalidCap          = errors.New("file change cap must be positive")
	ErrNoDataLocation      = errors.New("data dir or base url required")
	ErrInvalidRateLimit    = errors.New("rate limit must not be negative")
	ErrInvalidCacheEntries = errors.New("calendar cache entries must be positive")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
)

// Default configuration values.
const (
	defaultPort         = 8080
	defaultHost         = "127.0.0.1"
	defaultDataDir      = "data"
	defaultCachePath    = "heatmap-cache.db"
	defaultCacheEntries = 32
	maxPort             = 65535

	configName = "heatmap"
	configType = "yaml"
	envPrefix  = "HEATMAP"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Config holds all configuration for heatmap.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig locates the data documents. BaseURL wins over Dir when set.
type DataConfig struct {
	Dir     string        `mapstructure:"dir"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit caps requests per second to BaseURL; zero is unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// CacheConfig holds the on-disk document cache configuration.
type CacheConfig struct {
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
	Enabled bool          `mapstructure:"enabled"`
}

// CalendarConfig holds presentation settings.
type CalendarConfig struct {
	Palette         []string `mapstructure:"palette"`
	TemperatureUnit string   `mapstructure:"temperature_unit"`
	DefaultMode     string   `mapstructure:"default_mode"`
	FileChangeCap   float64  `mapstructure:"file_change_cap"`
	// CacheEntries bounds the calendars kept in memory by the server.
	CacheEntries    int  `mapstructure:"cache_entries"`
	ShowTemperature bool `mapstructure:"show_temperature"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from defaults, an optional file and
// HEATMAP_* environment variables. When configPath is empty heatmap.yaml is
// searched in ".", "./config" and "/etc/heatmap"; a missing file is not an
// error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType(configType)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/heatmap")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Server defaults.
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.read_timeout", "15s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	// Data defaults.
	viperCfg.SetDefault("data.dir", defaultDataDir)
	viperCfg.SetDefault("data.base_url", "")
	viperCfg.SetDefault("data.rate_limit", 0)
	viperCfg.SetDefault("data.timeout", "30s")

	// Cache defaults.
	viperCfg.SetDefault("cache.enabled", false)
	viperCfg.SetDefault("cache.path", defaultCachePath)
	viperCfg.SetDefault("cache.ttl", "1h")

	// Calendar defaults.
	viperCfg.SetDefault("calendar.palette", []string(calendar.DefaultPalette))
	viperCfg.SetDefault("calendar.file_change_cap", calendar.DefaultFileChangeCap)
	viperCfg.SetDefault("calendar.temperature_unit", calendar.DefaultTemperatureUnit)
	viperCfg.SetDefault("calendar.default_mode", calendar.DefaultMode.Name())
	viperCfg.SetDefault("calendar.show_temperature", false)
	viperCfg.SetDefault("calendar.cache_entries", defaultCacheEntries)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.json", false)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Data.Dir == "" && c.Data.BaseURL == "" {
		return ErrNoDataLocation
	}

	if c.Data.RateLimit < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRateLimit, c.Data.RateLimit)
	}

	if len(c.Calendar.Palette) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPalette)
	}

	for _, color := range c.Calendar.Palette {
		if !hexColor.MatchString(color) {
			return fmt.Errorf("%w: %q is not a #rrggbb color", ErrInvalidPalette, color)
		}
	}

	if c.Calendar.FileChangeCap <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCap, c.Calendar.FileChangeCap)
	}

	if c.Calendar.CacheEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheEntries, c.Calendar.CacheEntries)
	}

	if _, err := calendar.ParseMode(c.Calendar.DefaultMode); err != nil {
		return err
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// CalendarSettings returns the calendar settings.
func (c *Config) CalendarSettings() calendar.Config {
	return calendar.Config{
		Palette:         calendar.Palette(c.Calendar.Palette),
		FileChangeCap:   c.Calendar.FileChangeCap,
		TemperatureUnit: c.Calendar.TemperatureUnit,
	}
}

// DefaultMode returns the configured initial mode.
func (c *Config) DefaultMode() calendar.Mode {
	mode, err := calendar.ParseMode(c.Calendar.DefaultMode)
	if err != nil {
		return calendar.DefaultMode
	}

	return mode
}

// Observability returns the telemetry and logging settings for appMode.
func (c *Config) Observability(appMode observability.AppMode, version string) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version
	obsCfg.Mode = appMode
	obsCfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = c.Telemetry.SampleRatio
	obsCfg.LogJSON = c.Logging.JSON

	level, err := observability.ParseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	obsCfg.LogLevel = level

	return obsCfg
}
