// Package config loads the settings of the regions tools from flags,
// environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/regions"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "REGIONS"

// HTTPConfig holds the settings of the inspection server
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Config holds the settings shared by the CLI commands
type Config struct {
	// Directory holding <view>.feat and <view>.desc files
	FeaturesDir string `mapstructure:"features_dir"`
	// Registered describer of the region files
	Describer string `mapstructure:"describer"`
	// Compression of descriptor files written by the tools (none, zstd, lz4)
	DescriptorCompression string `mapstructure:"descriptor_compression"`
	// Number of views loaded in parallel
	Workers int `mapstructure:"workers"`
	// Log level (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level"`
	// Whether Prometheus metrics are collected
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	// Inspection server settings
	HTTP HTTPConfig `mapstructure:"http"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		FeaturesDir:           "./matches",
		Describer:             regions.SIFT,
		DescriptorCompression: descriptors.CompressionNone.String(),
		Workers:               4,
		LogLevel:              "info",
		MetricsEnabled:        true,
		HTTP: HTTPConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// SetDefaults registers the defaults on v
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("features_dir", d.FeaturesDir)
	v.SetDefault("describer", d.Describer)
	v.SetDefault("descriptor_compression", d.DescriptorCompression)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("metrics_enabled", d.MetricsEnabled)
	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
}

// NewViper creates a viper instance reading cfgFile, or .regions.{yaml,json,toml}
// from the working and home directories when cfgFile is empty, and
// REGIONS_* environment variables.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".regions")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer())
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// http.port is read from REGIONS_HTTP_PORT
func envReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Compression returns the parsed descriptor compression
func (c Config) Compression() descriptors.Compression {
	comp, err := descriptors.ParseCompression(c.DescriptorCompression)
	if err != nil {
		return descriptors.CompressionNone
	}
	return comp
}

// Addr returns the listen address of the inspection server
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
