// Package config loads engine defaults from a config file and RISOR_SCRIPT_*
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "RISOR_SCRIPT"

// Keys, also used as config file keys.
const (
	KeyFilename       = "filename"
	KeySourcePath     = "sourcepath"
	KeyModulePath     = "modulepath"
	KeyMainUnit       = "main_unit"
	KeyAllowNonPublic = "allow_non_public"
	KeyLogLevel       = "log_level"
)

// Config holds the values the engine falls back to when a script context
// does not set them.
type Config struct {
	Filename       string `mapstructure:"filename"`
	SourcePath     string `mapstructure:"sourcepath"`
	ModulePath     string `mapstructure:"modulepath"`
	MainUnit       string `mapstructure:"main_unit"`
	AllowNonPublic bool   `mapstructure:"allow_non_public"`
	LogLevel       string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AllowNonPublic: true,
		LogLevel:       "warn",
	}
}

// LoadOptions control where Load looks for values.
type LoadOptions struct {
	// File is an optional config file. Its format follows the extension.
	File string
	// Viper, when set, is used instead of a fresh instance. The CLI passes
	// the instance its flags are bound to.
	Viper *viper.Viper
}

// Load reads the configuration. Later sources override earlier ones:
// defaults, the config file, the environment, then flags bound to
// opts.Viper.
func Load(opts LoadOptions) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}
	return FromViper(v)
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyFilename, d.Filename)
	v.SetDefault(KeySourcePath, d.SourcePath)
	v.SetDefault(KeyModulePath, d.ModulePath)
	v.SetDefault(KeyMainUnit, d.MainUnit)
	v.SetDefault(KeyAllowNonPublic, d.AllowNonPublic)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

// FromViper decodes the current values of v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
