package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/logger"
)

const EnvPrefix = "WATTPLAN"

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Rates  RatesConfig
	LLM    LLMConfig
	Disagg DisaggConfig
	Log    logger.Config
}

type ServerConfig struct {
	Port int
}

type DBConfig struct {
	Path string
}

type RatesConfig struct {
	Peak    float64
	OffPeak float64
}

type LLMConfig struct {
	Provider string // openai, gemini or none
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

type DisaggConfig struct {
	URL     string
	Timeout time.Duration
}

// Dir returns the per-user configuration directory
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wattplan"), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", filepath.Join(dir, "wattplan.db"))
	v.SetDefault("rates.peak", engine.DefaultRates.Peak)
	v.SetDefault("rates.off_peak", engine.DefaultRates.OffPeak)
	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("disagg.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
}

// Load reads configuration from cfgFile (or $HOME/.wattplan/config.yaml when
// empty) and WATTPLAN_* environment variables. A missing default config
// file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	setDefaults(v, dir)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{Port: v.GetInt("server.port")},
		DB:     DBConfig{Path: v.GetString("db.path")},
		Rates: RatesConfig{
			Peak:    v.GetFloat64("rates.peak"),
			OffPeak: v.GetFloat64("rates.off_peak"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(v.GetString("llm.provider")),
			Model:    v.GetString("llm.model"),
			APIKey:   v.GetString("llm.api_key"),
			BaseURL:  v.GetString("llm.base_url"),
			Timeout:  v.GetDuration("llm.timeout"),
		},
		Disagg: DisaggConfig{
			URL:     v.GetString("disagg.url"),
			Timeout: v.GetDuration("disagg.timeout"),
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Rates.Peak <= 0 || c.Rates.OffPeak <= 0 {
		return fmt.Errorf("rates must be positive (peak=%v, off_peak=%v)", c.Rates.Peak, c.Rates.OffPeak)
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "none", "":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// EngineRates returns the tariff used by the cost model
func (c *Config) EngineRates() engine.Rates {
	return engine.Rates{Peak: c.Rates.Peak, OffPeak: c.Rates.OffPeak}
}
