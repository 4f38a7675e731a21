package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/wattplan/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, engine.DefaultRates, cfg.EngineRates())
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, cfg.DB.Path, filepath.Join(".wattplan", "wattplan.db"))
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
rates:
  peak: 0.30
  off_peak: 0.12
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("WATTPLAN_LLM_API_KEY", "sk-test")
	t.Setenv("WATTPLAN_SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, engine.Rates{Peak: 0.30, OffPeak: 0.12}, cfg.EngineRates())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Server: ServerConfig{Port: 8080},
		Rates:  RatesConfig{Peak: 0.25, OffPeak: 0.2},
		LLM:    LLMConfig{Provider: "gemini"},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Rates.OffPeak = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.LLM.Provider = "claude"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Server.Port = 70000
	assert.Error(t, bad.Validate())
}
