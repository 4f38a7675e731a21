package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/wattplan/internal/config"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/logger"
)

func testConfig(t *testing.T, provider string) *config.Config {
	return &config.Config{
		DB:    config.DBConfig{Path: filepath.Join(t.TempDir(), "data", "wattplan.db")},
		Rates: config.RatesConfig{Peak: engine.DefaultRates.Peak, OffPeak: engine.DefaultRates.OffPeak},
		LLM:   config.LLMConfig{Provider: provider},
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		provider string
		enabled  bool
	}{
		{"none", false},
		{"openai", true},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			a, err := Open(context.Background(), testConfig(t, tt.provider), logger.Discard())
			require.NoError(t, err)
			defer a.Close()

			assert.Equal(t, tt.enabled, a.Advisor.AssistantEnabled())
			assert.Equal(t, engine.DefaultRates, a.Advisor.Rates())
			require.NoError(t, a.Store.Ping(context.Background()))
		})
	}
}
