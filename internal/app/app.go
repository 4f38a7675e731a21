// Package app wires the services shared by the CLI and the daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/awaistahir/wattplan/internal/advisor"
	"github.com/awaistahir/wattplan/internal/config"
	"github.com/awaistahir/wattplan/internal/disagg"
	"github.com/awaistahir/wattplan/internal/household"
	"github.com/awaistahir/wattplan/internal/llm"
	"github.com/awaistahir/wattplan/internal/onboarding"
	"github.com/awaistahir/wattplan/internal/store"
)

type App struct {
	Config    *config.Config
	Store     *store.Store
	Advisor   *advisor.Advisor
	Household *household.Service
	Estimator *onboarding.Estimator
	Logger    *slog.Logger

	closers []io.Closer
}

// Open opens the database and builds the services. A misconfigured model
// provider is logged and the advisor runs in calculated-only mode.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.NewStore(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	completer, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		logger.WarnContext(ctx, "assistant disabled", "provider", cfg.LLM.Provider, "error", err)
		completer = nil
	}

	var estimator *onboarding.Estimator
	if cfg.Disagg.URL != "" {
		estimator = onboarding.NewEstimator(disagg.NewClient(cfg.Disagg.URL, cfg.Disagg.Timeout), logger)
	} else {
		estimator = onboarding.NewEstimator(nil, logger)
	}

	closers := []io.Closer{st}
	if c, ok := completer.(io.Closer); ok {
		closers = append(closers, c)
	}

	rates := cfg.EngineRates()
	return &App{
		Config:    cfg,
		Store:     st,
		Advisor:   advisor.New(st, completer, rates, logger),
		Household: household.NewService(st, rates, logger),
		Estimator: estimator,
		Logger:    logger,
		closers:   closers,
	}, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
