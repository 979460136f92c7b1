package cli

import (
	"context"

	"github.com/bryanwahyu/retailsight/internal/app"
	"github.com/bryanwahyu/retailsight/internal/config"
	"github.com/bryanwahyu/retailsight/internal/logger"
)

// DefaultBuilder loads the config file and wires the real model.
func DefaultBuilder(ctx context.Context, configPath string) (*Services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// the terminal is for the report, logs stay quiet unless asked for
	lc := cfg.Log
	lc.Format = "console"
	if lc.Level == "info" {
		lc.Level = "warn"
	}
	log, err := logger.New(lc)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Services{
		Model:      a.Model.Name(),
		Views:      a.Views,
		Chat:       a.Chat,
		Creative:   a.Creative,
		Forecaster: a.Analysis,
		Catalog:    a.Catalog,
		Encoder:    a.Encoder,
		Close: func() error {
			_ = log.Sync()
			return a.Close()
		},
	}, nil
}
