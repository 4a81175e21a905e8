package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/config"
	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/logging"
	"github.com/unclebandit/campaign-studio/internal/repository"
	"github.com/unclebandit/campaign-studio/internal/scheduler"
)

type app struct {
	cfg       config.Config
	openVault func(ctx context.Context, cfg config.Config) (*repository.Vault, error)
	now       func() time.Time
}

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &app{cfg: cfg, openVault: repository.Open, now: time.Now}, nil
}

func (a *app) logger(w io.Writer) zerolog.Logger {
	return logging.NewWithWriter(logging.Config{Level: a.cfg.LogLevel, Console: true}, w)
}

// vault opens the configured backend. Unlike the server, the CLI treats a
// missing vault configuration as an error.
func (a *app) vault(ctx context.Context) (*repository.Vault, error) {
	v, err := a.openVault(ctx, a.cfg)
	if errors.Is(err, appErrors.ErrVaultDisabled) {
		return nil, fmt.Errorf("%s vault: %w", a.cfg.VaultBackend, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return v, nil
}

func (a *app) planner(lookup scheduler.LatestLookup, log zerolog.Logger) *scheduler.Planner {
	return scheduler.NewPlanner(scheduler.Config{
		Location:          a.cfg.Location,
		AnchorAllStatuses: a.cfg.AnchorAllStatuses,
		LookupTimeout:     a.cfg.VaultTimeout,
	}, lookup, log).WithClock(a.now)
}
