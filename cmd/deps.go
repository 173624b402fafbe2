package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"timesync/cache"
	"timesync/config"
	"timesync/connector/tempo"
	"timesync/connector/toggl"
	"timesync/connector/toolkit"
	"timesync/provider"
)

// runDeps bundles everything a flow command needs: the validated config, the
// open cache store, the provider session and a logger. Close releases the
// cache database.
type runDeps struct {
	cfg     *config.Config
	store   *cache.Store
	session *provider.Session
	log     zerolog.Logger
}

func (d *runDeps) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
}

func buildRunDeps() (*runDeps, error) {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return nil, err
	}

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	log := newLogger()

	worklogProvider, err := tempo.New(tempo.Config{
		WorklogURL: cfg.Worklog.URL,
		IssueURL:   cfg.Worklog.IssueURL,
		APIToken:   cfg.Worklog.Token,
	}, store, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("worklog provider: %w", err)
	}

	toolkitProvider, err := toolkit.New(toolkit.Config{
		BaseURL:  cfg.Toolkit.URL,
		APIToken: cfg.Toolkit.Token,
	}, store, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("toolkit provider: %w", err)
	}

	providers := []provider.TimeProvider{worklogProvider, toolkitProvider}

	// The timer is optional; without a configured URL the transfer flow is
	// simply unavailable.
	if cfg.Timer.URL != "" && cfg.Timer.Token != "" {
		timerProvider, err := toggl.New(toggl.Config{
			APIURL:   cfg.Timer.URL,
			Email:    cfg.Timer.Email,
			APIToken: cfg.Timer.Token,
		}, log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("timer provider: %w", err)
		}
		providers = append(providers, timerProvider)
	}

	return &runDeps{
		cfg:     cfg,
		store:   store,
		session: provider.NewSession(providers...),
		log:     log,
	}, nil
}

func openCache(cfg *config.Config) (*cache.Store, error) {
	path := cfg.Cache.Path
	if path == "" {
		var err error
		path, err = cache.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return cache.Open(path)
}

// requireAuthenticated resolves a provider by name and verifies its
// authentication once per session.
func requireAuthenticated(ctx context.Context, deps *runDeps, name string) (provider.TimeProvider, error) {
	p, err := deps.session.Find(name)
	if err != nil {
		return nil, err
	}
	if !deps.session.Authenticated(ctx, p) {
		return nil, fmt.Errorf("%s: %w", name, provider.ErrNotAuthenticated)
	}
	return p, nil
}
