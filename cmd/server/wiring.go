package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/warp/match-engine/config"
	"github.com/warp/match-engine/engine"
	memstore "github.com/warp/match-engine/engine/store"
	"github.com/warp/match-engine/factory"
	"github.com/warp/match-engine/notify"
	"github.com/warp/match-engine/pricing"
	"github.com/warp/match-engine/provider"
	"github.com/warp/match-engine/store/rest"
	"github.com/warp/match-engine/store/sqlite"
)

// app is the set of collaborators every command needs.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      engine.RecordStore
	rates      pricing.RateTable
	service    *engine.Service
	dispatcher *notify.Dispatcher

	closers []func() error
}

func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: cfg.Log.Logger(logOut)}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.store = store

	a.rates = factory.DefaultRates()
	if cfg.Pricing.RatesFile != "" {
		rates, err := factory.NewRateFactory().LoadRates(cfg.Pricing.RatesFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rates = *rates
	}

	a.service = engine.NewService(store, provider.NewDirectory(store),
		engine.WithLogger(a.logger),
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithRematchTimeout(cfg.Engine.RematchTimeout),
		engine.WithRates(a.rates),
	)

	senders := notify.Multi{notify.LogSender{Logger: a.logger}}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	a.dispatcher = notify.NewDispatcher(senders, a.logger)

	return a, nil
}

func (a *app) openStore() (engine.RecordStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		path := a.cfg.Store.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	case config.DriverREST:
		return rest.New(a.cfg.Store.RESTURL, a.cfg.Store.RESTAPIKey), nil
	case config.DriverMemory:
		return memstore.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}

// Close releases the store.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
