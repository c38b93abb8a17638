package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kalambet/keyprefs/internal/assets"
	"github.com/kalambet/keyprefs/internal/config"
	"github.com/kalambet/keyprefs/internal/device"
	"github.com/kalambet/keyprefs/internal/layout"
	"github.com/kalambet/keyprefs/internal/logging"
	"github.com/kalambet/keyprefs/internal/prefs"
	"github.com/kalambet/keyprefs/internal/storage"
)

// app holds the wired settings core for one command invocation.
type app struct {
	store   *storage.Store
	assets  *assets.Source
	devices *device.Cache
	symbols *layout.Manager
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.Log.Level); err != nil {
		return nil, err
	}
	log := logging.L()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	src := assets.Bundled()
	if cfg.Assets.Dir != "" {
		src = assets.Dir(cfg.Assets.Dir)
	}
	log.Debug("settings core ready",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("assets_dir", cfg.Assets.Dir))

	return &app{
		store:   store,
		assets:  src,
		devices: device.NewCache(prefs.NewAdapter(store), src, log.Named("device")),
		symbols: layout.NewManager(layout.SymbolsPage, store, log.Named("layout")),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
