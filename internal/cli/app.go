// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/ollama"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/storage"
	"github.com/jeranaias/chatdesk/internal/store"
	"github.com/jeranaias/chatdesk/internal/telemetry"
)

// sqliteFile is the database name inside the data directory.
const sqliteFile = "chatdesk.db"

// AppOptions adjusts how an App is assembled for a command.
type AppOptions struct {
	// Interactive routes notifications to a channel for the TUI and sends
	// logs to a file instead of stderr.
	Interactive bool

	// LogWriter overrides the log destination.
	LogWriter io.Writer

	// Metrics enables the Prometheus collectors.
	Metrics bool

	// OnDelta receives each streamed token.
	OnDelta chat.DeltaFunc
}

// App is a fully wired chatdesk: configuration, store, controller and the
// notification fan-out.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   *store.Store
	Chat    *chat.Controller
	Metrics *telemetry.Metrics

	// Generator is the reply backend behind Chat.
	Generator generate.Generator

	// Notifications is set for interactive apps.
	Notifications *notify.ChanNotifier

	closers []io.Closer
}

// NewApp opens the store and builds the controller described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	app := &App{Config: cfg}

	logger, err := app.openLogger(opts)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	if opts.Metrics {
		app.Metrics = telemetry.NewMetrics()
	}

	kv, err := app.openKV()
	if err != nil {
		app.closeAll()
		return nil, err
	}

	notifier := app.openNotifier(opts.Interactive)

	st, err := store.Open(ctx, store.Options{
		KV:       kv,
		Notifier: notifier,
		Logger:   logger,
		AutoSave: session.Config{
			Interval: cfg.SaveInterval(),
			Rate:     cfg.Storage.SaveRate,
		},
		Metrics: app.Metrics,
		Export:  &export.Options{Theme: exportTheme(cfg.UI.Theme)},
	})
	if err != nil {
		app.closeAll()
		return nil, err
	}
	app.Store = st

	gen, err := NewGenerator(cfg)
	if err != nil {
		_ = st.Close(ctx)
		app.closeAll()
		return nil, err
	}

	app.Generator = gen
	app.Chat = chat.New(st, chat.Options{
		Generator: gen,
		Notifier:  notifier,
		Logger:    logger,
		Metrics:   app.Metrics,
		Provider:  strings.ToLower(cfg.Generator.Provider),
		Model:     cfg.Generator.Model,
		OnDelta:   opts.OnDelta,
	})

	logger.Debug().
		Str("backend", cfg.Storage.Backend).
		Str("provider", cfg.Generator.Provider).
		Int("conversations", st.Len()).
		Msg("app ready")
	return app, nil
}

// Close stops any reply, flushes the store and releases every resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Chat != nil {
		a.Chat.StopGeneration()
	}
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ResumeLatest selects the most recently updated conversation when none is
// current. Selection is not persisted, so every command starts without one.
func (a *App) ResumeLatest() (string, bool) {
	if id, ok := a.Store.Current(); ok {
		return id, true
	}
	convs := a.Store.Conversations()
	if len(convs) == 0 {
		return "", false
	}
	a.Store.SelectConversation(convs[0].ID)
	return convs[0].ID, true
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// WIRING
// =============================================================================

func (a *App) openLogger(opts AppOptions) (zerolog.Logger, error) {
	cfg := a.Config.Log
	w := opts.LogWriter

	path := cfg.File
	if w == nil && path == "" && opts.Interactive {
		dir, err := config.ConfigDir()
		if err != nil {
			return zerolog.Nop(), err
		}
		path = filepath.Join(dir, "chatdesk.log")
	}
	if w == nil && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return zerolog.Nop(), fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		w = f
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.NewWithWriter(w, cfg.Level, cfg.Format)
}

// openKV builds the configured backend, wrapped in encryption when asked.
func (a *App) openKV() (storage.KV, error) {
	cfg := a.Config
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	var kv storage.KV
	switch strings.ToLower(cfg.Storage.Backend) {
	case "memory":
		kv = storage.NewMemoryKV()
	case "sqlite":
		db, err := storage.OpenSQLiteKV(filepath.Join(dir, sqliteFile))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		kv = db
	default:
		fkv, err := storage.NewFileKV(dir)
		if err != nil {
			return nil, err
		}
		kv = fkv
	}

	if cfg.Storage.Encrypt {
		enc, err := storage.NewEncryptedKV(kv, cfg.Storage.Passphrase)
		if err != nil {
			return nil, err
		}
		kv = enc
	}
	return kv, nil
}

// openNotifier fans notifications out to the log, NATS when configured,
// and the TUI channel for interactive apps. A NATS server that cannot be
// reached is logged and skipped.
func (a *App) openNotifier(interactive bool) notify.Notifier {
	cfg := a.Config
	dur := cfg.NotifyDuration()
	targets := notify.Multi{notify.NewLogNotifier(a.Logger, dur)}

	if cfg.Notify.NATSURL != "" {
		nn, err := notify.ConnectNATS(cfg.Notify.NATSURL, cfg.Notify.NATSSubject, dur, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Str("url", cfg.Notify.NATSURL).Msg("NATS notifications disabled")
		} else {
			a.closers = append(a.closers, nn)
			targets = append(targets, nn)
		}
	}

	if interactive {
		a.Notifications = notify.NewChanNotifier(64, dur)
		targets = append(targets, a.Notifications)
	}
	return targets
}

// NewGenerator builds the reply generator named by cfg.Generator.Provider.
func NewGenerator(cfg *config.Config) (generate.Generator, error) {
	g := cfg.Generator
	switch strings.ToLower(g.Provider) {
	case "", "canned":
		minDelay, maxDelay := cfg.DelayRange()
		return &generate.Canned{MinDelay: minDelay, MaxDelay: maxDelay}, nil
	case "ollama":
		return newOllama(cfg), nil
	case "openai":
		return generate.NewOpenAI(generate.OpenAIConfig{
			APIKey:      g.OpenAIKey,
			BaseURL:     g.OpenAIURL,
			Model:       g.Model,
			Temperature: g.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", g.Provider)
	}
}

// newOllama builds an Ollama generator for the configured server, whatever
// the selected provider.
func newOllama(cfg *config.Config) *generate.Ollama {
	clientCfg := ollama.DefaultConfig()
	clientCfg.BaseURL = cfg.Generator.OllamaURL
	if cfg.Generator.Model != "" {
		clientCfg.DefaultModel = cfg.Generator.Model
	}
	return generate.NewOllama(ollama.NewClientWithConfig(clientCfg), cfg.Generator.Model)
}

func exportTheme(uiTheme string) string {
	if uiTheme == "light" {
		return "light"
	}
	return "dark"
}
