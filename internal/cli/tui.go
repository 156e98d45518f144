// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/ui/chat"
)

func newTUICommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
}

func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	if !IsTTY() || !IsStdoutTTY() {
		return errors.New("the terminal UI needs an interactive terminal; use 'chatdesk repl' or 'chatdesk send'")
	}

	return withApp(cmd, flags, AppOptions{Interactive: true}, func(app *App) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		app.ResumeLatest()
		if path, err := configPathFor(flags); err == nil {
			watchConfig(ctx, path, app.Logger, app.Notifications)
		}

		return chat.Run(ctx, chat.Options{
			Store:         app.Store,
			Controller:    app.Chat,
			Notifications: app.Notifications.C(),
			Theme:         app.Config.UI.Theme,
			Compact:       app.Config.UI.Compact,
		})
	})
}

// watchConfig validates the config file whenever it is edited while the app
// runs and reports the result. New settings take effect on restart.
func watchConfig(ctx context.Context, path string, logger zerolog.Logger, n notify.Notifier) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("config reload failed")
			n.Notify(notify.Notification{
				Type:    notify.TypeWarning,
				Title:   "Configuration Invalid",
				Message: err.Error(),
			})
			return
		}
		logger.Info().Str("path", path).Str("provider", cfg.Generator.Provider).Msg("config changed")
		n.Notify(notify.Notification{
			Type:    notify.TypeInfo,
			Title:   "Configuration Changed",
			Message: "Restart chatdesk to apply it.",
		})
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watch unavailable")
	}
}
