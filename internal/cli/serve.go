// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the conversation store over HTTP: REST endpoints under /v1,
live store events at /v1/events (Server-Sent Events) and Prometheus
metrics at /metrics when server.metrics is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			opts := AppOptions{Metrics: cfg.Server.Metrics, LogWriter: cmd.ErrOrStderr()}
			if cfg.Log.File != "" {
				opts.LogWriter = nil
			}
			app, err := NewApp(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			srvOpts := server.Options{
				Addr:    addr,
				Store:   app.Store,
				Chat:    app.Chat,
				Metrics: app.Metrics,
				Logger:  app.Logger,
				Version: Version,
			}
			if checker, ok := app.Generator.(generate.Checker); ok {
				srvOpts.Backend = checker
			}
			srv := server.New(srvOpts)
			return serve(cmd.Context(), srv, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}

// serve runs srv until ctx is canceled, then shuts it down gracefully.
func serve(ctx context.Context, srv *server.Server, started func()) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	started()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
