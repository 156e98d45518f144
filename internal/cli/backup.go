// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/util"
)

func newBackupCommand(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write every conversation to a backup file",
		Long: `Write every conversation to --output as JSON in the saved layout.
With --output - (the default) the backup is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				data, err := app.Store.Backup()
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := util.AtomicWriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d conversations to %s\n",
					successStyle.Render("Saved"), app.Store.Len(), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", `backup file, or "-" for stdout`)
	return cmd
}

func newRestoreCommand(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace every conversation with a backup",
		Long: `Replace every conversation with the contents of a backup written by
"chatdesk backup". Use - to read from stdin. Backups in older layouts are
upgraded. Existing conversations are lost, so --yes is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore replaces every conversation; pass --yes to confirm")
			}
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}

			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				n, err := app.Store.Restore(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d conversations\n", successStyle.Render("Restored"), n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm replacing every conversation")
	return cmd
}

func newClearCommand(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("clear deletes every conversation; pass --yes to confirm")
			}
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				app.Store.Clear()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting every conversation")
	return cmd
}
