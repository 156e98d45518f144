// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/ollama"
)

func newModelsCommand(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available on the Ollama server",
		Long: `List the models pulled on the Ollama server at generator.ollama_url.
The configured model is marked with *.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			gen := newOllama(cfg)

			models, err := gen.Models(cmd.Context())
			if err != nil {
				if ollama.IsNotRunning(err) || generate.CodeOf(err) == generate.CodeUnavailable {
					return fmt.Errorf("cannot reach Ollama at %s (start it with `ollama serve`): %w", cfg.Generator.OllamaURL, err)
				}
				return err
			}

			configured := cfg.Generator.Model
			if configured == "" {
				configured = ollama.DefaultModel
			}
			out := cmd.OutOrStdout()

			if asJSON {
				type entry struct {
					Name       string `json:"name"`
					Size       int64  `json:"size"`
					ModifiedAt string `json:"modifiedAt"`
					Configured bool   `json:"configured"`
				}
				entries := make([]entry, 0, len(models))
				for _, m := range models {
					entries = append(entries, entry{m.Name, m.Size, m.ModifiedAt.Format(time.RFC3339), isModel(m.Name, configured)})
				}
				return writeJSON(out, entries)
			}

			if len(models) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No models. Pull one with `ollama pull "+configured+"`."))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tSIZE\tMODIFIED")
			for _, m := range models {
				marker := ""
				if isModel(m.Name, configured) {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, m.Name, formatBytes(m.Size), m.ModifiedAt.Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if err := gen.Check(cmd.Context()); errors.Is(err, &generate.Error{Code: generate.CodeModelNotFound}) {
				fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("Model %q is not pulled.", configured)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// isModel reports whether name is the model configured, allowing the
// implicit :latest tag.
func isModel(name, configured string) bool {
	return name == configured || name == configured+":latest"
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
