// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// SEND
// =============================================================================

func newSendCommand(flags *globalFlags) *cobra.Command {
	var (
		convID  string
		newConv bool
		title   string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message and print the streamed reply",
		Long: `Send a message to the most recent conversation (or the one given with
--conversation) and stream the reply to stdout. With "-" the message is
read from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if content == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				content = string(data)
			}
			if strings.TrimSpace(content) == "" {
				return errors.New("message is empty")
			}

			out := cmd.OutOrStdout()
			opts := AppOptions{}
			if !asJSON {
				opts.OnDelta = deltaPrinter(out)
			}
			return withApp(cmd, flags, opts, func(app *App) error {
				switch {
				case newConv:
					app.Store.CreateConversation(title)
				case convID != "":
					if !app.Store.SelectConversation(convID) {
						return fmt.Errorf("conversation not found: %s", convID)
					}
				default:
					app.ResumeLatest()
				}

				reply, err := app.Chat.SendMessage(cmd.Context(), content, nil)
				if err != nil {
					return err
				}
				msg, _ := app.Store.Message(reply.ConversationID, reply.MessageID)

				if asJSON {
					return writeJSON(out, map[string]any{
						"conversationId": reply.ConversationID,
						"messageId":      reply.MessageID,
						"outcome":        reply.Outcome,
						"content":        msg.Content,
					})
				}
				fmt.Fprintln(out)
				switch reply.Outcome {
				case chat.OutcomeFailed:
					return errors.New(msg.Content)
				case chat.OutcomeStopped:
					return errors.New("reply stopped")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&convID, "conversation", "", "conversation ID to continue")
	cmd.Flags().BoolVarP(&newConv, "new", "n", false, "start a new conversation")
	cmd.Flags().StringVarP(&title, "title", "t", "", "title for --new")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reply as JSON instead of streaming it")
	return cmd
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func newListCommand(flags *globalFlags) *cobra.Command {
	var (
		query  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				convs := app.Store.Search(query)
				current, _ := app.ResumeLatest()
				out := cmd.OutOrStdout()

				if asJSON {
					type entry struct {
						ID           string `json:"id"`
						Title        string `json:"title"`
						MessageCount int    `json:"messageCount"`
						UpdatedAt    int64  `json:"updatedAt"`
						Current      bool   `json:"current"`
					}
					entries := make([]entry, 0, len(convs))
					for _, c := range convs {
						entries = append(entries, entry{c.ID, c.DisplayTitle(), c.MessageCount(), c.UpdatedAt, c.ID == current})
					}
					return writeJSON(out, entries)
				}

				if len(convs) == 0 {
					fmt.Fprintln(out, dimStyle.Render("No conversations."))
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tTITLE\tMESSAGES\tUPDATED")
				for _, c := range convs {
					marker := ""
					if c.ID == current {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", marker, c.ID,
						util.TruncateWidth(util.SingleLine(c.DisplayTitle()), 40),
						c.MessageCount(),
						model.MillisToTime(c.UpdatedAt).Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "only conversations whose title or messages contain this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newShowCommand(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a conversation (default: the most recent one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				conv, err := conversationArg(app, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if raw || !isTerminalWriter(out) {
					printTranscript(out, conv)
					return nil
				}
				artifact, err := export.Export(conv, export.FormatMarkdown, nil)
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderMarkdown(string(artifact.Data), GetTerminalWidth(), app.Config.UI.Theme))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print plain text even on a terminal")
	return cmd
}

// renderMarkdown renders markdown for terminal display, falling back to
// the source when glamour fails.
func renderMarkdown(content string, width int, theme string) string {
	style := "dark"
	if theme == "light" {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// conversationArg resolves an optional ID argument, defaulting to the
// current conversation.
func conversationArg(app *App, args []string) (*model.Conversation, error) {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else if cur, ok := app.ResumeLatest(); ok {
		id = cur
	}
	if id == "" {
		return nil, errors.New("no conversation selected; pass an ID")
	}
	conv, ok := app.Store.Conversation(id)
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	return conv, nil
}

// =============================================================================
// EXPORT / RENAME / DELETE
// =============================================================================

func newExportCommand(flags *globalFlags) *cobra.Command {
	var (
		formatName string
		output     string
		color      bool
	)
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a conversation as json, markdown, txt or html",
		Long: `Export a conversation (default: the most recent one). The file is written
to --output (a directory, default "."); with --output - it is printed to
stdout, syntax highlighted with --color.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				conv, err := conversationArg(app, args)
				if err != nil {
					return err
				}
				artifact, ok := app.Store.ExportConversation(conv.ID, format)
				if !ok {
					return errors.New("export failed")
				}

				out := cmd.OutOrStdout()
				if output == "-" {
					if color {
						return highlight(out, string(artifact.Data), format)
					}
					_, err := out.Write(artifact.Data)
					return err
				}
				path, err := export.WriteArtifact(output, artifact)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.FormatMarkdown), "json, markdown (md), txt or html")
	cmd.Flags().StringVarP(&output, "output", "o", ".", `output directory, or "-" for stdout`)
	cmd.Flags().BoolVar(&color, "color", false, "highlight stdout output")
	return cmd
}

func newRenameCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				if !app.Store.RenameConversation(args[0], strings.Join(args[1:], " ")) {
					return fmt.Errorf("conversation not found: %s", args[0])
				}
				return nil
			})
		},
	}
}

func newDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id...>",
		Aliases: []string{"rm"},
		Short:   "Delete conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, AppOptions{}, func(app *App) error {
				var missing []string
				for _, id := range args {
					if !app.Store.DeleteConversation(id) {
						missing = append(missing, id)
					}
				}
				if len(missing) > 0 {
					return fmt.Errorf("conversation not found: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

