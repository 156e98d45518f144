// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/model"
)

const replPrompt = "chatdesk> "

func newREPLCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "repl",
		Aliases: []string{"chat"},
		Short:   "Line-oriented chat with history",
		Long: `Chat line by line. Replies stream as they arrive; Ctrl+C stops a reply,
Ctrl+C at the prompt or Ctrl+D exits. Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts := AppOptions{OnDelta: deltaPrinter(out)}
			return withApp(cmd, flags, opts, func(app *App) error {
				return runREPL(context.WithoutCancel(cmd.Context()), app, out)
			})
		},
	}
}

// deltaPrinter writes streamed tokens as they arrive.
func deltaPrinter(w io.Writer) chat.DeltaFunc {
	return func(_, _ string, delta string) {
		fmt.Fprint(w, delta)
	}
}

// =============================================================================
// LINE EDITING
// =============================================================================

// lineReader provides input history and line editing.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(configDir, "repl_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) read() (string, error) {
	input, err := r.line.Prompt(replPrompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// close persists history with owner-only permissions.
func (r *lineReader) close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL LOOP
// =============================================================================

func runREPL(ctx context.Context, app *App, out io.Writer) error {
	reader := newLineReader()
	defer reader.close()

	// Ctrl+C outside the prompt arrives as a signal and stops the reply.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			app.Chat.StopGeneration()
		}
	}()

	sess := &replSession{app: app, out: out, ctx: ctx}
	if id, ok := app.ResumeLatest(); ok {
		if conv, found := app.Store.Conversation(id); found {
			fmt.Fprintf(out, "Continuing %s\n", titleStyle.Render(conv.DisplayTitle()))
		}
	}
	fmt.Fprintln(out, dimStyle.Render("Type a message, or /help for commands."))

	for {
		input, err := reader.read()
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin
			fmt.Fprintln(out)
			return nil
		}
		quit, err := sess.handle(input)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
	}
}

// replSession executes one input line at a time.
type replSession struct {
	app *App
	out io.Writer
	ctx context.Context
}

// handle runs input as a slash command or sends it as a message. It
// reports whether the session should end.
func (s *replSession) handle(input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true, nil
	}
	if !strings.HasPrefix(input, "/") {
		return false, s.send(input)
	}

	name, arg, _ := strings.Cut(input[1:], " ")
	arg = strings.TrimSpace(arg)
	st := s.app.Store

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true, nil

	case "help", "h", "?":
		s.printHelp()

	case "new":
		st.CreateConversation(arg)
		fmt.Fprintln(s.out, successStyle.Render("Started a new conversation."))

	case "list", "ls":
		s.printList()

	case "switch", "sw":
		conv, err := s.resolve(arg)
		if err != nil {
			return false, err
		}
		st.SelectConversation(conv.ID)
		fmt.Fprintf(s.out, "Switched to %s\n", titleStyle.Render(conv.DisplayTitle()))

	case "rename":
		id, err := s.current()
		if err != nil {
			return false, err
		}
		if arg == "" {
			return false, errors.New("usage: /rename <title>")
		}
		st.RenameConversation(id, arg)

	case "delete", "rm":
		id, err := s.current()
		if err != nil {
			return false, err
		}
		st.DeleteConversation(id)
		fmt.Fprintln(s.out, warningStyle.Render("Conversation deleted."))

	case "regen", "regenerate":
		reply, err := s.app.Chat.RegenerateLast(s.ctx)
		if errors.Is(err, chat.ErrInvalidTarget) {
			return false, errors.New("nothing to regenerate")
		}
		if err != nil {
			return false, err
		}
		s.finish(reply)

	case "search", "find":
		st.SearchMessages(arg)
		s.printList()

	case "export":
		return false, s.export(arg)

	case "history", "show":
		id, err := s.current()
		if err != nil {
			return false, err
		}
		conv, _ := st.Conversation(id)
		printTranscript(s.out, conv)

	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return false, nil
}

func (s *replSession) send(content string) error {
	fmt.Fprint(s.out, labelStyle.Render("Claude: "))
	reply, err := s.app.Chat.SendMessage(s.ctx, content, nil)
	if err != nil {
		fmt.Fprintln(s.out)
		return err
	}
	s.finish(reply)
	return nil
}

// finish ends the streamed line and explains an interrupted reply.
func (s *replSession) finish(reply chat.Reply) {
	fmt.Fprintln(s.out)
	switch reply.Outcome {
	case chat.OutcomeStopped:
		fmt.Fprintln(s.out, warningStyle.Render("[Stopped]"))
	case chat.OutcomeFailed:
		msg, _ := s.app.Store.Message(reply.ConversationID, reply.MessageID)
		if msg != nil {
			fmt.Fprintln(s.out, errorStyle.Render(msg.Content))
		}
	}
}

func (s *replSession) current() (string, error) {
	id, ok := s.app.Store.Current()
	if !ok {
		return "", errors.New("no conversation selected")
	}
	return id, nil
}

// resolve finds a conversation by its 1-based position in /list or by ID.
func (s *replSession) resolve(arg string) (*model.Conversation, error) {
	if arg == "" {
		return nil, errors.New("usage: /switch <number|id>")
	}
	convs := s.app.Store.Filtered()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(convs) {
			return nil, fmt.Errorf("no conversation #%d", n)
		}
		return convs[n-1], nil
	}
	if conv, ok := s.app.Store.Conversation(arg); ok {
		return conv, nil
	}
	return nil, fmt.Errorf("conversation not found: %s", arg)
}

func (s *replSession) export(arg string) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	formatName, dir, _ := strings.Cut(arg, " ")
	if formatName == "" {
		formatName = string(export.FormatMarkdown)
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	artifact, ok := s.app.Store.ExportConversation(id, format)
	if !ok {
		return errors.New("export failed")
	}
	path, err := export.WriteArtifact(strings.TrimSpace(dir), artifact)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Exported to %s\n", path)
	return nil
}

func (s *replSession) printList() {
	current, _ := s.app.Store.Current()
	convs := s.app.Store.Filtered()
	if len(convs) == 0 {
		fmt.Fprintln(s.out, dimStyle.Render("No conversations."))
		return
	}
	for i, conv := range convs {
		marker := " "
		if conv.ID == current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %2d. %s %s\n", marker, i+1, conv.DisplayTitle(),
			dimStyle.Render(fmt.Sprintf("(%d messages)", conv.MessageCount())))
	}
}

func (s *replSession) printHelp() {
	lines := [][2]string{
		{"/new [title]", "start a conversation"},
		{"/list", "list conversations"},
		{"/switch <n|id>", "select a conversation"},
		{"/rename <title>", "rename the current conversation"},
		{"/delete", "delete the current conversation"},
		{"/regen", "regenerate the last reply"},
		{"/search [query]", "filter conversations (empty clears)"},
		{"/export [format] [dir]", "export as json, md, txt or html"},
		{"/history", "print the current conversation"},
		{"/quit", "leave"},
	}
	for _, l := range lines {
		fmt.Fprintf(s.out, "  %-24s %s\n", l[0], dimStyle.Render(l[1]))
	}
}

// printTranscript prints conv as plain labeled turns.
func printTranscript(w io.Writer, conv *model.Conversation) {
	fmt.Fprintln(w, titleStyle.Render(conv.DisplayTitle()))
	for _, msg := range conv.Messages {
		fmt.Fprintf(w, "\n%s\n%s\n", labelStyle.Render(msg.Type.DisplayName()+":"), msg.Content)
	}
}
