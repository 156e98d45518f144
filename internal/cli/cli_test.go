// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/generate"
)

// isolate points every config and data path at a temp directory and makes
// canned replies instant.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("CHATDESK_STORAGE_DIR", filepath.Join(home, "data"))
	t.Setenv("CHATDESK_STORAGE_BACKEND", "file")
	t.Setenv("CHATDESK_GENERATOR_PROVIDER", "canned")
	t.Setenv("CHATDESK_GENERATOR_MIN_DELAY_MS", "0")
	t.Setenv("CHATDESK_GENERATOR_MAX_DELAY_MS", "0")
	t.Setenv("CHATDESK_LOG_LEVEL", "error")
	return home
}

// run executes the command line and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "chatdesk %s", strings.Join(args, " "))
	return out
}

type listEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
	Current      bool   `json:"current"`
}

func listJSON(t *testing.T) []listEntry {
	t.Helper()
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "--json")), &entries))
	return entries
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out := mustRun(t, "version")
	assert.Contains(t, out, "chatdesk "+Version)
}

func TestConfigCommands(t *testing.T) {
	home := isolate(t)

	keys := mustRun(t, "config", "keys")
	assert.Contains(t, keys, "storage.backend\n")
	assert.Contains(t, keys, "generator.min_delay_ms\n")

	assert.Equal(t, "canned\n", mustRun(t, "config", "get", "generator.provider"))

	path := mustRun(t, "config", "path")
	assert.Equal(t, filepath.Join(home, ".chatdesk", "config.toml")+"\n", path)

	mustRun(t, "config", "set", "ui.theme", "light")
	assert.Equal(t, "light\n", mustRun(t, "config", "get", "ui.theme"))

	_, err := run(t, "config", "set", "ui.theme", "neon")
	assert.Error(t, err)
	_, err = run(t, "config", "get", "nope.key")
	assert.Error(t, err)

	_, err = run(t, "config", "init")
	assert.Error(t, err, "existing file is not overwritten without --force")
	mustRun(t, "config", "init", "--force")
	assert.Equal(t, "dark\n", mustRun(t, "config", "get", "ui.theme"))
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("CHATDESK_GENERATOR_OPENAI_KEY", "sk-secret")

	out := mustRun(t, "config", "show", "--format", "json")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "[REDACTED]")

	assert.Equal(t, "[REDACTED]\n", mustRun(t, "config", "get", "generator.openai_key"))
}

func TestSchemaCommand(t *testing.T) {
	isolate(t)
	out := mustRun(t, "schema")

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has properties")
	assert.Contains(t, props, "storage")
	assert.Contains(t, props, "generator")
}

func TestSendListExportRenameDelete(t *testing.T) {
	isolate(t)

	out := mustRun(t, "send", "--new", "--title", "Trip Planning", "where", "should", "we", "go?")
	assert.Contains(t, out, "I understand your question.")

	entries := listJSON(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "Trip Planning", entries[0].Title)
	assert.Equal(t, 2, entries[0].MessageCount)
	assert.True(t, entries[0].Current)
	id := entries[0].ID

	// The reply continues the current conversation.
	mustRun(t, "send", "--json", "and", "when?")
	entries = listJSON(t)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].MessageCount)

	exported := mustRun(t, "export", id, "-f", "json", "-o", "-")
	assert.Contains(t, exported, `"where should we go?"`)

	dir := t.TempDir()
	path := strings.TrimSpace(mustRun(t, "export", id, "-f", "md", "-o", dir))
	assert.Equal(t, filepath.Join(dir, "Trip Planning.markdown"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Trip Planning\n"))

	mustRun(t, "rename", id, "Road", "Trip")
	assert.Contains(t, mustRun(t, "show", "--raw", id), "Road Trip")

	assert.Contains(t, mustRun(t, "list", "--search", "ROAD"), "Road Trip")
	assert.Contains(t, mustRun(t, "list", "--search", "nothing-like-this"), "No conversations.")

	mustRun(t, "delete", id)
	assert.Empty(t, listJSON(t))

	_, err = run(t, "delete", id)
	assert.Error(t, err)
}

func TestBackupRestoreClear(t *testing.T) {
	isolate(t)
	mustRun(t, "send", "--new", "--title", "Keep me", "hello")
	backup := filepath.Join(t.TempDir(), "backup.json")
	assert.Contains(t, mustRun(t, "backup", "-o", backup), "1 conversations")

	_, err := run(t, "clear")
	assert.ErrorContains(t, err, "--yes")
	mustRun(t, "clear", "--yes")
	assert.Empty(t, listJSON(t))

	_, err = run(t, "restore", backup)
	assert.ErrorContains(t, err, "--yes")
	assert.Contains(t, mustRun(t, "restore", "--yes", backup), "Restored")
	entries := listJSON(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "Keep me", entries[0].Title)
	assert.Equal(t, 2, entries[0].MessageCount)

	stdout := mustRun(t, "backup")
	assert.Contains(t, stdout, `"version": 2`)
	assert.Contains(t, stdout, "Keep me")
}

func TestSendRejectsEmptyInput(t *testing.T) {
	isolate(t)
	_, err := run(t, "send", "   ")
	assert.Error(t, err)

	_, err = run(t, "send", "--conversation", "conv_missing", "hi")
	assert.Error(t, err)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	isolate(t)
	mustRun(t, "send", "hello")
	_, err := run(t, "export", "-f", "pdf", "-o", "-")
	assert.Error(t, err)
}

// =============================================================================
// REPL TESTS
// =============================================================================

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Dir = t.TempDir()
	cfg.Generator.MinDelayMs = 0
	cfg.Generator.MaxDelayMs = 0

	app, err := NewApp(context.Background(), cfg, AppOptions{LogWriter: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestREPLSession_Commands(t *testing.T) {
	app := newTestApp(t)
	var out bytes.Buffer
	sess := &replSession{app: app, out: &out, ctx: context.Background()}

	quit, err := sess.handle("/new Groceries")
	require.NoError(t, err)
	assert.False(t, quit)
	require.Equal(t, 1, app.Store.Len())

	_, err = sess.handle("milk and eggs")
	require.NoError(t, err)
	id, ok := app.Store.Current()
	require.True(t, ok)
	conv, _ := app.Store.Conversation(id)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Groceries", conv.Title)

	_, err = sess.handle("/regen")
	require.NoError(t, err)
	conv, _ = app.Store.Conversation(id)
	assert.Len(t, conv.Messages, 2, "regenerate replaces the reply in place")

	_, err = sess.handle("/rename Shopping List")
	require.NoError(t, err)
	conv, _ = app.Store.Conversation(id)
	assert.Equal(t, "Shopping List", conv.Title)

	out.Reset()
	_, err = sess.handle("/list")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Shopping List")

	out.Reset()
	_, err = sess.handle("/history")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "milk and eggs")

	dir := t.TempDir()
	out.Reset()
	_, err = sess.handle("/export txt " + dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "Shopping List.txt"))

	_, err = sess.handle("/new")
	require.NoError(t, err)
	require.Equal(t, 2, app.Store.Len())
	_, err = sess.handle("/switch 2")
	require.NoError(t, err)

	_, err = sess.handle("/switch " + id)
	require.NoError(t, err)
	cur, _ := app.Store.Current()
	assert.Equal(t, id, cur)

	_, err = sess.handle("/delete")
	require.NoError(t, err)
	assert.Equal(t, 1, app.Store.Len())

	_, err = sess.handle("/bogus")
	assert.Error(t, err)
	_, err = sess.handle("/switch 99")
	assert.Error(t, err)

	quit, err = sess.handle("/quit")
	require.NoError(t, err)
	assert.True(t, quit)
	quit, _ = sess.handle("exit")
	assert.True(t, quit)
}

func TestREPLSession_RegenerateWithoutReply(t *testing.T) {
	app := newTestApp(t)
	sess := &replSession{app: app, out: io.Discard, ctx: context.Background()}

	_, err := sess.handle("/regen")
	assert.EqualError(t, err, "nothing to regenerate")
}

// =============================================================================
// WIRING TESTS
// =============================================================================

func TestNewGenerator(t *testing.T) {
	cfg := config.Default()

	g, err := NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &generate.Canned{}, g)

	cfg.Generator.Provider = "ollama"
	cfg.Generator.Model = "llama3"
	g, err = NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &generate.Ollama{}, g)

	cfg.Generator.Provider = "OpenAI"
	g, err = NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &generate.OpenAI{}, g)

	cfg.Generator.Provider = "bard"
	_, err = NewGenerator(cfg)
	assert.Error(t, err)
}

func ollamaTags(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "Ollama is running")
		case "/api/tags":
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestModelsCommand(t *testing.T) {
	isolate(t)
	srv := ollamaTags(t, `{"models":[
		{"name":"llama3.2:latest","size":2019393189,"modified_at":"2025-01-02T03:04:05Z"},
		{"name":"qwen2.5-coder:7b","size":4683087332,"modified_at":"2025-01-03T03:04:05Z"}]}`)
	t.Setenv("CHATDESK_GENERATOR_OLLAMA_URL", srv.URL)
	t.Setenv("CHATDESK_GENERATOR_MODEL", "llama3.2")

	out := mustRun(t, "models")
	assert.Contains(t, out, "llama3.2:latest")
	assert.Contains(t, out, "1.88 GB")
	assert.NotContains(t, out, "not pulled")

	var entries []struct {
		Name       string `json:"name"`
		Configured bool   `json:"configured"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "models", "--json")), &entries))
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Configured)
	assert.False(t, entries[1].Configured)

	t.Setenv("CHATDESK_GENERATOR_MODEL", "mistral")
	assert.Contains(t, mustRun(t, "models"), `Model "mistral" is not pulled.`)
}

func TestModelsCommand_OllamaDown(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("CHATDESK_GENERATOR_OLLAMA_URL", url)

	_, err := run(t, "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach Ollama at "+url)
}

func TestHighlight(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, highlight(&buf, `{"title": "Trip"}`, export.FormatJSON))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Trip")
}
