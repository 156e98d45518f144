// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ollama"
)

func collect(t *testing.T, g Generator, req Request) ([]string, error) {
	t.Helper()
	var deltas []string
	err := g.Generate(context.Background(), req, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	return deltas, err
}

// =============================================================================
// CANNED TESTS
// =============================================================================

func TestCanned_ReconstructsTextWithSingleSpaces(t *testing.T) {
	g := &Canned{Response: "  Hello   wide\tworld \n again  "}

	deltas, err := collect(t, g, Request{Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " wide", " world", " again"}, deltas)
	assert.Equal(t, strings.Join(g.Tokens(), " "), strings.Join(deltas, ""))
}

func TestCanned_DefaultResponse(t *testing.T) {
	g := &Canned{}
	deltas, err := collect(t, g, Request{})
	require.NoError(t, err)
	assert.Equal(t, strings.Join(strings.Fields(DefaultCannedResponse), " "), strings.Join(deltas, ""))
}

func TestCanned_DelayRange(t *testing.T) {
	g := NewCanned()
	for i := 0; i < 200; i++ {
		d := g.delay()
		require.GreaterOrEqual(t, d, DefaultMinDelay)
		require.Less(t, d, DefaultMaxDelay)
	}

	fixed := &Canned{MinDelay: time.Millisecond, MaxDelay: time.Millisecond}
	assert.Equal(t, time.Millisecond, fixed.delay())
}

func TestCanned_HonorsCancellationDuringDelay(t *testing.T) {
	g := &Canned{Response: "a b c", MinDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- g.Generate(ctx, Request{}, func(string) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Generate did not stop on cancel")
	}
}

func TestCanned_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := (&Canned{Response: "a b c"}).Generate(context.Background(), Request{}, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// FAILING / ERROR TESTS
// =============================================================================

func TestFailing(t *testing.T) {
	deltas, err := collect(t, &Failing{Partial: []string{"half"}}, Request{})
	assert.Equal(t, []string{"half"}, deltas)
	assert.Equal(t, CodeUnavailable, CodeOf(err))

	rateLimited := NewError(CodeRateLimited, "slow down", nil)
	_, err = collect(t, &Failing{Err: rateLimited}, Request{})
	assert.True(t, errors.Is(err, &Error{Code: CodeRateLimited}))
	assert.False(t, errors.Is(err, &Error{Code: CodeUnavailable}))
}

func TestCodeOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"structured", NewError(CodeModelNotFound, "", nil), CodeModelNotFound},
		{"wrapped", fmt.Errorf("outer: %w", NewError(CodeRateLimited, "", cause)), CodeRateLimited},
		{"canceled", context.Canceled, CodeCanceled},
		{"plain", cause, CodeUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NewError(CodeUnavailable, "backend down", errors.New("dial tcp"))
	assert.Equal(t, "backend down: dial tcp", err.Error())
	assert.Equal(t, "unknown", (&Error{Code: CodeUnknown}).Error())
}

func TestHistory_SkipsErrorsAndEmpty(t *testing.T) {
	msgs := []*model.Message{
		{Type: model.TypeUser, Content: "hi"},
		{Type: model.TypeAssistant, Content: "Sorry", IsError: true},
		{Type: model.TypeAssistant, Content: ""},
		{Type: model.TypeAssistant, Content: "hello"},
	}
	assert.Equal(t, []Turn{
		{Role: model.TypeUser, Content: "hi"},
		{Role: model.TypeAssistant, Content: "hello"},
	}, History(msgs))
}

// =============================================================================
// OLLAMA TESTS
// =============================================================================

func TestOllama_StreamsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, word := range []string{"Hello", " from", " Ollama"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", word)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	g := NewOllama(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: server.URL}), "llama3.2")
	deltas, err := collect(t, g, Request{Prompt: "hi", History: []Turn{{Role: model.TypeUser, Content: "earlier"}}})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Ollama", strings.Join(deltas, ""))
}

func TestOllama_MapsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
	}))
	defer server.Close()

	g := NewOllama(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: server.URL}), "")
	_, err := collect(t, g, Request{Prompt: "hi"})
	assert.Equal(t, CodeRateLimited, CodeOf(err))
}

func TestOllama_Check(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest","size":1}]}`)
			return
		}
		fmt.Fprint(w, "Ollama is running")
	}))
	defer server.Close()
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: server.URL})

	var _ Checker = NewOllama(client, "")
	assert.NoError(t, NewOllama(client, "llama3.2").Check(context.Background()))

	err := NewOllama(client, "mistral").Check(context.Background())
	assert.Equal(t, CodeModelNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), `"mistral"`)

	models, err := NewOllama(client, "").Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
}

func TestOllama_CheckNotRunning(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	g := NewOllama(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url}), "")
	err := g.Check(context.Background())
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.True(t, ollama.IsNotRunning(err))
}

func TestOllama_MapsMissingModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer server.Close()

	g := NewOllama(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: server.URL}), "nope")
	_, err := collect(t, g, Request{Prompt: "hi"})
	assert.Equal(t, CodeModelNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "ollama pull")
}

// =============================================================================
// OPENAI TESTS
// =============================================================================

func TestOpenAI_StreamsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range []string{"Hi", " there"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	g := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: server.URL})
	deltas, err := collect(t, g, Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, deltas)
}

func TestOpenAI_MapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	g := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: server.URL})
	_, err := collect(t, g, Request{Prompt: "hello"})
	assert.Equal(t, CodeRateLimited, CodeOf(err))
}
