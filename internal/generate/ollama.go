// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ollama"
)

// Ollama streams replies from a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates a generator using client. An empty modelName uses the
// client's default model.
func NewOllama(client *ollama.Client, modelName string) *Ollama {
	if client == nil {
		client = ollama.NewClient()
	}
	return &Ollama{client: client, model: modelName}
}

// Generate sends the history and prompt to /api/chat and forwards each
// content chunk.
func (o *Ollama) Generate(ctx context.Context, req Request, onDelta func(string) error) error {
	msgs := make([]ollama.Message, 0, len(req.History)+1)
	for _, turn := range req.History {
		msgs = append(msgs, ollama.Message{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, ollama.Message{Role: string(model.TypeUser), Content: req.Prompt})

	modelName := req.Model
	if modelName == "" {
		modelName = o.model
	}

	var cbErr error
	err := o.client.ChatStream(ctx, modelName, msgs, func(chunk ollama.StreamChunk) error {
		if chunk.Content == "" {
			return nil
		}
		if err := onDelta(chunk.Content); err != nil {
			cbErr = err
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if cbErr != nil {
		return cbErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fromOllama(err)
}

// Check reports whether the Ollama server is running and has the default
// model pulled.
func (o *Ollama) Check(ctx context.Context) error {
	if err := o.client.CheckRunning(ctx); err != nil {
		return fromOllama(err)
	}
	name := o.defaultModel()
	if name == "" {
		return nil
	}
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return nil
		}
	}
	return NewError(CodeModelNotFound, fmt.Sprintf("model %q is not pulled", name), nil)
}

// Models lists the models available on the Ollama server.
func (o *Ollama) Models(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fromOllama(err)
	}
	return models, nil
}

// defaultModel returns the model used when a request names none.
func (o *Ollama) defaultModel() string {
	if o.model != "" {
		return o.model
	}
	return o.client.Config().DefaultModel
}

func fromOllama(err error) error {
	switch {
	case ollama.IsNotRunning(err):
		return NewError(CodeUnavailable, "ollama is not running", err)
	case ollama.IsModelNotFound(err):
		return NewError(CodeModelNotFound, "model not found, pull it with `ollama pull`", err)
	}

	code := CodeUnknown
	switch ollama.ErrorTypeOf(err) {
	case ollama.ErrTypeTimeout, ollama.ErrTypeConnection:
		code = CodeUnavailable
	case ollama.ErrTypeRateLimited:
		code = CodeRateLimited
	case ollama.ErrTypeInvalidResponse:
		code = CodeInvalidResponse
	}
	return NewError(code, "ollama request failed", err)
}
