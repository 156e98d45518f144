// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/chatdesk/internal/model"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIConfig configures the OpenAI generator.
type OpenAIConfig struct {
	APIKey string

	// BaseURL points at any OpenAI-compatible endpoint. Empty means api.openai.com.
	BaseURL string

	Model       string
	Temperature float32
}

// OpenAI streams replies from an OpenAI-compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Generate opens a completion stream and forwards each content delta.
func (o *OpenAI) Generate(ctx context.Context, req Request, onDelta func(string) error) error {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.TypeAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	modelName := req.Model
	if modelName == "" {
		modelName = o.cfg.Model
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    msgs,
		Temperature: o.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return fromOpenAI(ctx, err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fromOpenAI(ctx, err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
}

func fromOpenAI(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	code := CodeUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		code = CodeRateLimited
	case status == http.StatusNotFound:
		code = CodeModelNotFound
	case status >= 400 && status < 500:
		code = CodeInvalidResponse
	case errors.Is(err, openai.ErrTooManyEmptyStreamMessages):
		code = CodeInvalidResponse
	}
	return NewError(code, "openai request failed", err)
}
