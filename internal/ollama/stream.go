// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses a newline-delimited JSON chat stream.
type StreamReader struct {
	reader     *bufio.Reader
	model      string
	tokenCount int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// It returns the callback's error, a stream error reported by Ollama, or
// nil once the final chunk arrives. Cancelling ctx stops it between lines.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := s.readChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}
			}
			return err
		}
		if chunk == nil {
			continue
		}

		if err := callback(*chunk); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}

// TokenCount returns how many non-empty content chunks were read.
func (s *StreamReader) TokenCount() int {
	return s.tokenCount
}

// readChunk reads and parses a single line. Blank and malformed lines
// yield (nil, nil).
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var resp chatLine
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, nil
	}
	if resp.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}

	if resp.Model != "" {
		s.model = resp.Model
	}
	if resp.Message.Content != "" {
		s.tokenCount++
	}

	chunk := &StreamChunk{
		Content:    resp.Message.Content,
		Done:       resp.Done,
		DoneReason: resp.DoneReason,
		Model:      s.model,
	}
	if resp.Done {
		chunk.EvalCount = resp.EvalCount
	}
	return chunk, nil
}
