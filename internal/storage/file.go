// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// FILE KV
// =============================================================================

// FileKV stores each key as <BaseDir>/<key>.json.
type FileKV struct {
	// BaseDir is the directory holding the value files.
	// Default: ~/.chatdesk/data/
	BaseDir string

	mu sync.Mutex
}

// NewFileKV creates a file-backed KV rooted at baseDir.
// An empty baseDir selects ~/.chatdesk/data.
func NewFileKV(baseDir string) (*FileKV, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".chatdesk", "data")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &FileKV{BaseDir: baseDir}, nil
}

// Save writes the value atomically with owner-only permissions.
func (s *FileKV) Save(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return util.AtomicWriteFile(s.filePath(key), value, 0600)
}

// Load reads the value for key.
func (s *FileKV) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the value for key.
func (s *FileKV) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.filePath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *FileKV) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
