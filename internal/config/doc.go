// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatdesk.
//
// Supports TOML, YAML and JSON configuration files, with sensible defaults,
// .env files, environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - StorageConfig: persistence backend and autosave pacing
//   - GeneratorConfig: reply provider (canned, ollama, openai)
//   - NotifyConfig, LogConfig, ServerConfig, UIConfig
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATDESK_*, e.g. CHATDESK_STORAGE_BACKEND)
//   - .env in the working directory, then ~/.chatdesk/.env
//   - ~/.chatdesk/config.toml, config.yaml, config.yml or config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	backend := cfg.Storage.Backend
package config
