// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/chatdesk/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATDESK_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatdesk configuration.
type Config struct {
	Version string `toml:"version" yaml:"version" json:"version"`

	Storage   StorageConfig   `toml:"storage" yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Generator GeneratorConfig `toml:"generator" yaml:"generator" json:"generator" envPrefix:"GENERATOR_"`
	Notify    NotifyConfig    `toml:"notify" yaml:"notify" json:"notify" envPrefix:"NOTIFY_"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log" envPrefix:"LOG_"`
	Server    ServerConfig    `toml:"server" yaml:"server" json:"server" envPrefix:"SERVER_"`
	UI        UIConfig        `toml:"ui" yaml:"ui" json:"ui" envPrefix:"UI_"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	// Backend is one of file, sqlite, memory.
	Backend string `toml:"backend" yaml:"backend" json:"backend" env:"BACKEND" jsonschema:"enum=file,enum=sqlite,enum=memory"`

	// Dir holds the data files. Default: ~/.chatdesk/data
	Dir string `toml:"dir" yaml:"dir" json:"dir" env:"DIR"`

	// Encrypt wraps the backend in AES-GCM encryption keyed by Passphrase.
	Encrypt    bool   `toml:"encrypt" yaml:"encrypt" json:"encrypt" env:"ENCRYPT"`
	Passphrase string `toml:"passphrase" yaml:"passphrase" json:"passphrase,omitempty" env:"PASSPHRASE"`

	// Autosave coalescing
	SaveIntervalMs int     `toml:"save_interval_ms" yaml:"save_interval_ms" json:"save_interval_ms" env:"SAVE_INTERVAL_MS" jsonschema:"minimum=0"`
	SaveRate       float64 `toml:"save_rate" yaml:"save_rate" json:"save_rate" env:"SAVE_RATE" jsonschema:"minimum=0"`
}

// GeneratorConfig selects the source of assistant replies.
type GeneratorConfig struct {
	// Provider is one of canned, ollama, openai.
	Provider string `toml:"provider" yaml:"provider" json:"provider" env:"PROVIDER" jsonschema:"enum=canned,enum=ollama,enum=openai"`
	Model    string `toml:"model" yaml:"model" json:"model,omitempty" env:"MODEL"`

	OllamaURL string `toml:"ollama_url" yaml:"ollama_url" json:"ollama_url" env:"OLLAMA_URL"`
	OpenAIURL string `toml:"openai_url" yaml:"openai_url" json:"openai_url,omitempty" env:"OPENAI_URL"`
	OpenAIKey string `toml:"openai_key" yaml:"openai_key" json:"openai_key,omitempty" env:"OPENAI_KEY"`

	Temperature float32 `toml:"temperature" yaml:"temperature" json:"temperature,omitempty" env:"TEMPERATURE" jsonschema:"minimum=0,maximum=2"`

	// Canned reply pacing
	MinDelayMs int `toml:"min_delay_ms" yaml:"min_delay_ms" json:"min_delay_ms" env:"MIN_DELAY_MS" jsonschema:"minimum=0"`
	MaxDelayMs int `toml:"max_delay_ms" yaml:"max_delay_ms" json:"max_delay_ms" env:"MAX_DELAY_MS" jsonschema:"minimum=0"`
}

// NotifyConfig controls where notifications go besides the UI.
type NotifyConfig struct {
	NATSURL     string `toml:"nats_url" yaml:"nats_url" json:"nats_url,omitempty" env:"NATS_URL"`
	NATSSubject string `toml:"nats_subject" yaml:"nats_subject" json:"nats_subject" env:"NATS_SUBJECT"`

	// DurationMs is the display time of notifications without one.
	DurationMs int `toml:"duration_ms" yaml:"duration_ms" json:"duration_ms" env:"DURATION_MS" jsonschema:"minimum=1"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level" env:"LEVEL" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format string `toml:"format" yaml:"format" json:"format" env:"FORMAT" jsonschema:"enum=console,enum=json"`
	File   string `toml:"file" yaml:"file" json:"file,omitempty" env:"FILE"`
}

// ServerConfig configures `chatdesk serve`.
type ServerConfig struct {
	Addr    string `toml:"addr" yaml:"addr" json:"addr" env:"ADDR"`
	Metrics bool   `toml:"metrics" yaml:"metrics" json:"metrics" env:"METRICS"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme   string `toml:"theme" yaml:"theme" json:"theme" env:"THEME" jsonschema:"enum=auto,enum=dark,enum=light"`
	Compact bool   `toml:"compact" yaml:"compact" json:"compact" env:"COMPACT"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		Storage: StorageConfig{
			Backend:        "file",
			SaveIntervalMs: 250,
			SaveRate:       4,
		},

		Generator: GeneratorConfig{
			Provider:   "canned",
			OllamaURL:  "http://127.0.0.1:11434",
			MinDelayMs: 50,
			MaxDelayMs: 150,
		},

		Notify: NotifyConfig{
			NATSSubject: "chatdesk.notifications",
			DurationMs:  5000,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},

		Server: ServerConfig{
			Addr:    "127.0.0.1:8080",
			Metrics: true,
		},

		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// SetDefaults fills zero-value fields from Default.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.SaveIntervalMs == 0 {
		c.Storage.SaveIntervalMs = defaults.Storage.SaveIntervalMs
	}
	if c.Storage.SaveRate == 0 {
		c.Storage.SaveRate = defaults.Storage.SaveRate
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = defaults.Generator.Provider
	}
	if c.Generator.OllamaURL == "" {
		c.Generator.OllamaURL = defaults.Generator.OllamaURL
	}
	if c.Notify.NATSSubject == "" {
		c.Notify.NATSSubject = defaults.Notify.NATSSubject
	}
	if c.Notify.DurationMs == 0 {
		c.Notify.DurationMs = defaults.Notify.DurationMs
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// SaveInterval returns the autosave delay.
func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.Storage.SaveIntervalMs) * time.Millisecond
}

// DelayRange returns the canned reply pacing.
func (c *Config) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Generator.MinDelayMs) * time.Millisecond,
		time.Duration(c.Generator.MaxDelayMs) * time.Millisecond
}

// NotifyDuration returns the default notification display time.
func (c *Config) NotifyDuration() time.Duration {
	return time.Duration(c.Notify.DurationMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// configNames are tried in order by Load.
var configNames = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// ConfigDir returns the chatdesk configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatdesk"), nil
}

// DataDir returns the storage directory: Storage.Dir when set, otherwise
// ~/.chatdesk/data.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// FindConfigFile returns the first existing config file in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultPath returns the path Save uses when none is given.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions narrows config file permissions to 0600.
// Config files may hold API keys and the storage passphrase.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the first config file found in ConfigDir, .env files and the
// process environment.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	if path := FindConfigFile(dir); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, on top of the
// defaults. The format is taken from the extension: .toml, .yaml/.yml or
// .json.
func LoadFromPath(path string) (*Config, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := Decode(format, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies .env files, environment overrides and defaults, then
// validates.
func finish(cfg *Config) error {
	LoadDotEnv()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Decode parses data in the given format ("toml", "yaml" or "json") into cfg.
func Decode(format string, data []byte, cfg *Config) error {
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
	return nil
}

// Encode renders cfg in the given format.
func Encode(format string, cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "toml":
		buf.WriteString("# chatdesk configuration file\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return buf.Bytes(), nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// LoadDotEnv loads variables from .env files into the process environment.
// Variables that are already set win. With no arguments, ./.env and
// ~/.chatdesk/.env are tried; missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
		if dir, err := ConfigDir(); err == nil {
			paths = append(paths, filepath.Join(dir, ".env"))
		}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", path, err)
		}
	}
}

// ApplyEnvOverrides applies CHATDESK_* environment variables, e.g.
// CHATDESK_STORAGE_BACKEND or CHATDESK_GENERATOR_PROVIDER. OPENAI_API_KEY is
// used when no OpenAI key is configured.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	if c.Generator.OpenAIKey == "" {
		c.Generator.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format given by its extension. An empty
// path means DefaultPath. The file is written atomically with 0600
// permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(format, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns ValidateErrors when
// anything is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Storage
	if !oneOf(c.Storage.Backend, "file", "sqlite", "memory") {
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}
	if c.Storage.Encrypt && c.Storage.Passphrase == "" {
		add("storage.passphrase", "required when storage.encrypt is true")
	}
	if c.Storage.SaveIntervalMs < 0 {
		add("storage.save_interval_ms", "must not be negative")
	}
	if c.Storage.SaveRate < 0 {
		add("storage.save_rate", "must not be negative")
	}

	// Generator
	switch strings.ToLower(c.Generator.Provider) {
	case "canned":
	case "ollama":
		if err := validateURL(c.Generator.OllamaURL); err != nil {
			add("generator.ollama_url", "%v", err)
		}
	case "openai":
		if c.Generator.OpenAIKey == "" {
			add("generator.openai_key", "required when generator.provider is openai")
		}
		if c.Generator.OpenAIURL != "" {
			if err := validateURL(c.Generator.OpenAIURL); err != nil {
				add("generator.openai_url", "%v", err)
			}
		}
	default:
		add("generator.provider", "invalid provider '%s', must be one of: canned, ollama, openai", c.Generator.Provider)
	}
	if c.Generator.MinDelayMs < 0 || c.Generator.MaxDelayMs < 0 {
		add("generator.min_delay_ms", "delays must not be negative")
	} else if c.Generator.MaxDelayMs < c.Generator.MinDelayMs {
		add("generator.max_delay_ms", "must be at least min_delay_ms (%d)", c.Generator.MinDelayMs)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		add("generator.temperature", "must be between 0 and 2")
	}

	// Notify
	if c.Notify.NATSURL != "" {
		if err := validateURL(c.Notify.NATSURL); err != nil {
			add("notify.nats_url", "%v", err)
		}
	}
	if c.Notify.DurationMs <= 0 {
		add("notify.duration_ms", "must be positive")
	}

	// Log
	if !oneOf(c.Log.Level, "trace", "debug", "info", "warn", "error") {
		add("log.level", "invalid level '%s', must be one of: trace, debug, info, warn, error", c.Log.Level)
	}
	if !oneOf(c.Log.Format, "console", "json") {
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	// UI
	if !oneOf(c.UI.Theme, "auto", "dark", "light") {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL '%s': scheme and host are required", raw)
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "storage.backend").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dotted key against the toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == strings.ToLower(name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return tag
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float32, reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every configuration key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Struct {
			keys = append(keys, tomlName(f))
			continue
		}
		for j := 0; j < f.Type.NumField(); j++ {
			keys = append(keys, tomlName(f)+"."+tomlName(f.Type.Field(j)))
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with secrets replaced.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Storage.Passphrase != "" {
		safe.Storage.Passphrase = "[REDACTED]"
	}
	if safe.Generator.OpenAIKey != "" {
		safe.Generator.OpenAIKey = "[REDACTED]"
	}
	return safe
}

// String returns the configuration as JSON with secrets redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
