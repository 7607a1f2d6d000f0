// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Chat backend configuration
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Speech output configuration
	Speech SpeechConfig `toml:"speech" json:"speech"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Stub backend configuration (parley stub)
	Stub StubConfig `toml:"stub" json:"stub"`

	// Models are added to (or override) the built-in catalog.
	Models []model.ChatModel `toml:"models" json:"models,omitempty"`
}

// ChatConfig contains chat backend configuration.
type ChatConfig struct {
	// BaseURL is the default backend URL. The saved "baseUrl" setting wins.
	BaseURL string `toml:"base_url" json:"base_url"`
	// Model is the default model ID. The saved "model" setting wins.
	Model string `toml:"model" json:"model"`
	// ConnectTimeoutSecs bounds the wait for response headers.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	// FragmentGrain is "chunk" (per read) or "rune" (per character).
	FragmentGrain string `toml:"fragment_grain" json:"fragment_grain"`
}

// SpeechConfig contains speech output configuration.
type SpeechConfig struct {
	// Enabled is the default for the "enableSpeaking" setting.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Language is the default for the "speakingLanguage" setting.
	Language string `toml:"language" json:"language"`
	// Terminators are the characters that end a spoken sentence.
	Terminators string `toml:"terminators" json:"terminators"`
	// Mode is "sentence" (speak while streaming) or "final" (speak the
	// whole reply once it completes).
	Mode string `toml:"mode" json:"mode"`
	// Interrupt makes a new utterance cut off the one playing.
	Interrupt bool `toml:"interrupt" json:"interrupt"`
	// Command is the TTS program: empty auto-detects, "none" disables.
	Command string `toml:"command" json:"command"`
	// Args for Command, with {lang}, {voice}, {base} and {text} placeholders.
	Args []string `toml:"args" json:"args,omitempty"`
}

// UIConfig contains user interface preferences.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders completed replies with glamour
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowTimestamps shows the send time of each turn
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
}

// LogConfig contains log configuration.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error, disabled
	Level string `toml:"level" json:"level"`
	// Path is the log file (empty = ~/.parley/parley.log, "-" = stderr)
	Path string `toml:"path" json:"path"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// SettingsDB is the SQLite settings file (empty = ~/.parley/settings.db)
	SettingsDB string `toml:"settings_db" json:"settings_db"`
}

// StubConfig configures the built-in development backend.
type StubConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" json:"addr"`
	// CharsPerSec paces the streamed reply (0 = unpaced)
	CharsPerSec int `toml:"chars_per_sec" json:"chars_per_sec"`
	// ReplyPrefix starts every stub reply
	ReplyPrefix string `toml:"reply_prefix" json:"reply_prefix"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Chat: ChatConfig{
			BaseURL:            "http://127.0.0.1:8080",
			Model:              model.DefaultModelID,
			ConnectTimeoutSecs: 30,
			FragmentGrain:      "chunk",
		},

		Speech: SpeechConfig{
			Enabled:     true,
			Language:    model.DefaultSpeechLanguage,
			Terminators: ".",
			Mode:        "sentence",
			Interrupt:   false,
			Command:     "",
		},

		UI: UIConfig{
			Theme:          "dark",
			Markdown:       true,
			ShowTimestamps: false,
		},

		Log: LogConfig{
			Level: "info",
		},

		Stub: StubConfig{
			Addr:        "127.0.0.1:8080",
			CharsPerSec: 80,
			ReplyPrefix: "You said: ",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
// PARLEY_CONFIG_DIR overrides the default ~/.parley.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PARLEY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// SettingsDBPath returns the resolved settings database path.
func (c *Config) SettingsDBPath() (string, error) {
	if c.Storage.SettingsDB != "" {
		return expandHome(c.Storage.SettingsDB), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.db"), nil
}

// LogPath returns the resolved log file path ("-" means stderr).
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return expandHome(c.Log.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.log"), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// whatever cfg already holds.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in any empty values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Chat
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = defaults.Chat.BaseURL
	}
	if c.Chat.Model == "" {
		c.Chat.Model = defaults.Chat.Model
	}
	if c.Chat.ConnectTimeoutSecs == 0 {
		c.Chat.ConnectTimeoutSecs = defaults.Chat.ConnectTimeoutSecs
	}
	if c.Chat.FragmentGrain == "" {
		c.Chat.FragmentGrain = defaults.Chat.FragmentGrain
	}

	// Speech
	if c.Speech.Language == "" {
		c.Speech.Language = defaults.Speech.Language
	}
	if c.Speech.Terminators == "" {
		c.Speech.Terminators = defaults.Speech.Terminators
	}
	if c.Speech.Mode == "" {
		c.Speech.Mode = defaults.Speech.Mode
	}

	// UI
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	// Stub
	if c.Stub.Addr == "" {
		c.Stub.Addr = defaults.Stub.Addr
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# parley configuration file\n")
	buf.WriteString("# Generated by parley - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Saved settings (parley settings) take precedence over\n")
	buf.WriteString("# chat.base_url, chat.model, speech.enabled and speech.language.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Atomic so the config watcher never reads a half-written file.
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Chat
	if u, err := url.Parse(c.Chat.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("chat.base_url", "must be an absolute http or https URL, got '%s'", c.Chat.BaseURL)
	}
	if c.Chat.ConnectTimeoutSecs < 0 || c.Chat.ConnectTimeoutSecs > 600 {
		add("chat.connect_timeout_secs", "must be between 0 and 600, got %d", c.Chat.ConnectTimeoutSecs)
	}
	switch strings.ToLower(c.Chat.FragmentGrain) {
	case "", "chunk", "rune":
	default:
		add("chat.fragment_grain", "invalid grain '%s', must be one of: chunk, rune", c.Chat.FragmentGrain)
	}

	// Models
	catalog, err := c.Catalog()
	if err != nil {
		add("models", "%v", err)
	} else if c.Chat.Model != "" && !catalog.Has(c.Chat.Model) {
		add("chat.model", "unknown model '%s', must be one of: %s", c.Chat.Model, strings.Join(catalog.IDs(), ", "))
	}

	// Speech
	if c.Speech.Language != "" {
		if _, err := model.ParseSpeechLanguage(c.Speech.Language); err != nil {
			add("speech.language", "%v", err)
		}
	}
	switch strings.ToLower(c.Speech.Mode) {
	case "", "sentence", "final":
	default:
		add("speech.mode", "invalid mode '%s', must be one of: sentence, final", c.Speech.Mode)
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	// Stub
	if c.Stub.CharsPerSec < 0 {
		add("stub.chars_per_sec", "must not be negative, got %d", c.Stub.CharsPerSec)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Catalog returns the built-in models plus any configured ones.
func (c *Config) Catalog() (*model.Catalog, error) {
	return model.WithBuiltins(c.Models...)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_BASE_URL: overrides chat.base_url
//   - PARLEY_MODEL: overrides chat.model
//   - PARLEY_SPEECH: "1"/"true" or "0"/"false" overrides speech.enabled
//   - PARLEY_LANGUAGE: overrides speech.language
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_CONFIG_DIR: moves the config directory (see ConfigDir)
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_BASE_URL"); v != "" {
		c.Chat.BaseURL = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("PARLEY_SPEECH"); v != "" {
		c.Speech.Enabled = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("PARLEY_LANGUAGE"); v != "" {
		c.Speech.Language = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookupField(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "speech.mode").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookupField(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookupField(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
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
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				if strings.EqualFold(strVal, "yes") {
					boolVal = true
				} else if strings.EqualFold(strVal, "no") {
					boolVal = false
				} else {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				if strings.TrimSpace(strVal) != "" {
					for _, item := range strings.Split(strVal, ",") {
						items = append(items, strings.TrimSpace(item))
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
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

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all scalar configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"chat.base_url",
		"chat.model",
		"chat.connect_timeout_secs",
		"chat.fragment_grain",
		"speech.enabled",
		"speech.language",
		"speech.terminators",
		"speech.mode",
		"speech.interrupt",
		"speech.command",
		"speech.args",
		"ui.theme",
		"ui.markdown",
		"ui.show_timestamps",
		"log.level",
		"log.path",
		"storage.settings_db",
		"stub.addr",
		"stub.chars_per_sec",
		"stub.reply_prefix",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Speech.Args != nil {
		clone.Speech.Args = append([]string(nil), c.Speech.Args...)
	}
	if c.Models != nil {
		clone.Models = append([]model.ChatModel(nil), c.Models...)
	}
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
// On error the current configuration stays in place.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
