// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// KEYS AND ERRORS
// =============================================================================

// Setting keys. The spelling matches what earlier clients stored.
const (
	KeyModel          = "model"
	KeyBaseURL        = "baseUrl"
	KeySpeechEnabled  = "enableSpeaking"
	KeySpeechLanguage = "speakingLanguage"
)

// Keys lists every known key in display order.
var Keys = []string{KeyModel, KeyBaseURL, KeySpeechEnabled, KeySpeechLanguage}

var (
	// ErrUnknownKey is returned for a key outside Keys.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue is returned when a value fails validation.
	ErrInvalidValue = errors.New("invalid setting value")
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// =============================================================================
// DEFAULTS
// =============================================================================

// Defaults are the values used for keys that were never saved.
type Defaults struct {
	BaseURL        string
	ModelID        string
	SpeechEnabled  bool
	SpeechLanguage string
}

// BuiltinDefaults returns the defaults used when no provider is configured.
func BuiltinDefaults() Defaults {
	return Defaults{
		BaseURL:        "http://127.0.0.1:8080",
		ModelID:        model.DefaultModelID,
		SpeechEnabled:  true,
		SpeechLanguage: model.DefaultSpeechLanguage,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults sets the provider consulted for unsaved keys. It is called
// on every read so it can follow a reloaded config.
func WithDefaults(fn func() Defaults) Option {
	return func(s *Store) {
		if fn != nil {
			s.defaults = fn
		}
	}
}

// WithCatalog sets the catalog used to validate model IDs.
func WithCatalog(c *model.Catalog) Option {
	return func(s *Store) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l.With().Str("component", "settings").Logger()
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the settings provider. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	catalog  *model.Catalog
	defaults func() Defaults
	logger   zerolog.Logger

	mu    sync.RWMutex
	saved map[string]string
}

// Open opens (creating if needed) the settings database at path.
// ":memory:" gives a throwaway store.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	// SQLite only supports one writer at a time, and ":memory:" is per
	// connection, so keep a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil && path != ":memory:" {
		db.Close()
		return nil, fmt.Errorf("failed to set pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		db:       db,
		catalog:  model.DefaultCatalog(),
		defaults: BuiltinDefaults,
		logger:   zerolog.Nop(),
		saved:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		s.saved[key] = value
	}
	return rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// GETTERS
// =============================================================================

func (s *Store) lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.saved[key]
	return v, ok
}

// BaseURL returns the chat backend base URL.
func (s *Store) BaseURL() string {
	if v, ok := s.lookup(KeyBaseURL); ok {
		return v
	}
	return s.defaults().BaseURL
}

// ModelID returns the selected model. A saved model that has since left the
// catalog yields the default.
func (s *Store) ModelID() string {
	if v, ok := s.lookup(KeyModel); ok && s.catalog.Has(v) {
		return v
	}
	return s.defaults().ModelID
}

// SpeechEnabled reports whether replies are spoken.
func (s *Store) SpeechEnabled() bool {
	if v, ok := s.lookup(KeySpeechEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return s.defaults().SpeechEnabled
}

// SpeechLanguage returns the BCP 47 tag used for speech.
func (s *Store) SpeechLanguage() string {
	if v, ok := s.lookup(KeySpeechLanguage); ok {
		return v
	}
	return s.defaults().SpeechLanguage
}

// Catalog returns the catalog used to validate models.
func (s *Store) Catalog() *model.Catalog {
	return s.catalog
}

// Get returns the effective value of key as a string.
func (s *Store) Get(key string) (string, error) {
	switch key {
	case KeyModel:
		return s.ModelID(), nil
	case KeyBaseURL:
		return s.BaseURL(), nil
	case KeySpeechEnabled:
		return strconv.FormatBool(s.SpeechEnabled()), nil
	case KeySpeechLanguage:
		return s.SpeechLanguage(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Entry is one setting with its effective value.
type Entry struct {
	Key   string
	Value string
	Saved bool
}

// All returns every setting in display order.
func (s *Store) All() []Entry {
	out := make([]Entry, 0, len(Keys))
	for _, k := range Keys {
		v, _ := s.Get(k)
		_, saved := s.lookup(k)
		out = append(out, Entry{Key: k, Value: v, Saved: saved})
	}
	return out
}

// =============================================================================
// SETTERS
// =============================================================================

// SetModel selects a model from the catalog.
func (s *Store) SetModel(id string) error {
	id = strings.TrimSpace(id)
	if !s.catalog.Has(id) {
		known := s.catalog.IDs()
		sort.Strings(known)
		return fmt.Errorf("%w: unknown model %q (known: %s)", ErrInvalidValue, id, strings.Join(known, ", "))
	}
	return s.put(KeyModel, id)
}

// SetBaseURL sets the backend base URL. It must be an absolute http(s) URL.
func (s *Store) SetBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if err := ValidateBaseURL(raw); err != nil {
		return err
	}
	return s.put(KeyBaseURL, raw)
}

// SetSpeechEnabled turns speech on or off.
func (s *Store) SetSpeechEnabled(on bool) error {
	return s.put(KeySpeechEnabled, strconv.FormatBool(on))
}

// ToggleSpeech flips speech and returns the new state.
func (s *Store) ToggleSpeech() (bool, error) {
	on := !s.SpeechEnabled()
	if err := s.SetSpeechEnabled(on); err != nil {
		return !on, err
	}
	return on, nil
}

// SetSpeechLanguage sets the speech language. The tag is stored canonicalized.
func (s *Store) SetSpeechLanguage(tag string) error {
	canonical, err := model.ParseSpeechLanguage(tag)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return s.put(KeySpeechLanguage, canonical)
}

// Set parses and stores a value for key.
func (s *Store) Set(key, value string) error {
	switch key {
	case KeyModel:
		return s.SetModel(value)
	case KeyBaseURL:
		return s.SetBaseURL(value)
	case KeySpeechEnabled:
		on, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
		}
		return s.SetSpeechEnabled(on)
	case KeySpeechLanguage:
		return s.SetSpeechLanguage(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Reset forgets a saved value so the default applies again.
func (s *Store) Reset(key string) error {
	if !isKnown(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to reset %s: %w", key, err)
	}
	s.mu.Lock()
	delete(s.saved, key)
	s.mu.Unlock()
	s.logger.Info().Str("key", key).Msg("setting reset")
	return nil
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	s.mu.Lock()
	s.saved[key] = value
	s.mu.Unlock()
	s.logger.Info().Str("key", key).Str("value", value).Msg("setting saved")
	return nil
}

func isKnown(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// ValidateBaseURL checks that raw is an absolute http or https URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base URL must use http or https, got %q", ErrInvalidValue, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: base URL has no host: %q", ErrInvalidValue, raw)
	}
	return nil
}
