// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Wiring of config, logging, settings, speech, transport and engine.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/transport"
)

// =============================================================================
// RUNTIME
// =============================================================================

// Runtime holds the collaborators shared by the tui, chat and ask commands.
type Runtime struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Catalog  *model.Catalog
	Settings *SessionSettings
	Speech   *speech.Queue
	Client   *transport.Client
	Engine   *conversation.Engine

	store     *settings.Store
	logCloser io.Closer
}

// ApplyConfigDir points config lookups at args.ConfigDir, if set.
// Call it before the first config.Global.
func ApplyConfigDir(args Args) {
	if args.ConfigDir != "" {
		os.Setenv("PARLEY_CONFIG_DIR", args.ConfigDir)
	}
}

// NewRuntime wires everything from the global config.
//
// Saved settings fall back to the live global config, so a config reload
// changes the defaults without restarting.
func NewRuntime(args Args) (*Runtime, error) {
	cfg := config.Global().Clone()
	if args.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger, logCloser: logCloser}

	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if rt.Catalog, err = cfg.Catalog(); err != nil {
		return nil, err
	}

	dbPath, err := cfg.SettingsDBPath()
	if err != nil {
		return nil, err
	}
	rt.store, err = settings.Open(dbPath,
		settings.WithDefaults(func() settings.Defaults { return DefaultsFromConfig(config.Global()) }),
		settings.WithCatalog(rt.Catalog),
		settings.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	rt.Settings, err = NewSessionSettings(rt.store, args)
	if err != nil {
		return nil, err
	}

	rt.Speech = speech.NewQueue(speech.New(cfg.Speech.Command, cfg.Speech.Args), speech.QueueOptions{
		Interrupt: cfg.Speech.Interrupt,
		Logger:    logger,
	})

	grain, err := transport.ParseGrain(cfg.Chat.FragmentGrain)
	if err != nil {
		return nil, err
	}
	clientCfg := transport.DefaultConfig()
	clientCfg.Grain = grain
	if cfg.Chat.ConnectTimeoutSecs > 0 {
		clientCfg.ConnectTimeout = time.Duration(cfg.Chat.ConnectTimeoutSecs) * time.Second
	}
	clientCfg.UserAgent = "parley/" + Version
	rt.Client = transport.NewClientWithConfig(clientCfg).WithLogger(logger)

	mode, err := conversation.ParseSpeechMode(cfg.Speech.Mode)
	if err != nil {
		return nil, err
	}
	rt.Engine, err = conversation.NewEngine(conversation.EngineConfig{
		Transport:   rt.Client,
		Settings:    rt.Settings,
		Speech:      rt.Speech,
		Catalog:     rt.Catalog,
		Terminators: cfg.Speech.Terminators,
		SpeechMode:  mode,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("settings_db", dbPath).
		Str("synth", rt.Speech.Synthesizer().Name()).
		Str("grain", grain.String()).
		Str("speech_mode", mode.String()).
		Msg("runtime ready")

	ok = true
	return rt, nil
}

// Close shuts everything down in reverse order of construction.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Engine != nil {
		errs = append(errs, rt.Engine.Close())
	}
	if rt.Speech != nil {
		errs = append(errs, rt.Speech.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.logCloser != nil {
		errs = append(errs, rt.logCloser.Close())
	}
	return errors.Join(errs...)
}

// DefaultsFromConfig maps config values onto settings defaults.
func DefaultsFromConfig(cfg *config.Config) settings.Defaults {
	return settings.Defaults{
		BaseURL:        cfg.Chat.BaseURL,
		ModelID:        cfg.Chat.Model,
		SpeechEnabled:  cfg.Speech.Enabled,
		SpeechLanguage: cfg.Speech.Language,
	}
}

// =============================================================================
// SESSION SETTINGS
// =============================================================================

// SessionSettings layers the --model, --url and --no-speech flags over the
// saved settings. An override lasts until the matching setting is changed
// during the session; changes are always saved.
type SessionSettings struct {
	*settings.Store

	mu       sync.Mutex
	model    string
	baseURL  string
	noSpeech bool
}

// NewSessionSettings validates the overrides in args.
func NewSessionSettings(store *settings.Store, args Args) (*SessionSettings, error) {
	s := &SessionSettings{Store: store, noSpeech: args.NoSpeech}

	if args.Model != "" {
		if !store.Catalog().Has(args.Model) {
			return nil, &ValidationError{
				Field:   "--model",
				Value:   args.Model,
				Reason:  "not in the model catalog",
				Example: "parley models",
			}
		}
		s.model = args.Model
	}
	if args.BaseURL != "" {
		if err := settings.ValidateBaseURL(args.BaseURL); err != nil {
			return nil, &ValidationError{Field: "--url", Value: args.BaseURL, Reason: err.Error()}
		}
		s.baseURL = args.BaseURL
	}
	return s, nil
}

// ModelID returns the override or the saved model.
func (s *SessionSettings) ModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != "" {
		return s.model
	}
	return s.Store.ModelID()
}

// BaseURL returns the override or the saved backend URL.
func (s *SessionSettings) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseURL != "" {
		return s.baseURL
	}
	return s.Store.BaseURL()
}

// SpeechEnabled is false while --no-speech is in effect.
func (s *SessionSettings) SpeechEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noSpeech {
		return false
	}
	return s.Store.SpeechEnabled()
}

// SetModel saves the model and drops the --model override.
func (s *SessionSettings) SetModel(id string) error {
	if err := s.Store.SetModel(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.model = ""
	s.mu.Unlock()
	return nil
}

// SetBaseURL saves the URL and drops the --url override.
func (s *SessionSettings) SetBaseURL(raw string) error {
	if err := s.Store.SetBaseURL(raw); err != nil {
		return err
	}
	s.mu.Lock()
	s.baseURL = ""
	s.mu.Unlock()
	return nil
}

// SetSpeechEnabled saves the state and drops --no-speech.
func (s *SessionSettings) SetSpeechEnabled(on bool) error {
	if err := s.Store.SetSpeechEnabled(on); err != nil {
		return err
	}
	s.mu.Lock()
	s.noSpeech = false
	s.mu.Unlock()
	return nil
}

// ToggleSpeech flips the effective speech state.
func (s *SessionSettings) ToggleSpeech() (bool, error) {
	on := !s.SpeechEnabled()
	if err := s.SetSpeechEnabled(on); err != nil {
		return !on, err
	}
	return on, nil
}
