// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for parley.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all sections
//   - ChatConfig: Backend URL, default model, timeouts, fragment grain
//   - SpeechConfig: Speech defaults, sentence terminators, TTS command
//   - Watcher: Reloads the global config when the file changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PARLEY_*)
//   - ~/.parley/config.toml
//   - ~/.parley/config.json
//   - Built-in defaults
//
// The four user settings (model, baseUrl, enableSpeaking,
// speakingLanguage) are persisted by the settings package; values here
// only provide their defaults.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	url := cfg.Chat.BaseURL
//	mode := cfg.Speech.Mode
package config
