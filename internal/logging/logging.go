// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger shared by every parley component.
//
// The TUI owns the terminal, so logs go to a JSON file
// (~/.parley/parley.log by default) rather than stderr. Components derive
// their own logger with a "component" field.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/config"
)

// Stderr is the LogConfig.Path value that selects console output.
const Stderr = "-"

// MaxFileSize is the size past which the log is rotated when opened.
const MaxFileSize int64 = 5 * 1024 * 1024

// =============================================================================
// LOGGER CONSTRUCTION
// =============================================================================

// New builds the application logger from cfg. The returned Closer releases
// the log file and must be called on exit.
func New(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	if err := ApplyLevel(cfg.Log.Level); err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	path, err := cfg.LogPath()
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	if path == Stderr {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		return zerolog.New(w).With().Timestamp().Logger(), nopCloser{}, nil
	}

	file, err := OpenFile(path)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	logger := zerolog.New(file).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return logger, file, nil
}

// ApplyLevel sets the process-wide minimum level. Called again when the
// config file is reloaded.
func ApplyLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// =============================================================================
// LOG FILE
// =============================================================================

// OpenFile opens path for appending with 0600 permissions, rotating it
// first if it has grown past MaxFileSize.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Size() >= MaxFileSize {
		if err := rotate(path); err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// rotate renames path aside with a timestamp suffix.
func rotate(path string) error {
	timestamp := time.Now().Format("20060102_150405")
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	rotated := fmt.Sprintf("%s_%s%s", base, timestamp, ext)

	if err := os.Rename(path, rotated); err != nil {
		return fmt.Errorf("failed to rotate log: %w", err)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
