// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat UI launcher.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// HandleTUI runs the full-screen chat UI until the user quits or ctx ends.
func HandleTUI(ctx context.Context, rt *Runtime, args Args) error {
	if !IsInteractive() {
		return &ValidationError{
			Field:   "terminal",
			Reason:  "the full-screen UI needs an interactive terminal",
			Example: `parley chat, or parley ask "hello"`,
		}
	}

	cfg := rt.Config
	m := chat.New(chat.Options{
		Engine:         rt.Engine,
		Settings:       rt.Settings,
		Theme:          styles.NewTheme(cfg.UI.Theme),
		Markdown:       cfg.UI.Markdown,
		ShowTimestamps: cfg.UI.ShowTimestamps,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Reload notifications arrive on the watcher goroutine. Drop them once
	// the program has exited so Send never blocks on a dead event loop.
	var (
		mu      sync.Mutex
		running = true
	)
	watcher, err := config.NewWatcher(config.DefaultWatchDebounce, func(c *config.Config, err error) {
		if err == nil {
			if lerr := logging.ApplyLevel(c.Log.Level); lerr != nil {
				rt.Logger.Warn().Err(lerr).Msg("ignoring reloaded log level")
			}
		}
		mu.Lock()
		defer mu.Unlock()
		if running {
			p.Send(chat.ConfigReloadedMsg{Config: c, Err: err})
		}
	}, rt.Logger)
	if err != nil {
		rt.Logger.Warn().Err(err).Msg("config watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		rt.Logger.Warn().Err(err).Msg("config watcher failed to start")
		_ = watcher.Close()
	} else {
		defer watcher.Close()
	}

	rt.Logger.Debug().Str("model", rt.Settings.ModelID()).Msg("starting chat UI")
	_, runErr := p.Run()

	mu.Lock()
	running = false
	mu.Unlock()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("chat UI: %w", runErr)
	}
	return nil
}
