// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries a store snapshot into the update loop.
type SnapshotMsg struct {
	Snapshot conversation.Snapshot
}

// subscriptionClosedMsg is sent once the store subscription ends.
type subscriptionClosedMsg struct{}

// ConfigReloadedMsg is sent by the config watcher after a reload attempt.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// NoticeMsg shows a one-line notice above the input.
type NoticeMsg struct {
	Text  string
	Error bool
}

// waitForSnapshot blocks on the subscription channel for the next snapshot.
func waitForSnapshot(ch <-chan conversation.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}
