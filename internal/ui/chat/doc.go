// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for parley.
//
// The view never owns conversation state. It subscribes to the engine's
// store and re-renders from each snapshot, so the transcript shown is always
// the latest published one even when the terminal redraws slower than
// fragments arrive.
//
// # Keys
//
//   - Enter: send the message (or run a /command)
//   - Tab: complete a /command or its argument
//   - Ctrl+R: retry the last failed message
//   - Ctrl+L: clear the conversation
//   - Ctrl+S: toggle speech
//   - Ctrl+C: cancel the streaming reply, or quit when idle
//   - Esc: quit
//   - PgUp/PgDn: scroll
package chat
