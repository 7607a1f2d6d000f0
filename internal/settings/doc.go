// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings persists user preferences in a small SQLite key/value table.
//
// Four keys are stored: the chat model, the backend base URL, whether replies
// are spoken, and the speech language. A key that was never saved falls back
// to a default supplied by the caller (normally the loaded config), so editing
// the config file changes the effective value until the user overrides it.
//
// Values are cached in memory; getters never touch the database, which keeps
// them cheap enough for the conversation engine to call on every fragment.
package settings
