// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the parley packages.
//
// # Key Functions
//
// Text (display width aware, via go-runewidth):
//   - Truncate, Preview: one-line summaries that never split a character
//   - PadRight, Width: table alignment for CJK and other wide text
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
