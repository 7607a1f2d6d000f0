// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the terminal
// UI and the plain REPL.
//
// Handlers act on the conversation engine and the settings store and return
// a Result; each front end decides how to show it.
//
// # Key Types
//
//   - Registry: Command registry with all available commands
//   - Parser, ParseResult: Parsed command with name and arguments
//   - Completer: Tab completion for commands and arguments
//
// # Built-in Commands
//
//   - /clear, /retry, /cancel: conversation control
//   - /speech, /lang: speech output
//   - /model, /url: backend selection
//   - /help, /quit
//
// # Usage
//
//	registry := commands.NewRegistry()
//	res, err := registry.Execute(&commands.Context{Engine: e, Settings: s}, "/model gpt-4")
package commands
