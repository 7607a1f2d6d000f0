// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands for parley.
//
// # Key Types
//
//   - Command: Enumeration of the available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Runtime: The wired engine, settings, speech queue and transport
//
// # Usage
//
//	cmd, args, err := cli.ParseArgs(os.Args[1:])
//	if err != nil {
//	    cli.HandleErrorAndExit(err, false)
//	}
//	switch cmd {
//	case cli.CmdAsk:
//	    err = cli.HandleAsk(ctx, rt, args, nil, os.Stdout)
//	case cli.CmdChat:
//	    err = cli.HandleChat(ctx, rt, args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - tui: Full-screen chat (default)
//   - chat: Line-mode chat with history
//   - ask: Send one message and print the reply
//   - config: Show, get or set config file values
//   - settings: Show, set or reset saved settings
//   - models: List the model catalog
//   - stub: Run the local development backend
//
// config, settings, models, ask and version support --json.
package cli
