// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and the version/help commands.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdConfig
	CmdSettings
	CmdModels
	CmdStub
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdConfig:
		return "config"
	case CmdSettings:
		return "settings"
	case CmdModels:
		return "models"
	case CmdStub:
		return "stub"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigDir string // --config-dir: overrides PARLEY_CONFIG_DIR
	Model     string // --model: model for this run only
	BaseURL   string // --url: backend for this run only
	NoSpeech  bool   // --no-speech: speech off for this run only
	JSON      bool
	Quiet     bool
	Verbose   bool

	// Command-specific
	Query      string
	Subcommand string

	// Raw holds the arguments after the command name, globals removed.
	Raw []string
}

const usageText = `parley - streaming chat client

Usage:
  parley                          Start the full-screen chat (default)
  parley tui                      Same as above
  parley chat                     Line-mode chat with input history
  parley ask "message"            Send one message and print the reply
  parley config [show|get|set|path]
  parley settings [show|set|reset]
  parley models                   List the model catalog
  parley stub [--addr ADDR] [--cps N]
                                  Run the local development backend
  parley version                  Show version information
  parley help                     Show this help

Config Commands:
  parley config show              Print the effective configuration
  parley config get <key>         Print one value (e.g. chat.base_url)
  parley config set <key> <value> Write a value to config.toml
  parley config path              Print the config file path

Settings Commands:
  parley settings show            Print saved settings and defaults
  parley settings set <key> <v>   Save a setting (model, baseUrl,
                                  enableSpeaking, speakingLanguage)
  parley settings reset <key>     Forget a saved setting

Global Flags:
  --config-dir DIR                Use DIR instead of ~/.parley
  -m, --model ID                  Use a model for this run only
  --url URL                       Use a backend for this run only
  --no-speech                     Disable speech for this run only
  --json                          JSON output (config, settings, models, ask, version)
  -q, --quiet                     Minimal output
  -v, --verbose                   Debug logging

Chat Commands (tui and chat):
  /help, /clear, /retry, /cancel, /speech [on|off], /lang [tag],
  /model [id], /url [url], /quit

Environment:
  PARLEY_CONFIG_DIR, PARLEY_BASE_URL, PARLEY_MODEL, PARLEY_SPEECH,
  PARLEY_LANGUAGE, PARLEY_LOG_LEVEL, NO_COLOR, FORCE_COLOR

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "parley version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// ParseArgs parses command-line arguments (without the program name).
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, parsedArgs, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, parsedArgs, err
	}

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs, nil
	}

	name := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch name {
	case "tui":
		return CmdTUI, parsedArgs, nil

	case "chat", "repl":
		return CmdChat, parsedArgs, nil

	case "ask", "a":
		parsedArgs.Query = strings.TrimSpace(strings.Join(remaining, " "))
		return CmdAsk, parsedArgs, nil

	case "config", "cfg":
		parsedArgs.Subcommand = subcommandOr(remaining, "show")
		return CmdConfig, parsedArgs, nil

	case "settings", "setting":
		parsedArgs.Subcommand = subcommandOr(remaining, "show")
		return CmdSettings, parsedArgs, nil

	case "models", "model":
		return CmdModels, parsedArgs, nil

	case "stub", "serve":
		return CmdStub, parsedArgs, nil

	case "version", "-V", "--version":
		return CmdVersion, parsedArgs, nil

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs, nil

	default:
		return CmdHelp, parsedArgs, &ValidationError{
			Field:   "command",
			Value:   name,
			Reason:  "unknown command",
			Example: "parley help",
		}
	}
}

func subcommandOr(remaining []string, def string) string {
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		return strings.ToLower(remaining[0])
	}
	return def
}

// parseGlobalFlags extracts global flags and returns the remaining args.
// Everything after "--" is passed through untouched.
func parseGlobalFlags(args []string) ([]string, Args, error) {
	var remaining []string
	var parsed Args

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", ErrMissingArgument(flag, "parley "+flag+" VALUE")
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			remaining = append(remaining, args[i+1:]...)
			break
		}

		switch arg {
		case "--json":
			parsed.JSON = true
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--no-speech":
			parsed.NoSpeech = true
		case "-m", "--model", "--url", "--config-dir":
			v, err := value(i, arg)
			if err != nil {
				return nil, parsed, err
			}
			i++
			setGlobalValue(&parsed, arg, v)
		default:
			if name, v, ok := strings.Cut(arg, "="); ok && isGlobalValueFlag(name) {
				setGlobalValue(&parsed, name, v)
				continue
			}
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsed, nil
}

func isGlobalValueFlag(name string) bool {
	switch name {
	case "--model", "--url", "--config-dir":
		return true
	}
	return false
}

func setGlobalValue(a *Args, flag, v string) {
	switch flag {
	case "-m", "--model":
		a.Model = v
	case "--url":
		a.BaseURL = v
	case "--config-dir":
		a.ConfigDir = v
	}
}

// =============================================================================
// VERSION AND HELP
// =============================================================================

// HandleVersion writes version information, as JSON with --json.
func HandleVersion(args Args, w io.Writer) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print(w)
	}
	PrintVersion(w)
	return nil
}

// HandleHelp writes the usage text.
func HandleHelp(w io.Writer) error {
	PrintUsage(w)
	return nil
}
