// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The "config" command.
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Write a value to config.toml
//   path                Show the config file path
//
// Examples:
//   parley config get chat.base_url
//   parley config set chat.base_url http://10.0.0.5:8080
//   parley config set speech.mode final
//   parley config set speech.args "-v,{voice},--,{text}"
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/parley/internal/config"
)

const configUsage = "parley config [show|get <key>|set <key> <value>|path]"

// HandleConfig runs a config subcommand.
func HandleConfig(args Args, w io.Writer) error {
	p := NewArgParser(args.Raw)

	switch args.Subcommand {
	case "show":
		return handleConfigShow(args, w)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "parley config get chat.model")
		}
		return handleConfigGet(args, key, w)

	case "set":
		key, value := p.Positional(1), JoinPositionalArgs(p, 2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "parley config set chat.model gpt-4")
		}
		return handleConfigSet(args, key, value, w)

	case "path":
		return handleConfigPath(args, w)

	default:
		return ErrUnknownSubcommand("config", args.Subcommand, configUsage)
	}
}

// handleConfigShow prints every key grouped by section.
func handleConfigShow(args Args, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if args.JSON {
		values := make(map[string]interface{}, len(config.GetAllKeys()))
		for _, key := range config.GetAllKeys() {
			v, _ := cfg.Get(key)
			values[key] = v
		}
		return NewJSONResponse("config show", values).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("parley configuration"))
	section := ""
	for _, key := range config.GetAllKeys() {
		sec, name, ok := strings.Cut(key, ".")
		if !ok {
			sec, name = "", key
		}
		if sec != section {
			section = sec
			fmt.Fprintf(w, "\n%s\n", ValueStyle.Render("["+sec+"]"))
		}
		v, _ := cfg.Get(key)
		fmt.Fprintf(w, "  %s%s\n", RenderLabel(name+":", 24), formatConfigValue(v))
	}

	if len(cfg.Models) > 0 {
		fmt.Fprintf(w, "\n%s\n", ValueStyle.Render("[[models]]"))
		for _, m := range cfg.Models {
			fmt.Fprintf(w, "  %s%s %s\n", RenderLabel(m.ID+":", 24), m.ChatPath, m.ContinuePath)
		}
	}

	if path, err := config.ConfigPathTOML(); err == nil {
		fmt.Fprintf(w, "\n%s %s\n", DimStyle.Render("Config file:"), path)
	}
	return nil
}

func handleConfigGet(args Args, key string, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "parley config show"}
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": v}).Print(w)
	}
	fmt.Fprintln(w, formatConfigValue(v))
	return nil
}

// handleConfigSet edits the config file itself. Environment overrides are
// not applied, so they never get written back.
func handleConfigSet(args Args, key, value string, w io.Writer) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	} else if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := config.LoadJSON(cfg, jsonPath); err != nil {
				return err
			}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "parley config show"}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not save", err)
	}

	if args.JSON {
		v, _ := cfg.Get(key)
		return NewJSONResponse("config set", map[string]interface{}{"key": key, "value": v, "path": path}).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	}
	return nil
}

func handleConfigPath(args Args, w io.Writer) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := !errors.Is(statErr, os.ErrNotExist)

	if args.JSON {
		return NewJSONResponse("config path", map[string]interface{}{"path": path, "exists": exists}).Print(w)
	}
	fmt.Fprintln(w, path)
	return nil
}

func formatConfigValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case string:
		if val == "" {
			return `""`
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}
