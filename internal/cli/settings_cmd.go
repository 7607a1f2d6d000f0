// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// settings_cmd.go - The "settings" command.
//
// Saved settings are the values the chat commands change (/model, /url,
// /speech, /lang). Unsaved keys follow the config file.
//
// Examples:
//   parley settings
//   parley settings set model gpt-4
//   parley settings set enableSpeaking false
//   parley settings reset baseUrl
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/settings"
)

const settingsUsage = "parley settings [show|set <key> <value>|reset <key>]"

// openSettings opens the settings store configured by the global config.
func openSettings() (*settings.Store, error) {
	cfg := config.Global()
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	path, err := cfg.SettingsDBPath()
	if err != nil {
		return nil, err
	}
	return settings.Open(path,
		settings.WithDefaults(func() settings.Defaults { return DefaultsFromConfig(config.Global()) }),
		settings.WithCatalog(catalog),
	)
}

// HandleSettings runs a settings subcommand.
func HandleSettings(args Args, w io.Writer) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	p := NewArgParser(args.Raw)
	switch args.Subcommand {
	case "show", "list":
		return showSettings(args, store, w)

	case "set":
		key, value := p.Positional(1), JoinPositionalArgs(p, 2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "parley settings set model gpt-4")
		}
		if err := store.Set(key, value); err != nil {
			return err
		}
		v, _ := store.Get(key)
		return reportSetting(args, w, "settings set", key, v)

	case "reset":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "parley settings reset model")
		}
		if err := store.Reset(key); err != nil {
			return err
		}
		v, _ := store.Get(key)
		return reportSetting(args, w, "settings reset", key, v)

	default:
		return ErrUnknownSubcommand("settings", args.Subcommand, settingsUsage)
	}
}

func showSettings(args Args, store *settings.Store, w io.Writer) error {
	entries := store.All()

	if args.JSON {
		data := make([]SettingData, 0, len(entries))
		for _, e := range entries {
			data = append(data, SettingData{Key: e.Key, Value: e.Value, Saved: e.Saved})
		}
		return NewJSONResponse("settings show", data).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("parley settings"))
	for _, e := range entries {
		value := e.Value
		switch e.Key {
		case settings.KeyModel:
			if cm, ok := store.Catalog().Lookup(e.Value); ok && cm.DisplayName() != e.Value {
				value = fmt.Sprintf("%s (%s)", e.Value, cm.DisplayName())
			}
		case settings.KeySpeechLanguage:
			value = fmt.Sprintf("%s (%s)", e.Value, model.LanguageDisplayName(e.Value))
		}
		origin := DimStyle.Render("default")
		if e.Saved {
			origin = SuccessStyle.Render("saved")
		}
		fmt.Fprintf(w, "  %s%s  %s\n", RenderLabel(e.Key+":", 20), ValueStyle.Render(value), origin)
	}
	return nil
}

func reportSetting(args Args, w io.Writer, command, key, value string) error {
	if args.JSON {
		return NewJSONResponse(command, SettingData{Key: key, Value: value, Saved: strings.HasSuffix(command, "set")}).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	}
	return nil
}
