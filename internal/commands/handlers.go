// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// NAVIGATION
// =============================================================================

func handleHelp(ctx *Context, _ []string) (Result, error) {
	return Result{Output: HelpText(ctx.Registry)}, nil
}

// HelpText lists every command with its usage and description.
func HelpText(r *Registry) string {
	if r == nil {
		r = NewRegistry()
	}
	cmds := r.All()

	width := 0
	for _, cmd := range cmds {
		if w := util.Width(usage(cmd)); w > width {
			width = w
		}
	}

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range cmds {
		fmt.Fprintf(&b, "  %s  %s\n", util.PadRight(usage(cmd), width), cmd.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func handleQuit(_ *Context, _ []string) (Result, error) {
	return Result{Quit: true}, nil
}

// =============================================================================
// CONVERSATION
// =============================================================================

func handleClear(ctx *Context, _ []string) (Result, error) {
	if err := ctx.Engine.Clear(); err != nil {
		if errors.Is(err, conversation.ErrBusy) {
			return Result{}, errors.New("cannot clear while a reply is streaming (cancel it first)")
		}
		return Result{}, err
	}
	return Result{Output: "Conversation cleared."}, nil
}

// retryPreviewWidth bounds the echoed prompt in the /retry notice.
const retryPreviewWidth = 48

func handleRetry(ctx *Context, _ []string) (Result, error) {
	failed, ok := ctx.Engine.Store().Snapshot().LastRetryable()
	if !ok {
		return Result{}, errors.New("nothing to retry")
	}
	turn, err := ctx.Engine.Retry(failed.ID)
	if err != nil {
		return Result{}, fmt.Errorf("retry failed: %w", err)
	}
	return Result{Output: "Retrying: " + util.Preview(turn.SendText, retryPreviewWidth), Turn: &turn}, nil
}

func handleCancel(ctx *Context, _ []string) (Result, error) {
	if !ctx.Engine.Cancel() {
		return Result{Output: "Nothing is streaming."}, nil
	}
	return Result{Output: "Reply canceled."}, nil
}

// =============================================================================
// SPEECH
// =============================================================================

func handleSpeech(ctx *Context, args []string) (Result, error) {
	var on bool
	if len(args) == 0 {
		var err error
		if on, err = ctx.Settings.ToggleSpeech(); err != nil {
			return Result{}, err
		}
	} else {
		on = strings.EqualFold(args[0], "on")
		if err := ctx.Settings.SetSpeechEnabled(on); err != nil {
			return Result{}, err
		}
	}

	if !on {
		return Result{Output: "Speech off."}, nil
	}
	return Result{Output: fmt.Sprintf("Speech on (%s).", model.LanguageDisplayName(ctx.Settings.SpeechLanguage()))}, nil
}

func handleLanguage(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		current := ctx.Settings.SpeechLanguage()
		var b strings.Builder
		fmt.Fprintf(&b, "Speech language: %s (%s)\n", current, model.LanguageDisplayName(current))
		b.WriteString("Available:")
		for _, l := range model.SpeechLanguages() {
			fmt.Fprintf(&b, "\n  %s %s  %s", marker(strings.EqualFold(l.Tag, current)), util.PadRight(l.Tag, 6), l.DisplayName)
		}
		b.WriteString("\nAny BCP 47 tag is accepted.")
		return Result{Output: b.String()}, nil
	}

	if err := ctx.Settings.SetSpeechLanguage(args[0]); err != nil {
		return Result{}, err
	}
	tag := ctx.Settings.SpeechLanguage()
	return Result{Output: fmt.Sprintf("Speech language set to %s (%s).", tag, model.LanguageDisplayName(tag))}, nil
}

// =============================================================================
// BACKEND
// =============================================================================

func handleModel(ctx *Context, args []string) (Result, error) {
	catalog := ctx.Settings.Catalog()
	if len(args) == 0 {
		return Result{Output: ModelList(catalog, ctx.Settings.ModelID())}, nil
	}

	if err := ctx.Settings.SetModel(args[0]); err != nil {
		return Result{}, err
	}
	m, _ := catalog.Lookup(ctx.Settings.ModelID())
	return Result{Output: fmt.Sprintf("Model set to %s.", m.DisplayName())}, nil
}

// ModelList renders the catalog with the current model marked.
func ModelList(catalog *model.Catalog, current string) string {
	models := catalog.All()
	idWidth, nameWidth := 0, 0
	for _, m := range models {
		idWidth = max(idWidth, util.Width(m.ID))
		nameWidth = max(nameWidth, util.Width(m.DisplayName()))
	}

	var b strings.Builder
	b.WriteString("Models:")
	for _, m := range models {
		fmt.Fprintf(&b, "\n  %s %s  %s  %s, %s",
			marker(m.ID == current),
			util.PadRight(m.ID, idWidth),
			util.PadRight(m.DisplayName(), nameWidth),
			m.ChatPath, m.ContinuePath)
	}
	return b.String()
}

func handleURL(ctx *Context, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{Output: "Backend: " + ctx.Settings.BaseURL()}, nil
	}
	if err := ctx.Settings.SetBaseURL(args[0]); err != nil {
		return Result{}, err
	}
	return Result{Output: "Backend set to " + ctx.Settings.BaseURL() + "."}, nil
}

func marker(current bool) string {
	if current {
		return "*"
	}
	return " "
}
