// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/text/language"
)

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Synthesizer speaks one utterance, returning when playback ends or ctx is
// canceled.
type Synthesizer interface {
	Say(ctx context.Context, lang, text string) error
	Name() string
}

// NopSynthesizer discards all speech.
type NopSynthesizer struct{}

// Say does nothing.
func (NopSynthesizer) Say(context.Context, string, string) error { return nil }

// Name returns "none".
func (NopSynthesizer) Name() string { return "none" }

// =============================================================================
// COMMAND SYNTHESIZER
// =============================================================================

// Placeholders expanded in command arguments.
//
//	{lang}   the tag as configured, e.g. "en-US"
//	{voice}  the tag lowercased, e.g. "en-us" (espeak voice names)
//	{base}   the primary language subtag, e.g. "en"
//	{text}   the utterance; without it the text is written to stdin
const (
	PlaceholderLang  = "{lang}"
	PlaceholderVoice = "{voice}"
	PlaceholderBase  = "{base}"
	PlaceholderText  = "{text}"
)

// CommandSynthesizer runs an external TTS program per utterance.
type CommandSynthesizer struct {
	Command string
	Args    []string
}

// NewCommandSynthesizer creates a synthesizer for command and args.
func NewCommandSynthesizer(command string, args []string) *CommandSynthesizer {
	return &CommandSynthesizer{Command: command, Args: args}
}

// Name returns the program name.
func (c *CommandSynthesizer) Name() string {
	return c.Command
}

// Say runs the program and waits for it to exit.
func (c *CommandSynthesizer) Say(ctx context.Context, lang, text string) error {
	args, useStdin := ExpandArgs(c.Args, lang, text)

	cmd := exec.CommandContext(ctx, c.Command, args...)
	if useStdin {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", c.Command, err, msg)
		}
		return fmt.Errorf("%s failed: %w", c.Command, err)
	}
	return nil
}

// ExpandArgs substitutes placeholders. It reports whether the text must be
// fed on stdin because no argument carries it.
func ExpandArgs(args []string, lang, text string) ([]string, bool) {
	base := lang
	if tag, err := language.Parse(lang); err == nil {
		b, _ := tag.Base()
		base = b.String()
	}
	r := strings.NewReplacer(
		PlaceholderLang, lang,
		PlaceholderVoice, strings.ToLower(lang),
		PlaceholderBase, base,
		PlaceholderText, text,
	)

	out := make([]string, len(args))
	hasText := false
	for i, a := range args {
		if strings.Contains(a, PlaceholderText) {
			hasText = true
		}
		out[i] = r.Replace(a)
	}
	return out, !hasText
}

// =============================================================================
// DETECTION
// =============================================================================

// knownPrograms are tried in order by Detect. Reply text comes from the
// server, so "--" always precedes it to end option parsing.
var knownPrograms = []CommandSynthesizer{
	{Command: "say", Args: []string{"--", PlaceholderText}},
	{Command: "espeak-ng", Args: []string{"-v", PlaceholderVoice, "--", PlaceholderText}},
	{Command: "espeak", Args: []string{"-v", PlaceholderVoice, "--", PlaceholderText}},
	{Command: "spd-say", Args: []string{"-w", "-l", PlaceholderBase, "--", PlaceholderText}},
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Detect returns the first known TTS program on PATH, or false.
func Detect() (*CommandSynthesizer, bool) {
	for _, p := range knownPrograms {
		if p.Command == "say" && runtime.GOOS != "darwin" {
			continue
		}
		if _, err := lookPath(p.Command); err == nil {
			args := make([]string, len(p.Args))
			copy(args, p.Args)
			return &CommandSynthesizer{Command: p.Command, Args: args}, true
		}
	}
	return nil, false
}

// New picks a synthesizer: "none" disables speech, a non-empty command is used
// as given, and an empty command auto-detects.
func New(command string, args []string) Synthesizer {
	switch strings.TrimSpace(command) {
	case "none", "off":
		return NopSynthesizer{}
	case "":
		if s, ok := Detect(); ok {
			return s
		}
		return NopSynthesizer{}
	default:
		if len(args) == 0 {
			args = []string{"--", PlaceholderText}
		}
		return NewCommandSynthesizer(command, args)
	}
}
