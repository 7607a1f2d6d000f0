// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot send for the "ask" command.
//
// Examples:
//   parley ask "What is the capital of France?"
//   echo "hello" | parley ask
//   parley ask --json --model gpt-4 "hi"
//
// The reply streams to stdout as it arrives. When stdout is a terminal and
// ui.markdown is on, the finished reply is rendered as markdown instead.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/parley/internal/ui/styles"
)

// MaxStdinMessage bounds a message read from stdin (64KB).
const MaxStdinMessage = 64 * 1024

// renderMarkdown renders markdown for the terminal, or returns content
// unchanged if the renderer cannot be built.
func renderMarkdown(content, style string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// readMessage returns the query, reading stdin when the query is empty or "-".
func readMessage(query string, in io.Reader) (string, error) {
	if query != "" && query != "-" {
		return query, nil
	}
	if in == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(in, MaxStdinMessage+1))
	if err != nil {
		return "", fmt.Errorf("failed to read message from stdin: %w", err)
	}
	if len(data) > MaxStdinMessage {
		return "", &ValidationError{Field: "message", Reason: fmt.Sprintf("stdin message exceeds %d bytes", MaxStdinMessage)}
	}
	return strings.TrimSpace(string(data)), nil
}

// HandleAsk sends one message and prints the reply.
//
// in is read when no message is given on the command line; pass nil when
// stdin is a terminal.
func HandleAsk(ctx context.Context, rt *Runtime, args Args, in io.Reader, out io.Writer) error {
	text, err := readMessage(args.Query, in)
	if err != nil {
		return err
	}
	if text == "" {
		return ErrMissingArgument("message", `parley ask "hello"`)
	}

	markdown := !args.JSON && rt.Config.UI.Markdown && IsStdoutTTY()
	var live io.Writer
	if !args.JSON && !markdown {
		live = out
	}

	turn, err := sendAndWatch(ctx, rt.Engine, text, live)
	if err != nil {
		return err
	}

	if turn.HasError() {
		if live != nil && turn.ResponseText != "" {
			fmt.Fprintln(out)
		}
		return turn.ResponseError
	}

	switch {
	case args.JSON:
		if err := NewJSONResponse("ask", AskData{
			Model:    turn.Model,
			Endpoint: turn.Endpoint.String(),
			Reply:    turn.ResponseText,
			Millis:   turn.Duration().Milliseconds(),
		}).Print(out); err != nil {
			return err
		}
	case markdown:
		theme := styles.NewTheme(rt.Config.UI.Theme)
		fmt.Fprint(out, renderMarkdown(turn.ResponseText, theme.GlamourStyle(), GetTerminalWidth()-4))
	default:
		if !strings.HasSuffix(turn.ResponseText, "\n") {
			fmt.Fprintln(out)
		}
	}

	// Let the last sentence finish speaking before the process exits.
	if rt.Settings.SpeechEnabled() {
		if err := rt.Speech.WaitIdle(ctx); err != nil {
			rt.Logger.Debug().Err(err).Msg("speech wait interrupted")
		}
	}
	return nil
}
