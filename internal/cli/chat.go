// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for the "chat" command.
//
// Examples:
//   parley chat                 Start line-mode chat
//   parley chat --model gpt-4   Use a model for this session
//   parley chat --no-speech     Keep quiet for this session
//
// Interactive Commands: the same slash commands as the full-screen UI.
//   Ctrl+C    Cancel the reply that is streaming (exits at the prompt)
//   Ctrl+D    Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// SetCompleter installs tab completion for slash commands.
func (c *ChatCLI) SetCompleter(complete func(string) []string) {
	c.line.SetCompleter(complete)
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line; non-blank lines are added to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// lineReader is satisfied by ChatCLI.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// chatEngine is what line-mode chat needs from the engine.
type chatEngine interface {
	commands.Engine
	Send(text string) (conversation.Turn, error)
}

// chatSession runs the read-send-print loop.
type chatSession struct {
	engine   chatEngine
	settings commands.Settings
	registry *commands.Registry
	out      io.Writer
	quiet    bool

	// interrupts returns a context canceled by Ctrl+C while a reply streams.
	interrupts func(context.Context) (context.Context, context.CancelFunc)
}

// HandleChat runs line-mode chat on the terminal.
func HandleChat(ctx context.Context, rt *Runtime, args Args) error {
	input := NewChatCLI()
	defer input.Close()

	s := newChatSession(rt.Engine, rt.Settings, os.Stdout, args.Quiet)
	completer := commands.NewCompleter(s.registry)
	completer.ModelsFn = func() []string { return rt.Catalog.IDs() }
	input.SetCompleter(completer.Complete)

	return s.run(ctx, input)
}

func newChatSession(engine chatEngine, st commands.Settings, out io.Writer, quiet bool) *chatSession {
	return &chatSession{
		engine:   engine,
		settings: st,
		registry: commands.NewRegistry(),
		out:      out,
		quiet:    quiet,
		interrupts: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// run reads lines until /quit, EOF or Ctrl+C at the prompt.
func (s *chatSession) run(ctx context.Context, in lineReader) error {
	if !s.quiet {
		s.printWelcome()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin all end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if commands.IsCommand(line) {
			if quit := s.runCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		s.send(ctx, line)
	}
}

// runCommand executes a slash command and reports whether to quit.
func (s *chatSession) runCommand(ctx context.Context, line string) bool {
	// Subscribe first so a /retry turn can be followed from its first update.
	updates, unsubscribe := s.engine.Store().Subscribe(8)
	defer unsubscribe()

	res, err := s.registry.Execute(&commands.Context{
		Engine:   s.engine,
		Settings: s.settings,
		Registry: s.registry,
	}, line)
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return false
	}
	if res.Output != "" {
		fmt.Fprintln(s.out, res.Output)
	}
	if res.Turn != nil {
		s.follow(ctx, updates, res.Turn.ID)
	}
	return res.Quit
}

// send sends a message and streams the reply.
func (s *chatSession) send(ctx context.Context, text string) {
	updates, unsubscribe := s.engine.Store().Subscribe(8)
	defer unsubscribe()

	turn, err := s.engine.Send(text)
	if err != nil {
		if errors.Is(err, conversation.ErrBusy) {
			fmt.Fprintln(s.out, WarningStyle.Render("A reply is still streaming."))
			return
		}
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	s.follow(ctx, updates, turn.ID)
}

// follow streams a turn to the output and reports how it ended.
func (s *chatSession) follow(ctx context.Context, updates <-chan conversation.Snapshot, turnID string) {
	turnCtx, stop := s.interrupts(ctx)
	defer stop()

	turn := watchTurn(turnCtx, s.engine, updates, turnID, s.out)
	if turn.ResponseText != "" && !strings.HasSuffix(turn.ResponseText, "\n") {
		fmt.Fprintln(s.out)
	}
	if turn.HasError() {
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[X]"), turn.ResponseError)
		if turn.Retryable() {
			fmt.Fprintln(s.out, DimStyle.Render("/retry to resend"))
		}
	}
}

func (s *chatSession) printWelcome() {
	modelName := s.settings.ModelID()
	if cm, ok := s.settings.Catalog().Lookup(modelName); ok {
		modelName = cm.DisplayName()
	}
	speech := "off"
	if s.settings.SpeechEnabled() {
		lang := s.settings.SpeechLanguage()
		speech = fmt.Sprintf("on, %s (%s)", lang, model.LanguageDisplayName(lang))
	}

	fmt.Fprintln(s.out, TitleStyle.Render("parley chat"))
	fmt.Fprintln(s.out, RenderSeparator(30))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Model:", 10), ValueStyle.Render(modelName))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Backend:", 10), ValueStyle.Render(s.settings.BaseURL()))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Speech:", 10), ValueStyle.Render(speech))
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, DimStyle.Render("Type a message and press Enter. /help lists commands, /quit exits."))
	fmt.Fprintln(s.out)
}
