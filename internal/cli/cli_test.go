// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/stub"
	"github.com/jeranaias/parley/internal/transport"
)

func init() {
	ForceColorsEnabled(false)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

// useConfigDir points config lookups at a fresh temp directory.
func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PARLEY_CONFIG_DIR", dir)
	for _, k := range []string{"PARLEY_BASE_URL", "PARLEY_MODEL", "PARLEY_SPEECH", "PARLEY_LANGUAGE", "PARLEY_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)
	return dir
}

// newStubRuntime starts the stub backend and wires a runtime against it.
func newStubRuntime(t *testing.T, args Args) (*Runtime, *stub.Server) {
	t.Helper()
	dir := useConfigDir(t)

	stubCfg := config.Default().Stub
	stubCfg.CharsPerSec = 0
	srv := stub.New(stubCfg, nil, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Chat.BaseURL = ts.URL
	cfg.Speech.Enabled = false
	cfg.Speech.Command = "none"
	cfg.UI.Markdown = false
	cfg.Storage.SettingsDB = ":memory:"
	cfg.Log.Path = filepath.Join(dir, "parley.log")
	config.SetGlobal(cfg)

	rt, err := NewRuntime(args)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt, srv
}

// scriptedInput feeds lines to a chat session, then reports EOF.
type scriptedInput struct {
	lines   []string
	prompts int
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	s.prompts++
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestChat(rt *Runtime, out io.Writer) *chatSession {
	s := newChatSession(rt.Engine, rt.Settings, out, true)
	s.interrupts = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}
	return s
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "flag with value",
			args:    []string{"--addr", "127.0.0.1:9000"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("addr") != "127.0.0.1:9000" {
					t.Errorf("Flag(addr) = %q", p.Flag("addr"))
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"--cps=40"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("cps") != "40" {
					t.Errorf("Flag(cps) = %q, want 40", p.Flag("cps"))
				}
			},
		},
		{
			name:    "declared boolean does not swallow the next word",
			args:    []string{"--force", "set", "model"},
			bools:   []string{"force"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be true")
				}
				if p.PositionalCount() != 2 {
					t.Errorf("PositionalCount() = %d, want 2", p.PositionalCount())
				}
			},
		},
		{
			name:    "trailing flag is boolean",
			args:    []string{"show", "--all"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("all") {
					t.Error("BoolFlag(all) should be true")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"set", "--", "--not-a-flag", "x"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if got := JoinPositionalArgs(p, 1); got != "--not-a-flag x" {
					t.Errorf("JoinPositionalArgs = %q", got)
				}
				if p.HasFlag("not-a-flag") {
					t.Error("flag after -- should not be parsed")
				}
			},
		},
		{
			name:    "single dash is positional",
			args:    []string{"-"},
			wantSub: "-",
		},
		{
			name:    "aliases",
			args:    []string{"-a", "0.0.0.0:1"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("addr", "a") != "0.0.0.0:1" {
					t.Errorf("Flag(addr, a) = %q", p.Flag("addr", "a"))
				}
				if p.FlagOrDefault("prefix", "You said: ") != "You said: " {
					t.Error("FlagOrDefault should fall back")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_PositionalBounds(t *testing.T) {
	p := NewArgParser([]string{"get", "chat.model"})
	assert.Equal(t, "chat.model", p.Positional(1))
	assert.Equal(t, "", p.Positional(5))
	assert.Equal(t, "", p.Positional(-1))
	assert.Empty(t, p.PositionalFrom(9))
	assert.Equal(t, []string{"get", "chat.model"}, p.Raw())
}

func TestParseBoolString(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"YES", true, false},
		{"on", true, false},
		{"1", true, false},
		{"off", false, false},
		{" n ", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := ParseBoolString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBoolString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBoolString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// COMMAND LINE TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{
			name:    "no arguments starts the ui",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "globals before the command",
			argv:    []string{"--json", "-m", "gpt-4", "--url", "http://h:1", "--no-speech", "models"},
			wantCmd: CmdModels,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.NoSpeech)
				assert.Equal(t, "gpt-4", a.Model)
				assert.Equal(t, "http://h:1", a.BaseURL)
			},
		},
		{
			name:    "globals after the command",
			argv:    []string{"ask", "hello", "--model=gpt-4", "there", "-q"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "hello there", a.Query)
				assert.Equal(t, "gpt-4", a.Model)
				assert.True(t, a.Quiet)
			},
		},
		{
			name:    "double dash keeps flags in the query",
			argv:    []string{"ask", "--", "what", "does", "--json", "do"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "what does --json do", a.Query)
				assert.False(t, a.JSON)
			},
		},
		{
			name:    "config defaults to show",
			argv:    []string{"cfg"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "show", a.Subcommand)
			},
		},
		{
			name:    "settings subcommand",
			argv:    []string{"settings", "SET", "model", "gpt-4"},
			wantCmd: CmdSettings,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "set", a.Subcommand)
				assert.Equal(t, []string{"SET", "model", "gpt-4"}, a.Raw)
			},
		},
		{
			name:    "config dir",
			argv:    []string{"--config-dir=/tmp/parley", "repl"},
			wantCmd: CmdChat,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/parley", a.ConfigDir)
			},
		},
		{name: "serve alias", argv: []string{"serve"}, wantCmd: CmdStub},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "help flag", argv: []string{"-h"}, wantCmd: CmdHelp},
		{name: "verbose tui", argv: []string{"-v", "tui"}, wantCmd: CmdTUI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseArgs(tt.argv)
			require.NoError(t, err)
			if cmd != tt.wantCmd {
				t.Errorf("command = %s, want %s", cmd, tt.wantCmd)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	_, _, err := ParseArgs([]string{"frobnicate"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Contains(t, err.Error(), "frobnicate")

	_, _, err = ParseArgs([]string{"chat", "--model"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHandleVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HandleVersion(Args{}, &buf))
	assert.Contains(t, buf.String(), "parley version "+Version)

	buf.Reset()
	require.NoError(t, HandleVersion(Args{JSON: true}, &buf))
	var resp struct {
		Success bool        `json:"success"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
}

func TestHandleHelp(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HandleHelp(&buf))
	out := buf.String()
	for _, want := range []string{"parley ask", "parley stub", "--no-speech", "PARLEY_CONFIG_DIR"} {
		assert.Contains(t, out, want)
	}
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"context canceled", fmt.Errorf("send: %w", context.Canceled), ExitCanceled},
		{"transport canceled", &transport.Error{Kind: transport.KindCanceled, Message: "request canceled"}, ExitCanceled},
		{"validation", &ValidationError{Field: "x", Reason: "bad"}, ExitUsageError},
		{"unknown slash command", fmt.Errorf("x: %w", commands.ErrUnknownCommand), ExitUsageError},
		{"not found", &NotFoundError{Resource: "model", ID: "x"}, ExitNotFoundError},
		{"config", config.ValidateErrors{{Field: "chat.base_url", Message: "bad"}}, ExitConfigError},
		{"wrapped config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "a", Message: "b"}}), ExitConfigError},
		{"settings key", fmt.Errorf("%w: nope", settings.ErrUnknownKey), ExitConfigError},
		{"unknown model", conversation.ErrUnknownModel, ExitConfigError},
		{"backend status", &transport.Error{Kind: transport.KindBadStatus, StatusCode: 500}, ExitNetworkError},
		{"command wraps backend", NewCommandError("ask", "send", "failed", &transport.Error{Kind: transport.KindBadStatus}), ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "--url", Value: "ftp://x", Reason: "must be http", Example: "parley --url http://h chat"}
	assert.Equal(t, "invalid --url: must be http (got: ftp://x)\nExample: parley --url http://h chat", err.Error())
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, ErrMissingArgument("message", `parley ask "hi"`), false)
	assert.Contains(t, buf.String(), "[ERROR]")
	assert.Contains(t, buf.String(), "required argument missing")

	buf.Reset()
	DisplayError(&buf, nil, false)
	assert.Empty(t, buf.String())
}

func TestDisplayErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayErrorJSON(&buf, &transport.Error{Kind: transport.KindBadStatus, StatusCode: 503, Message: "unavailable"})

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, float64(ExitNetworkError), out["exit_code"])
	assert.NotEmpty(t, out["error"])
	assert.NotEmpty(t, out["error_type"])
	assert.Equal(t, float64(503), out["status"])
}

func TestDisplayErrorJSON_StatusOnlyForBadStatus(t *testing.T) {
	var buf bytes.Buffer
	wrapped := fmt.Errorf("ask: %w", &transport.Error{Kind: transport.KindBadStatus, StatusCode: 502, Message: "bad gateway"})
	DisplayErrorJSON(&buf, wrapped)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "transport_error", out["error_type"])
	assert.Equal(t, float64(502), out["status"])

	buf.Reset()
	DisplayErrorJSON(&buf, &transport.Error{Kind: transport.KindInvalidResponse, StatusCode: 200, Message: "not text"})
	out = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "transport_error", out["error_type"])
	_, has := out["status"]
	assert.False(t, has, "a 200 with a bad body is not a status failure")
}

// =============================================================================
// STREAM TESTS (stream.go)
// =============================================================================

type fakeStreamEngine struct {
	cancels  int
	onCancel func()
}

func (f *fakeStreamEngine) Send(string) (conversation.Turn, error) { return conversation.Turn{}, nil }
func (f *fakeStreamEngine) Store() *conversation.Store             { return nil }

func (f *fakeStreamEngine) Cancel() bool {
	f.cancels++
	if f.onCancel != nil {
		f.onCancel()
	}
	return true
}

func snapshotWith(version uint64, turns ...conversation.Turn) conversation.Snapshot {
	return conversation.Snapshot{Version: version, Turns: turns}
}

func TestWatchTurn_PrintsIncrements(t *testing.T) {
	updates := make(chan conversation.Snapshot, 8)
	updates <- snapshotWith(1)
	updates <- snapshotWith(2, conversation.Turn{ID: "t1", State: conversation.TurnStreaming, IsInteracting: true, ResponseText: "Hel"})
	updates <- snapshotWith(3, conversation.Turn{ID: "t1", State: conversation.TurnStreaming, IsInteracting: true, ResponseText: "Hello"})
	updates <- snapshotWith(4, conversation.Turn{ID: "t1", State: conversation.TurnCompleted, ResponseText: "Hello world"})

	var buf bytes.Buffer
	turn := watchTurn(context.Background(), &fakeStreamEngine{}, updates, "t1", &buf)

	assert.Equal(t, "Hello world", buf.String())
	assert.True(t, turn.Done())
	assert.Equal(t, "Hello world", turn.ResponseText)
}

func TestWatchTurn_CancelOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	updates := make(chan conversation.Snapshot, 4)
	updates <- snapshotWith(1, conversation.Turn{ID: "t1", State: conversation.TurnStreaming, IsInteracting: true})

	// The errored turn is only published once the engine sees the cancel.
	e := &fakeStreamEngine{onCancel: func() {
		updates <- snapshotWith(2, conversation.Turn{
			ID:            "t1",
			State:         conversation.TurnErrored,
			ResponseError: &transport.Error{Kind: transport.KindCanceled, Message: "request canceled"},
		})
	}}
	turn := watchTurn(ctx, e, updates, "t1", nil)

	assert.Equal(t, 1, e.cancels)
	assert.True(t, turn.HasError())
	assert.True(t, turn.Retryable())
}

func TestWatchTurn_ClearedTurn(t *testing.T) {
	updates := make(chan conversation.Snapshot, 4)
	updates <- snapshotWith(1, conversation.Turn{ID: "t1", State: conversation.TurnPending, IsInteracting: true})
	updates <- snapshotWith(2)

	turn := watchTurn(context.Background(), &fakeStreamEngine{}, updates, "t1", nil)
	assert.Equal(t, "t1", turn.ID)
	assert.False(t, turn.Done())
}

func TestWatchTurn_ClosedUpdates(t *testing.T) {
	updates := make(chan conversation.Snapshot)
	close(updates)
	turn := watchTurn(context.Background(), &fakeStreamEngine{}, updates, "t1", nil)
	assert.Empty(t, turn.ID)
}

// =============================================================================
// ASK TESTS (ask.go)
// =============================================================================

func TestReadMessage(t *testing.T) {
	got, err := readMessage("hello", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = readMessage("", strings.NewReader("  piped text\n"))
	require.NoError(t, err)
	assert.Equal(t, "piped text", got)

	got, err = readMessage("-", strings.NewReader("dash"))
	require.NoError(t, err)
	assert.Equal(t, "dash", got)

	got, err = readMessage("", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = readMessage("", strings.NewReader(strings.Repeat("x", MaxStdinMessage+1)))
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHandleAsk_StreamsReply(t *testing.T) {
	rt, srv := newStubRuntime(t, Args{})

	var out bytes.Buffer
	err := HandleAsk(context.Background(), rt, Args{Query: "hello"}, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, "You said: hello. This is message 1 of this conversation.\n", out.String())
	assert.Equal(t, []string{"hello"}, srv.Conversation("gpt-3.5-turbo"))
}

func TestHandleAsk_ReadsStdin(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	var out bytes.Buffer
	err := HandleAsk(context.Background(), rt, Args{}, strings.NewReader("from a pipe\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "You said: from a pipe.")
}

func TestHandleAsk_JSON(t *testing.T) {
	args := Args{JSON: true, Model: "gpt-4", Query: "hi"}
	rt, srv := newStubRuntime(t, args)

	var out bytes.Buffer
	require.NoError(t, HandleAsk(context.Background(), rt, args, nil, &out))

	var resp struct {
		Success bool    `json:"success"`
		Command string  `json:"command"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ask", resp.Command)
	assert.Equal(t, "gpt-4", resp.Data.Model)
	assert.Equal(t, "You said: hi. This is message 1 of this conversation.", resp.Data.Reply)
	assert.Equal(t, []string{"hi"}, srv.Conversation("gpt-4"))
}

func TestHandleAsk_BackendError(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	var out bytes.Buffer
	err := HandleAsk(context.Background(), rt, Args{Query: stub.InputError}, nil, &out)
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

func TestHandleAsk_EmptyMessage(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	err := HandleAsk(context.Background(), rt, Args{}, strings.NewReader("   "), io.Discard)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// CHAT TESTS (chat.go)
// =============================================================================

func TestChatSession_SendAndContinue(t *testing.T) {
	rt, srv := newStubRuntime(t, Args{})

	var out bytes.Buffer
	in := &scriptedInput{lines: []string{"hello", "", "again", "/quit", "never read"}}
	require.NoError(t, newTestChat(rt, &out).run(context.Background(), in))

	assert.Contains(t, out.String(), "You said: hello. This is message 1 of this conversation.")
	assert.Contains(t, out.String(), "You said: again. This is message 2 of this conversation.")
	assert.Equal(t, []string{"hello", "again"}, srv.Conversation("gpt-3.5-turbo"))
	assert.Equal(t, []string{"never read"}, in.lines)
}

func TestChatSession_ErrorThenRetry(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	var out bytes.Buffer
	in := &scriptedInput{lines: []string{stub.InputError, "/retry"}}
	require.NoError(t, newTestChat(rt, &out).run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "[X]")
	assert.Contains(t, text, "/retry to resend")
	assert.Contains(t, text, "Retrying: "+stub.InputError)
	// The retried turn fails the same way and is still in the transcript.
	assert.Equal(t, 2, strings.Count(text, "[X]"))
	assert.Len(t, rt.Engine.Store().Snapshot().Turns, 1)
}

func TestChatSession_Commands(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	var out bytes.Buffer
	in := &scriptedInput{lines: []string{"/model gpt-4", "/bogus", "/clear", "exit"}}
	require.NoError(t, newTestChat(rt, &out).run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "Model set to GPT 4.")
	assert.Contains(t, text, "[Error]")
	assert.Contains(t, text, "Conversation cleared.")
	assert.Equal(t, "gpt-4", rt.Settings.ModelID())
}

func TestChatSession_EOFEnds(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	in := &scriptedInput{}
	require.NoError(t, newTestChat(rt, io.Discard).run(context.Background(), in))
	assert.Equal(t, 1, in.prompts)
}

func TestChatSession_Welcome(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})

	var out bytes.Buffer
	s := newTestChat(rt, &out)
	s.quiet = false
	require.NoError(t, s.run(context.Background(), &scriptedInput{}))

	assert.Contains(t, out.String(), "parley chat")
	assert.Contains(t, out.String(), "GPT 3.5 Turbo")
	assert.Contains(t, out.String(), "off")
}

// =============================================================================
// RUNTIME TESTS (runtime.go)
// =============================================================================

func TestNewRuntime_RejectsUnknownModel(t *testing.T) {
	useConfigDir(t)
	cfg := config.Default()
	cfg.Storage.SettingsDB = ":memory:"
	cfg.Speech.Command = "none"
	config.SetGlobal(cfg)

	_, err := NewRuntime(Args{Model: "no-such-model"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestNewRuntime_SpeechOff(t *testing.T) {
	rt, _ := newStubRuntime(t, Args{})
	assert.Equal(t, "none", rt.Speech.Synthesizer().Name())
}

func TestSessionSettings_Overrides(t *testing.T) {
	store, err := settings.Open(":memory:", settings.WithDefaults(func() settings.Defaults {
		return settings.Defaults{BaseURL: "http://127.0.0.1:8080", ModelID: "gpt-3.5-turbo", SpeechEnabled: true, SpeechLanguage: "en-US"}
	}))
	require.NoError(t, err)
	defer store.Close()

	s, err := NewSessionSettings(store, Args{Model: "gpt-4", BaseURL: "http://10.0.0.5:9000", NoSpeech: true})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", s.ModelID())
	assert.Equal(t, "http://10.0.0.5:9000", s.BaseURL())
	assert.False(t, s.SpeechEnabled())

	// Overrides are never saved.
	assert.Equal(t, "gpt-3.5-turbo", store.ModelID())
	assert.True(t, store.SpeechEnabled())

	// Changing a setting saves it and ends the override.
	require.NoError(t, s.SetModel("gpt-3.5-turbo"))
	assert.Equal(t, "gpt-3.5-turbo", s.ModelID())

	on, err := s.ToggleSpeech()
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, s.SpeechEnabled())

	require.NoError(t, s.SetBaseURL("http://127.0.0.2:8080"))
	assert.Equal(t, "http://127.0.0.2:8080", s.BaseURL())
}

func TestSessionSettings_InvalidURL(t *testing.T) {
	store, err := settings.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = NewSessionSettings(store, Args{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "--url", ve.Field)
}

func TestApplyConfigDir(t *testing.T) {
	t.Setenv("PARLEY_CONFIG_DIR", "")
	ApplyConfigDir(Args{ConfigDir: "/tmp/parley-test"})
	assert.Equal(t, "/tmp/parley-test", os.Getenv("PARLEY_CONFIG_DIR"))
}

// =============================================================================
// CONFIG COMMAND TESTS (config.go)
// =============================================================================

func configArgs(raw ...string) Args {
	_, args, _ := ParseArgs(append([]string{"config"}, raw...))
	return args
}

func TestHandleConfig_SetGetPath(t *testing.T) {
	dir := useConfigDir(t)

	var buf bytes.Buffer
	require.NoError(t, HandleConfig(configArgs("set", "chat.model", "gpt-4"), &buf))
	assert.Contains(t, buf.String(), "[OK] chat.model = gpt-4")

	_, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, HandleConfig(configArgs("get", "chat.model"), &buf))
	assert.Equal(t, "gpt-4\n", buf.String())

	buf.Reset()
	require.NoError(t, HandleConfig(configArgs("set", "speech.mode", "final"), &buf))
	buf.Reset()
	require.NoError(t, HandleConfig(configArgs("get", "chat.model"), &buf))
	assert.Equal(t, "gpt-4\n", buf.String(), "earlier values survive later sets")

	buf.Reset()
	require.NoError(t, HandleConfig(configArgs("path"), &buf))
	assert.Equal(t, filepath.Join(dir, "config.toml")+"\n", buf.String())
}

func TestHandleConfig_SetSkipsEnvOverrides(t *testing.T) {
	useConfigDir(t)
	t.Setenv("PARLEY_MODEL", "gpt-4")

	require.NoError(t, HandleConfig(configArgs("set", "speech.mode", "final"), io.Discard))

	path, err := config.ConfigPathTOML()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `model = "gpt-4"`)
}

func TestHandleConfig_Errors(t *testing.T) {
	useConfigDir(t)

	tests := []struct {
		name string
		args Args
		want int
	}{
		{"unknown key", configArgs("get", "chat.nope"), ExitUsageError},
		{"missing key", configArgs("get"), ExitUsageError},
		{"missing value", configArgs("set", "chat.model"), ExitUsageError},
		{"invalid value", configArgs("set", "speech.mode", "shout"), ExitConfigError},
		{"unknown model", configArgs("set", "chat.model", "gpt-99"), ExitConfigError},
		{"unknown subcommand", configArgs("frob"), ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HandleConfig(tt.args, io.Discard)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetExitCode(err))
		})
	}
}

func TestHandleConfig_ShowJSON(t *testing.T) {
	useConfigDir(t)

	var buf bytes.Buffer
	args := configArgs("show")
	args.JSON = true
	require.NoError(t, HandleConfig(args, &buf))

	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "gpt-3.5-turbo", resp.Data["chat.model"])
	assert.Equal(t, "sentence", resp.Data["speech.mode"])
}

func TestHandleConfig_ShowText(t *testing.T) {
	useConfigDir(t)

	var buf bytes.Buffer
	require.NoError(t, HandleConfig(configArgs(), &buf))
	assert.Contains(t, buf.String(), "[chat]")
	assert.Contains(t, buf.String(), "[speech]")
	assert.Contains(t, buf.String(), "base_url:")
}

// =============================================================================
// SETTINGS AND MODELS TESTS (settings_cmd.go, models.go)
// =============================================================================

func settingsArgs(raw ...string) Args {
	_, args, _ := ParseArgs(append([]string{"settings"}, raw...))
	return args
}

func TestHandleSettings_SetShowReset(t *testing.T) {
	useConfigDir(t)

	var buf bytes.Buffer
	require.NoError(t, HandleSettings(settingsArgs("set", "enableSpeaking", "false"), &buf))
	assert.Contains(t, buf.String(), "enableSpeaking = false")

	buf.Reset()
	args := settingsArgs("show")
	args.JSON = true
	require.NoError(t, HandleSettings(args, &buf))
	var resp struct {
		Data []SettingData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	byKey := make(map[string]SettingData)
	for _, d := range resp.Data {
		byKey[d.Key] = d
	}
	assert.Equal(t, SettingData{Key: "enableSpeaking", Value: "false", Saved: true}, byKey["enableSpeaking"])
	assert.False(t, byKey["model"].Saved)

	buf.Reset()
	require.NoError(t, HandleSettings(settingsArgs("reset", "enableSpeaking"), &buf))
	assert.Contains(t, buf.String(), "enableSpeaking = true")

	buf.Reset()
	require.NoError(t, HandleSettings(settingsArgs(), &buf))
	assert.Contains(t, buf.String(), "speakingLanguage:")
	assert.NotContains(t, buf.String(), "saved")
}

func TestHandleSettings_Errors(t *testing.T) {
	useConfigDir(t)

	tests := []struct {
		name string
		args Args
		want int
	}{
		{"unknown key", settingsArgs("set", "volume", "11"), ExitConfigError},
		{"bad boolean", settingsArgs("set", "enableSpeaking", "maybe"), ExitConfigError},
		{"missing value", settingsArgs("set", "model"), ExitUsageError},
		{"reset unknown", settingsArgs("reset", "volume"), ExitConfigError},
		{"unknown subcommand", settingsArgs("wipe"), ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HandleSettings(tt.args, io.Discard)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetExitCode(err))
		})
	}
}

func TestHandleModels(t *testing.T) {
	useConfigDir(t)

	var buf bytes.Buffer
	require.NoError(t, HandleModels(Args{Model: "gpt-4", JSON: true}, &buf))

	var resp struct {
		Data []ModelData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	for _, m := range resp.Data {
		assert.Equal(t, m.ID == "gpt-4", m.Current, m.ID)
	}

	buf.Reset()
	require.NoError(t, HandleModels(Args{}, &buf))
	assert.Contains(t, buf.String(), "/chat | /chat-continue")
	assert.Contains(t, buf.String(), "Backend: http://127.0.0.1:8080")
}

// =============================================================================
// STUB COMMAND TESTS (stub_cmd.go)
// =============================================================================

func TestHandleStub_StopsOnCancel(t *testing.T) {
	useConfigDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- HandleStub(ctx, Args{Raw: []string{"--addr", "127.0.0.1:0", "--cps", "0"}}, io.Discard)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stub did not stop")
	}
}

func TestHandleStub_InvalidRate(t *testing.T) {
	useConfigDir(t)
	err := HandleStub(context.Background(), Args{Raw: []string{"--cps", "fast"}}, io.Discard)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}
