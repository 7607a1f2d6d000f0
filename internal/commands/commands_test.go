// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/transport"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// TEST COLLABORATORS
// =============================================================================

type oneShotStream struct {
	text string
	done bool
}

func (s *oneShotStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *oneShotStream) Close() error { return nil }

// scriptedTransport fails the first open when failFirst is set.
type scriptedTransport struct {
	failFirst bool
	opens     int
}

func (t *scriptedTransport) Open(ctx context.Context, req transport.Request) (transport.FragmentStream, error) {
	t.opens++
	if t.failFirst && t.opens == 1 {
		return nil, &transport.Error{Kind: transport.KindBadStatus, StatusCode: 502, Body: "down"}
	}
	return &oneShotStream{text: "reply to " + req.Text}, nil
}

func newContext(t *testing.T, tr *scriptedTransport) (*Context, *conversation.Engine) {
	t.Helper()
	store, err := settings.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := conversation.NewEngine(conversation.EngineConfig{
		Transport: tr,
		Settings:  store,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return &Context{Engine: engine, Settings: store}, engine
}

func waitIdle(t *testing.T, e *conversation.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/model gpt-4", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		if got := IsCommand(tc.input); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"/help", []string{"/help"}},
		{"/model gpt-4", []string{"/model", "gpt-4"}},
		{`/url "http://a b"`, []string{"/url", "http://a b"}},
		{`/lang 'ja-JP'`, []string{"/lang", "ja-JP"}},
		{`/x ""`, []string{"/x", ""}},
		{`/x "say \"hi\""`, []string{"/x", `say "hi"`}},
		{"/lang   日本語  ", []string{"/lang", "日本語"}},
	}

	for _, tc := range tests {
		got := splitCommandLine(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitCommandLine(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParser_Parse(t *testing.T) {
	p := NewParser(NewRegistry())

	res := p.Parse("  /M gpt-4 ")
	assert.True(t, res.IsCommand)
	assert.Equal(t, "/m", res.CommandName)
	require.NotNil(t, res.Command)
	assert.Equal(t, "/model", res.Command.Name)
	assert.Equal(t, []string{"gpt-4"}, res.Args)

	res = p.Parse("hello there")
	assert.False(t, res.IsCommand)

	res = p.Parse("/nope")
	assert.True(t, res.IsCommand)
	assert.Nil(t, res.Command)
}

func TestValidateArgs(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		cmd     string
		args    []string
		wantErr string
	}{
		{"no args", "/speech", nil, ""},
		{"enum ok", "/speech", []string{"OFF"}, ""},
		{"enum bad", "/speech", []string{"loud"}, "invalid value"},
		{"too many", "/clear", []string{"now"}, "too many arguments"},
		{"optional arg", "/model", []string{"gpt-4"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(r.Get(tt.cmd), tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Command: "/speech", Arg: "state", Message: "invalid value", Got: "loud", Expected: "on, off"}
	want := "/speech: invalid value for argument 'state' (got: loud) - expected: on, off"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_GetByAlias(t *testing.T) {
	r := NewRegistry()
	for alias, name := range map[string]string{
		"/h": "/help", "/q": "/quit", "/exit": "/quit", "/c": "/clear",
		"/r": "/retry", "/stop": "/cancel", "/m": "/model", "/language": "/lang",
	} {
		cmd := r.Get(alias)
		if cmd == nil || cmd.Name != name {
			t.Errorf("Get(%q) = %v, want %s", alias, cmd, name)
		}
	}
	assert.Nil(t, r.Get("/unknown"))
}

func TestRegistry_AllSorted(t *testing.T) {
	var names []string
	for _, cmd := range NewRegistry().All() {
		names = append(names, cmd.Name)
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "/url")
}

func TestExecute_Unknown(t *testing.T) {
	ctx, _ := newContext(t, &scriptedTransport{})
	_, err := NewRegistry().Execute(ctx, "/dance")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = NewRegistry().Execute(ctx, "plain text")
	assert.Error(t, err)
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandlers_Settings(t *testing.T) {
	ctx, _ := newContext(t, &scriptedTransport{})
	r := NewRegistry()

	res, err := r.Execute(ctx, "/model gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "Model set to GPT 4.", res.Output)
	assert.Equal(t, "gpt-4", ctx.Settings.ModelID())

	_, err = r.Execute(ctx, "/model llama")
	assert.Error(t, err)
	assert.Equal(t, "gpt-4", ctx.Settings.ModelID())

	res, err = r.Execute(ctx, "/model")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "* gpt-4")

	res, err = r.Execute(ctx, "/lang es-es")
	require.NoError(t, err)
	assert.Equal(t, "es-ES", ctx.Settings.SpeechLanguage())
	assert.Contains(t, res.Output, "Español")

	res, err = r.Execute(ctx, "/lang")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "* es-ES")

	res, err = r.Execute(ctx, "/url http://localhost:9999/")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "http://localhost:9999")
	_, err = r.Execute(ctx, "/url ftp://nope")
	assert.Error(t, err)
}

func TestHandlers_Speech(t *testing.T) {
	ctx, _ := newContext(t, &scriptedTransport{})
	r := NewRegistry()

	require.True(t, ctx.Settings.SpeechEnabled())

	res, err := r.Execute(ctx, "/speech")
	require.NoError(t, err)
	assert.Equal(t, "Speech off.", res.Output)
	assert.False(t, ctx.Settings.SpeechEnabled())

	res, err = r.Execute(ctx, "/speech on")
	require.NoError(t, err)
	assert.Equal(t, "Speech on (English (US)).", res.Output)
	assert.True(t, ctx.Settings.SpeechEnabled())
}

func TestHandlers_RetryAndClear(t *testing.T) {
	tr := &scriptedTransport{failFirst: true}
	ctx, engine := newContext(t, tr)
	r := NewRegistry()

	_, err := r.Execute(ctx, "/retry")
	assert.EqualError(t, err, "nothing to retry")

	_, err = engine.Send("hi")
	require.NoError(t, err)
	waitIdle(t, engine)

	res, err := r.Execute(ctx, "/retry")
	require.NoError(t, err)
	require.NotNil(t, res.Turn)
	assert.Equal(t, "hi", res.Turn.SendText)
	assert.Equal(t, "Retrying: hi", res.Output)
	waitIdle(t, engine)

	snap := engine.Store().Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, "reply to hi", snap.Turns[0].ResponseText)

	res, err = r.Execute(ctx, "/clear")
	require.NoError(t, err)
	assert.Equal(t, "Conversation cleared.", res.Output)
	assert.Zero(t, engine.Store().Len())
}

func TestHandleRetry_NoticeIsOneLine(t *testing.T) {
	tr := &scriptedTransport{failFirst: true}
	ctx, engine := newContext(t, tr)

	long := "first line\n\tsecond   line\n" + strings.Repeat("word ", 30)
	_, err := engine.Send(long)
	require.NoError(t, err)
	waitIdle(t, engine)

	res, err := handleRetry(ctx, nil)
	require.NoError(t, err)
	waitIdle(t, engine)

	assert.True(t, strings.HasPrefix(res.Output, "Retrying: first line second line word"))
	assert.NotContains(t, res.Output, "\n")
	assert.True(t, strings.HasSuffix(res.Output, "…"))
	assert.LessOrEqual(t, util.Width(strings.TrimPrefix(res.Output, "Retrying: ")), retryPreviewWidth)
}

func TestHandlers_CancelAndQuit(t *testing.T) {
	ctx, _ := newContext(t, &scriptedTransport{})
	r := NewRegistry()

	res, err := r.Execute(ctx, "/cancel")
	require.NoError(t, err)
	assert.Equal(t, "Nothing is streaming.", res.Output)

	res, err = r.Execute(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, res.Quit)

	res, err = r.Execute(ctx, "/help")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, "Commands:"))
	assert.Contains(t, res.Output, "/speech [on|off]")
}

func TestHandleClear_Busy(t *testing.T) {
	busy := &busyEngine{}
	_, err := handleClear(&Context{Engine: busy}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel it first")
}

type busyEngine struct{}

func (busyEngine) Clear() error { return conversation.ErrBusy }
func (busyEngine) Retry(string) (conversation.Turn, error) {
	return conversation.Turn{}, errors.New("unused")
}
func (busyEngine) Cancel() bool                { return true }
func (busyEngine) Store() *conversation.Store { return conversation.NewStore() }

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestCompleter(t *testing.T) {
	c := NewCompleter(NewRegistry())
	c.ModelsFn = func() []string { return []string{"gpt-4", "gpt-3.5-turbo", "llama"} }

	tests := []struct {
		input string
		want  []string
	}{
		{"hello", nil},
		{"/sp", []string{"/speech"}},
		{"/c", []string{"/cancel", "/clear"}},
		{"/speech ", []string{"/speech off", "/speech on"}},
		{"/speech of", []string{"/speech off"}},
		{"/model gpt", []string{"/model gpt-3.5-turbo", "/model gpt-4"}},
		{"/lang ja", []string{"/lang ja-JP"}},
		{"/quit ", nil},
		{"/nope ", nil},
	}

	for _, tc := range tests {
		got := c.Complete(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Complete(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
