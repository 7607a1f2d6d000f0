// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/transport"
)

// =============================================================================
// FAKE TRANSPORT
// =============================================================================

type step struct {
	frag string
	err  error
}

// scripted returns a closed, pre-filled step channel.
func scripted(frags ...string) chan step {
	ch := make(chan step, len(frags))
	for _, f := range frags {
		ch <- step{frag: f}
	}
	close(ch)
	return ch
}

type fakeStream struct {
	ctx   context.Context
	steps chan step
}

func (s *fakeStream) Next() (string, error) {
	select {
	case st, ok := <-s.steps:
		if !ok {
			return "", io.EOF
		}
		if st.err != nil {
			return "", st.err
		}
		return st.frag, nil
	case <-s.ctx.Done():
		return "", &transport.Error{Kind: transport.KindCanceled, Message: "request canceled", Cause: s.ctx.Err()}
	}
}

func (s *fakeStream) Close() error { return nil }

type fakeResponse struct {
	openErr error
	panicky bool
	steps   chan step
}

type fakeTransport struct {
	mu        sync.Mutex
	requests  []transport.Request
	responses []fakeResponse
}

func (f *fakeTransport) queue(r fakeResponse) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, r)
	return f
}

func (f *fakeTransport) Open(ctx context.Context, req transport.Request) (transport.FragmentStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	resp := fakeResponse{steps: scripted("ok")}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if resp.panicky {
		panic("transport exploded")
	}
	if resp.openErr != nil {
		return nil, resp.openErr
	}
	return &fakeStream{ctx: ctx, steps: resp.steps}, nil
}

func (f *fakeTransport) Requests() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// =============================================================================
// FAKE SETTINGS / SPEECH
// =============================================================================

type fakeSettings struct {
	mu       sync.Mutex
	baseURL  string
	modelID  string
	speaking bool
	language string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		baseURL:  "http://backend.test/",
		modelID:  "gpt-3.5-turbo",
		speaking: true,
		language: "en-US",
	}
}

func (s *fakeSettings) BaseURL() string        { s.mu.Lock(); defer s.mu.Unlock(); return s.baseURL }
func (s *fakeSettings) ModelID() string        { s.mu.Lock(); defer s.mu.Unlock(); return s.modelID }
func (s *fakeSettings) SpeechEnabled() bool    { s.mu.Lock(); defer s.mu.Unlock(); return s.speaking }
func (s *fakeSettings) SpeechLanguage() string { s.mu.Lock(); defer s.mu.Unlock(); return s.language }

func (s *fakeSettings) setModel(id string) { s.mu.Lock(); s.modelID = id; s.mu.Unlock() }
func (s *fakeSettings) setSpeaking(on bool) {
	s.mu.Lock()
	s.speaking = on
	s.mu.Unlock()
}

type utterance struct {
	lang string
	text string
}

type recordingSpeech struct {
	mu     sync.Mutex
	spoken []utterance
	stops  int
}

func (r *recordingSpeech) Speak(lang, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, utterance{lang: lang, text: text})
}

func (r *recordingSpeech) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *recordingSpeech) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.spoken {
		out = append(out, u.text)
	}
	return out
}

func (r *recordingSpeech) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	engine    *Engine
	transport *fakeTransport
	settings  *fakeSettings
	speech    *recordingSpeech
}

func newHarness(t *testing.T, opts ...func(*EngineConfig)) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		settings:  newFakeSettings(),
		speech:    &recordingSpeech{},
	}
	cfg := EngineConfig{
		Transport: h.transport,
		Settings:  h.settings,
		Speech:    h.speech,
		Logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	h.engine = engine
	t.Cleanup(func() { engine.Close() })
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Wait(ctx), "turn did not finish")
}

func (h *harness) turn(t *testing.T, id string) Turn {
	t.Helper()
	turn, ok := h.engine.Store().Snapshot().Find(id)
	require.True(t, ok, "turn %s not in store", id)
	return turn
}

// waitFor polls the store until cond holds.
func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := h.engine.Store().Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
	return Snapshot{}
}
