// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/segment"
	"github.com/jeranaias/parley/internal/transport"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned while a turn is in flight.
	ErrBusy = errors.New("a message is already in flight")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnNotFound is returned by Retry for an unknown turn ID.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrNotRetryable is returned by Retry for a turn that did not fail.
	ErrNotRetryable = errors.New("turn did not fail")
	// ErrUnknownModel is returned when the configured model is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine is closed")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Settings supplies user preferences. The engine reads them at the moment
// each decision is made, never caching.
type Settings interface {
	BaseURL() string
	ModelID() string
	SpeechEnabled() bool
	SpeechLanguage() string
}

// SpeechSink speaks text. Speak must not block.
type SpeechSink interface {
	Speak(language, text string)
	Stop()
}

// Transport opens a reply stream.
type Transport interface {
	Open(ctx context.Context, req transport.Request) (transport.FragmentStream, error)
}

// SpeechMode selects when replies are spoken.
type SpeechMode int

const (
	// SpeechSentences speaks each sentence as soon as it completes.
	SpeechSentences SpeechMode = iota
	// SpeechFinal speaks the whole reply once it completes.
	SpeechFinal
)

// ParseSpeechMode parses "sentence" or "final". Empty means sentence.
func ParseSpeechMode(s string) (SpeechMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sentence", "sentences":
		return SpeechSentences, nil
	case "final", "whole":
		return SpeechFinal, nil
	default:
		return SpeechSentences, fmt.Errorf("unknown speech mode %q (want sentence or final)", s)
	}
}

// String returns the config spelling of the mode.
func (m SpeechMode) String() string {
	if m == SpeechFinal {
		return "final"
	}
	return "sentence"
}

type nopSpeech struct{}

func (nopSpeech) Speak(string, string) {}
func (nopSpeech) Stop()                {}

// =============================================================================
// ENGINE
// =============================================================================

// EngineConfig holds the engine's collaborators and options.
type EngineConfig struct {
	Transport Transport
	Settings  Settings

	// Speech may be nil, in which case nothing is spoken.
	Speech SpeechSink

	// Catalog resolves model IDs to endpoint paths (default: built-in models).
	Catalog *model.Catalog

	// Terminators is the sentence terminator set (default: ".").
	Terminators string

	SpeechMode SpeechMode

	Logger zerolog.Logger
}

// flight is one in-flight send. The pointer doubles as the ownership token:
// background work publishes only while e.flight still points at it.
type flight struct {
	id     uint64
	turnID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine runs at most one streaming turn at a time.
type Engine struct {
	mu sync.Mutex

	transport   Transport
	settings    Settings
	speech      SpeechSink
	catalog     *model.Catalog
	terminators string
	speechMode  SpeechMode
	logger      zerolog.Logger

	store   *Store
	history *History

	wg        conc.WaitGroup
	flight    *flight
	flightSeq uint64
	closed    bool
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("conversation: transport is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("conversation: settings are required")
	}
	if cfg.Speech == nil {
		cfg.Speech = nopSpeech{}
	}
	if cfg.Catalog == nil {
		cfg.Catalog = model.DefaultCatalog()
	}
	if cfg.Terminators == "" {
		cfg.Terminators = segment.DefaultTerminators
	}

	return &Engine{
		transport:   cfg.Transport,
		settings:    cfg.Settings,
		speech:      cfg.Speech,
		catalog:     cfg.Catalog,
		terminators: cfg.Terminators,
		speechMode:  cfg.SpeechMode,
		logger:      cfg.Logger.With().Str("component", "engine").Logger(),
		store:       NewStore(),
		history:     NewHistory(),
	}, nil
}

// Store returns the transcript.
func (e *Engine) Store() *Store { return e.store }

// History returns the committed exchanges.
func (e *Engine) History() *History { return e.history }

// Catalog returns the model catalog.
func (e *Engine) Catalog() *model.Catalog { return e.catalog }

// IsInteracting reports whether a turn is in flight.
func (e *Engine) IsInteracting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flight != nil
}

// =============================================================================
// SEND / RETRY / CLEAR / CANCEL
// =============================================================================

// Send starts a new turn for text and returns it in its pending state.
// The reply streams in the background; observe it through Store.
func (e *Engine) Send(text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyMessage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Turn{}, ErrClosed
	}
	if e.flight != nil {
		return Turn{}, ErrBusy
	}

	turn, req, err := e.prepareLocked(text)
	if err != nil {
		return Turn{}, err
	}
	e.store.append(turn)
	e.startLocked(turn, req)
	return turn, nil
}

// Retry discards a failed turn and sends its text again as a new turn.
func (e *Engine) Retry(turnID string) (Turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Turn{}, ErrClosed
	}
	old, ok := e.store.find(turnID)
	if !ok {
		return Turn{}, ErrTurnNotFound
	}
	if e.flight != nil {
		return Turn{}, ErrBusy
	}
	if !old.Retryable() {
		return Turn{}, ErrNotRetryable
	}

	turn, req, err := e.prepareLocked(old.SendText)
	if err != nil {
		return Turn{}, err
	}
	e.store.replace(old.ID, turn)
	e.logger.Info().Str("turn", turn.ID).Str("replaces", old.ID).Msg("retry")
	e.startLocked(turn, req)
	return turn, nil
}

// Clear stops speech and forgets the conversation.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.flight != nil {
		return ErrBusy
	}

	e.speech.Stop()
	e.history.Clear()
	e.store.reset()
	e.logger.Info().Msg("conversation cleared")
	return nil
}

// Cancel aborts the in-flight turn, which ends errored and can be retried.
// It reports whether there was anything to cancel.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flight == nil {
		return false
	}
	e.flight.cancel()
	return true
}

// Wait blocks until no turn is in flight or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		f := e.flight
		e.mu.Unlock()
		if f == nil {
			return nil
		}
		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels in-flight work, waits for it, stops speech and ends every
// store subscription. A panic in the stream task is returned as an error.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.flight != nil {
		e.flight.cancel()
	}
	e.mu.Unlock()

	recovered := e.wg.WaitAndRecover()

	e.speech.Stop()
	e.store.close()

	if recovered != nil {
		e.logger.Error().Str("panic", fmt.Sprint(recovered.Value)).Msg("stream task panicked")
		return fmt.Errorf("stream task panicked: %w", recovered.AsError())
	}
	return nil
}

// =============================================================================
// FLIGHT
// =============================================================================

// prepareLocked resolves settings into a request and a fresh turn.
func (e *Engine) prepareLocked(text string) (Turn, transport.Request, error) {
	modelID := e.settings.ModelID()
	m, ok := e.catalog.Lookup(modelID)
	if !ok {
		return Turn{}, transport.Request{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	endpoint := e.history.ContinuationTarget()
	turn := newTurn(text, m.ID, endpoint)
	req := transport.Request{
		BaseURL: e.settings.BaseURL(),
		Path:    m.Path(endpoint),
		Text:    text,
	}
	return turn, req, nil
}

func (e *Engine) startLocked(turn Turn, req transport.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	e.flightSeq++
	f := &flight{
		id:     e.flightSeq,
		turnID: turn.ID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.flight = f

	e.logger.Info().
		Uint64("flight", f.id).
		Str("turn", turn.ID).
		Str("model", turn.Model).
		Str("endpoint", turn.Endpoint.String()).
		Str("url", req.URL()).
		Msg("send started")

	e.wg.Go(func() {
		e.run(ctx, f, turn, req)
	})
}

// run drives one turn from request to completion.
func (e *Engine) run(ctx context.Context, f *flight, turn Turn, req transport.Request) {
	defer close(f.done)
	defer f.cancel()
	defer func() {
		if r := recover(); r != nil {
			e.fail(f, fmt.Errorf("internal error: %v", r))
			panic(r)
		}
	}()

	stream, err := e.transport.Open(ctx, req)
	if err != nil {
		e.fail(f, canceledOr(ctx, err))
		return
	}
	defer stream.Close()

	if !e.markStreaming(f) {
		return
	}

	seg := segment.New(e.terminators)
	var raw strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if tail := seg.Pending(); tail != "" {
				e.logger.Debug().Str("turn", turn.ID).Int("chars", len(tail)).Msg("unspoken tail dropped")
			}
			e.fail(f, canceledOr(ctx, err))
			return
		}
		raw.WriteString(frag)

		var units []string
		if e.speechMode == SpeechSentences {
			units = seg.Push(frag)
		}
		if !e.applyFragment(f, raw.String(), units) {
			return
		}
	}

	var rest []string
	if e.speechMode == SpeechSentences {
		if tail, ok := seg.Flush(); ok {
			rest = append(rest, tail)
		}
	}
	e.complete(f, turn.SendText, raw.String(), rest, stream)
}

// canceledOr reports caller cancellation as a transport.KindCanceled error
// even when the transport surfaced it differently.
func canceledOr(ctx context.Context, err error) error {
	if ctx.Err() != nil && !transport.IsCanceled(err) {
		return &transport.Error{Kind: transport.KindCanceled, Message: "request canceled", Cause: err}
	}
	return err
}

// ownsLocked reports whether f is still the current flight.
func (e *Engine) ownsLocked(f *flight) bool {
	return e.flight == f
}

func (e *Engine) currentTurnLocked(f *flight) (Turn, bool) {
	if !e.ownsLocked(f) {
		return Turn{}, false
	}
	return e.store.find(f.turnID)
}

func (e *Engine) markStreaming(f *flight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.currentTurnLocked(f)
	if !ok {
		return false
	}
	t.State = TurnStreaming
	e.store.update(t)
	e.logger.Debug().Str("turn", t.ID).Msg("stream opened")
	return true
}

func (e *Engine) applyFragment(f *flight, raw string, units []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.currentTurnLocked(f)
	if !ok {
		return false
	}
	t.ResponseText = strings.TrimSpace(raw)
	e.store.update(t)
	e.speakLocked(units...)
	return true
}

func (e *Engine) complete(f *flight, sendText, raw string, rest []string, stream transport.FragmentStream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.currentTurnLocked(f)
	if !ok {
		return
	}

	e.speakLocked(rest...)
	e.history.Append(sendText, raw)

	t.ResponseText = strings.TrimSpace(raw)
	t.State = TurnCompleted
	t.IsInteracting = false
	t.CompletedAt = time.Now()
	e.store.update(t)
	e.flight = nil

	if e.speechMode == SpeechFinal && t.ResponseText != "" && e.settings.SpeechEnabled() {
		e.speech.Stop()
		e.speech.Speak(e.settings.SpeechLanguage(), t.ResponseText)
	}

	ev := e.logger.Info().
		Str("turn", t.ID).
		Int("chars", len(raw)).
		Dur("elapsed", t.Duration())
	if s, ok := stream.(interface{ Stats() transport.StreamStats }); ok {
		st := s.Stats()
		ev = ev.Int("fragments", st.Fragments).Dur("ttff", st.TTFF())
	}
	ev.Msg("send completed")
}

func (e *Engine) fail(f *flight, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.currentTurnLocked(f)
	if !ok {
		return
	}

	t.ResponseError = err
	t.State = TurnErrored
	t.IsInteracting = false
	t.CompletedAt = time.Now()
	e.store.update(t)
	e.flight = nil

	e.logger.Warn().
		Str("turn", t.ID).
		Err(err).
		Int("partial_chars", len(t.ResponseText)).
		Msg("send failed")
}

// speakLocked dispatches units when speech is enabled at this moment.
func (e *Engine) speakLocked(units ...string) {
	if len(units) == 0 || !e.settings.SpeechEnabled() {
		return
	}
	lang := e.settings.SpeechLanguage()
	for _, u := range units {
		if strings.TrimSpace(u) == "" {
			continue
		}
		e.speech.Speak(lang, u)
		e.logger.Debug().Str("lang", lang).Int("chars", len(u)).Msg("speech dispatched")
	}
}
