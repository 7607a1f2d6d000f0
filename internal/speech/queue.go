// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// =============================================================================
// QUEUE
// =============================================================================

// QueueOptions configures a Queue.
type QueueOptions struct {
	// Interrupt makes each Speak cancel current playback and drop anything
	// still pending.
	Interrupt bool

	// MaxPending bounds the backlog; the oldest utterance is dropped when
	// full (default: 64).
	MaxPending int

	Logger zerolog.Logger
}

type utterance struct {
	lang string
	text string
}

// QueueStats counts what the queue did.
type QueueStats struct {
	Spoken  int
	Dropped int
	Failed  int
}

// Queue plays utterances one at a time on its own goroutine.
//
// Speak and Stop never block on playback, so they are safe to call while
// holding other locks.
type Queue struct {
	synth     Synthesizer
	interrupt bool
	max       int
	logger    zerolog.Logger

	mu      sync.Mutex
	items   []utterance
	cancel  context.CancelFunc
	idle    chan struct{} // non-nil while there is work; closed when drained
	closed  bool
	stats   QueueStats

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewQueue starts a queue over synth.
func NewQueue(synth Synthesizer, opts QueueOptions) *Queue {
	if synth == nil {
		synth = NopSynthesizer{}
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 64
	}
	q := &Queue{
		synth:     synth,
		interrupt: opts.Interrupt,
		max:       opts.MaxPending,
		logger:    opts.Logger.With().Str("component", "speech").Str("synth", synth.Name()).Logger(),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go q.loop()
	return q
}

// Synthesizer returns the underlying synthesizer.
func (q *Queue) Synthesizer() Synthesizer {
	return q.synth
}

// Speak enqueues text. Blank text is ignored.
func (q *Queue) Speak(lang, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	if q.interrupt {
		q.stats.Dropped += len(q.items)
		q.items = q.items[:0]
		if q.cancel != nil {
			q.cancel()
		}
	}
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		q.stats.Dropped++
		q.logger.Warn().Int("max", q.max).Msg("speech backlog full, dropped oldest")
	}
	q.items = append(q.items, utterance{lang: lang, text: text})
	if q.idle == nil {
		q.idle = make(chan struct{})
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop cuts off current playback and drops everything pending.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Dropped += len(q.items)
	q.items = nil
	if q.cancel != nil {
		q.cancel()
	}
}

// Pending returns the number of queued utterances, excluding the one playing.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a copy of the counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// WaitIdle blocks until nothing is queued or playing, or ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and the worker. Later calls to Speak are ignored.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	close(q.quit)
	<-q.done
	return nil
}

// =============================================================================
// WORKER
// =============================================================================

func (q *Queue) loop() {
	defer close(q.done)
	defer q.markIdle()

	for {
		select {
		case <-q.quit:
			return
		case <-q.wake:
		}

		for {
			u, ctx, ok := q.next()
			if !ok {
				break
			}
			q.play(ctx, u)
		}
	}
}

// next pops the next utterance, or marks the queue idle when empty.
func (q *Queue) next() (utterance, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	if q.closed || len(q.items) == 0 {
		q.markIdleLocked()
		return utterance{}, nil, false
	}

	u := q.items[0]
	q.items = q.items[1:]
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	return u, ctx, true
}

func (q *Queue) play(ctx context.Context, u utterance) {
	err := q.synth.Say(ctx, u.lang, u.text)

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case err == nil:
		q.stats.Spoken++
	case ctx.Err() != nil:
		// Interrupted by Stop, Close or an interrupting Speak.
	default:
		q.stats.Failed++
		q.logger.Warn().Err(err).Str("lang", u.lang).Msg("speech failed")
	}
}

func (q *Queue) markIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.markIdleLocked()
}

func (q *Queue) markIdleLocked() {
	if q.idle != nil {
		close(q.idle)
		q.idle = nil
	}
}
