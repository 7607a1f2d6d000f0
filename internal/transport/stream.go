// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream reads a raw-text reply body as UTF-8 fragments.
//
// An incomplete multi-byte sequence at the end of a read is held back and
// prefixed to the next fragment, so fragments never split a rune. Bytes that
// are not valid UTF-8 are passed through unchanged.
type Stream struct {
	ctx   context.Context
	body  io.ReadCloser
	grain Grain

	buf     []byte
	pending []byte
	readErr error

	// mu guards the read side; Close does not take it so it can interrupt
	// a blocked Read.
	mu  sync.Mutex
	err error

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	stats StreamStats
}

func newStream(ctx context.Context, body io.ReadCloser, grain Grain, bufSize int, start time.Time) *Stream {
	return &Stream{
		ctx:   ctx,
		body:  body,
		grain: grain,
		buf:   make([]byte, bufSize),
		stats: StreamStats{StartTime: start, OpenedTime: time.Now()},
	}
}

// Next returns the next fragment, io.EOF at the natural end, or a terminal
// *Error. Fragments are never empty.
func (s *Stream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	if s.closing.Load() {
		s.err = &Error{Kind: KindCanceled, Message: "stream closed"}
		return "", s.err
	}

	for {
		if frag, ok := s.take(); ok {
			s.record(frag)
			return frag, nil
		}
		if s.readErr != nil {
			return "", s.finish(s.readErr)
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
			s.stats.Bytes += int64(n)
		}
		if err != nil {
			s.readErr = err
		}
	}
}

// take cuts the next fragment from pending. At end of input whatever is left
// is released even if it is not valid UTF-8.
func (s *Stream) take() (string, bool) {
	if len(s.pending) == 0 {
		return "", false
	}
	final := s.readErr != nil

	var cut int
	switch s.grain {
	case GrainRune:
		if !utf8.FullRune(s.pending) && !final {
			return "", false
		}
		_, cut = utf8.DecodeRune(s.pending)
		if !utf8.FullRune(s.pending) {
			cut = len(s.pending)
		}
	default:
		cut = completePrefix(s.pending)
		if final {
			cut = len(s.pending)
		}
		if cut == 0 {
			return "", false
		}
	}

	frag := string(s.pending[:cut])
	s.pending = append(s.pending[:0], s.pending[cut:]...)
	return frag, true
}

// completePrefix returns the length of b without a trailing incomplete rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

func (s *Stream) record(frag string) {
	if s.stats.Fragments == 0 {
		s.stats.FirstFragmentTime = time.Now()
	}
	s.stats.Fragments++
}

// finish latches the terminal error and releases the body.
func (s *Stream) finish(readErr error) error {
	switch {
	case readErr == io.EOF:
		s.err = io.EOF
	case s.closing.Load():
		s.err = &Error{Kind: KindCanceled, Message: "stream closed", Cause: readErr}
	default:
		s.err = classifyRequestError(s.ctx, readErr)
		if te, ok := s.err.(*Error); ok && te.Kind == KindNetwork {
			te.Message = "stream interrupted"
		}
	}
	s.stats.EndTime = time.Now()
	s.closeBody()
	return s.err
}

// Close releases the response body. It is safe to call more than once and
// concurrently with Next, which then returns a KindCanceled error.
func (s *Stream) Close() error {
	s.closing.Store(true)
	return s.closeBody()
}

func (s *Stream) closeBody() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Stats returns a copy of the stream statistics.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected while reading a reply.
type StreamStats struct {
	StartTime         time.Time
	OpenedTime        time.Time
	FirstFragmentTime time.Time
	EndTime           time.Time

	Fragments int
	Bytes     int64
}

// Handshake is the time from request start to response headers.
func (s StreamStats) Handshake() time.Duration {
	return s.OpenedTime.Sub(s.StartTime)
}

// TTFF is the time to the first fragment, or 0 if none arrived.
func (s StreamStats) TTFF() time.Duration {
	if s.FirstFragmentTime.IsZero() {
		return 0
	}
	return s.FirstFragmentTime.Sub(s.StartTime)
}
