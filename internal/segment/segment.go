// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultTerminators is the terminator set used when none is configured.
const DefaultTerminators = "."

// =============================================================================
// SEGMENTER
// =============================================================================

// Segmenter accumulates fragments and emits sentence units.
//
// A Segmenter belongs to a single send and is not safe for concurrent use.
type Segmenter struct {
	terminators string
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	buf strings.Builder
}

// New creates a segmenter that splits on any rune in terminators.
// An empty set falls back to DefaultTerminators.
func New(terminators string) *Segmenter {
	if terminators == "" {
		terminators = DefaultTerminators
	}
	return &Segmenter{terminators: terminators}
}

// Push appends a fragment and returns the units it completes.
//
// Only the right-most terminator in the buffer is honored: everything up to
// and including it is emitted as one unit and the strict remainder becomes
// the new buffer. The result therefore holds zero or one unit.
func (s *Segmenter) Push(fragment string) []string {
	if fragment == "" {
		return nil
	}
	// The terminator can only be in the new fragment; an older one would
	// already have been cut.
	if strings.IndexAny(fragment, s.terminators) < 0 {
		s.buf.WriteString(fragment)
		return nil
	}

	s.buf.WriteString(fragment)
	text := s.buf.String()

	i := strings.LastIndexAny(text, s.terminators)
	_, size := utf8.DecodeRuneInString(text[i:])
	cut := i + size

	unit := text[:cut]
	rest := text[cut:]
	s.buf.Reset()
	s.buf.WriteString(rest)

	return []string{unit}
}

// Flush returns and clears whatever is buffered, terminator or not.
func (s *Segmenter) Flush() (string, bool) {
	if s.buf.Len() == 0 {
		return "", false
	}
	rest := s.buf.String()
	s.buf.Reset()
	return rest, true
}

// Pending returns the buffered text without consuming it.
func (s *Segmenter) Pending() string {
	return s.buf.String()
}

// Reset discards the buffer.
func (s *Segmenter) Reset() {
	s.buf.Reset()
}
