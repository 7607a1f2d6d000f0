// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "sync"

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of the transcript.
type Snapshot struct {
	// Version increases by one on every published change.
	Version uint64
	Turns   []Turn
}

// Last returns the newest turn.
func (s Snapshot) Last() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// Find returns the turn with the given ID.
func (s Snapshot) Find(id string) (Turn, bool) {
	for _, t := range s.Turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

// Interacting returns the in-flight turn, if any.
func (s Snapshot) Interacting() (Turn, bool) {
	if last, ok := s.Last(); ok && last.IsInteracting {
		return last, true
	}
	return Turn{}, false
}

// LastRetryable returns the newest errored turn.
func (s Snapshot) LastRetryable() (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Retryable() {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the ordered transcript.
//
// Readers may call Snapshot or Subscribe from any goroutine. Mutators are
// unexported: only the Engine changes the transcript.
type Store struct {
	mu      sync.RWMutex
	turns   []Turn
	version uint64

	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan Snapshot)}
}

// Snapshot returns the current transcript.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Subscribe returns a channel of snapshots, starting with the current one,
// and a function that ends the subscription.
//
// A subscriber that falls behind only ever sees the newest snapshot: a stale
// one still sitting in the channel is replaced. The channel is closed on
// unsubscribe or when the engine closes.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{Version: s.version, Turns: turns}
}

// publishLocked bumps the version and offers the new snapshot to every
// subscriber without blocking.
func (s *Store) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// =============================================================================
// MUTATORS (ENGINE ONLY)
// =============================================================================

func (s *Store) append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	s.publishLocked()
}

// update replaces the turn with the same ID. Unknown IDs are ignored.
func (s *Store) update(t Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.turns {
		if s.turns[i].ID == t.ID {
			s.turns[i] = t
			s.publishLocked()
			return true
		}
	}
	return false
}

// replace removes the turn with oldID and appends t, as one change.
func (s *Store) replace(oldID string, t Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.turns {
		if s.turns[i].ID == oldID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	turns := make([]Turn, 0, len(s.turns))
	turns = append(turns, s.turns[:idx]...)
	turns = append(turns, s.turns[idx+1:]...)
	s.turns = append(turns, t)
	s.publishLocked()
	return true
}

func (s *Store) find(id string) (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.publishLocked()
}

// close ends every subscription.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
