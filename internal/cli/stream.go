// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"

	"github.com/jeranaias/parley/internal/conversation"
)

// StreamEngine is the part of the engine that line-mode output needs.
type StreamEngine interface {
	Send(text string) (conversation.Turn, error)
	Cancel() bool
	Store() *conversation.Store
}

// watchTurn follows a turn through store snapshots until it is done, writing
// each new piece of reply text to w as it arrives (w may be nil).
//
// Canceling ctx cancels the in-flight send; the turn still runs to its
// errored state so the final Turn is always returned.
func watchTurn(ctx context.Context, e StreamEngine, updates <-chan conversation.Snapshot, turnID string, w io.Writer) conversation.Turn {
	var (
		printed int
		last    conversation.Turn
		seen    bool
	)

	done := ctx.Done()
	for {
		select {
		case <-done:
			e.Cancel()
			done = nil
			continue

		case snap, ok := <-updates:
			if !ok {
				return last
			}
			t, found := snap.Find(turnID)
			if !found {
				if !seen {
					// Snapshot taken before the send.
					continue
				}
				// Cleared from under us.
				return last
			}
			seen = true
			last = t

			// Reply text only ever grows within a turn.
			if w != nil && len(t.ResponseText) > printed {
				io.WriteString(w, t.ResponseText[printed:])
				printed = len(t.ResponseText)
			}
			if t.Done() {
				return t
			}
		}
	}
}

// sendAndWatch sends text and follows the new turn. The subscription is made
// before the send so no update is missed.
func sendAndWatch(ctx context.Context, e StreamEngine, text string, w io.Writer) (conversation.Turn, error) {
	updates, unsubscribe := e.Store().Subscribe(8)
	defer unsubscribe()

	turn, err := e.Send(text)
	if err != nil {
		return turn, err
	}
	return watchTurn(ctx, e, updates, turn.ID, w), nil
}
