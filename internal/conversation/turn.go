// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState is the lifecycle position of a turn.
type TurnState int

const (
	// TurnPending means the request is sent and no response has arrived.
	TurnPending TurnState = iota
	// TurnStreaming means fragments are arriving.
	TurnStreaming
	// TurnCompleted means the reply finished and was committed to history.
	TurnCompleted
	// TurnErrored means the send failed. Partial text may remain.
	TurnErrored
)

// String returns the state name.
func (s TurnState) String() string {
	switch s {
	case TurnPending:
		return "pending"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// =============================================================================
// TURN
// =============================================================================

// Turn is one user send and the reply it produced.
//
// Turns are values. The engine replaces a turn in the store on every change,
// so a Turn held by a reader never mutates.
type Turn struct {
	ID            string
	SendText      string
	ResponseText  string
	ResponseError error
	IsInteracting bool
	State         TurnState

	Model       string
	Endpoint    model.Endpoint
	CreatedAt   time.Time
	CompletedAt time.Time
}

func newTurn(sendText, modelID string, endpoint model.Endpoint) Turn {
	return Turn{
		ID:            uuid.NewString(),
		SendText:      sendText,
		IsInteracting: true,
		State:         TurnPending,
		Model:         modelID,
		Endpoint:      endpoint,
		CreatedAt:     time.Now(),
	}
}

// HasError reports whether the turn ended in failure.
func (t Turn) HasError() bool {
	return t.ResponseError != nil
}

// Retryable reports whether Engine.Retry accepts this turn.
func (t Turn) Retryable() bool {
	return t.State == TurnErrored && !t.IsInteracting
}

// Done reports whether the turn reached a terminal state.
func (t Turn) Done() bool {
	return t.State == TurnCompleted || t.State == TurnErrored
}

// Duration is the time from creation to completion, or 0 while in flight.
func (t Turn) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.CreatedAt)
}
