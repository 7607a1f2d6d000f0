// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation runs streaming chat turns.
//
// The Engine sends a user utterance to the chat backend, consumes the reply
// as it streams, and fans each fragment out to two places: the transcript
// (Store) and, cut into sentences, the speech sink. Completed exchanges are
// committed to History, which decides whether the next send starts a fresh
// conversation or continues the current one.
//
// # Key Types
//
//   - Engine: single-flight send/retry/clear/cancel controller
//   - Turn: one user send and its (possibly partial) reply
//   - Store: ordered transcript published as immutable snapshots
//   - History: append-only record of completed exchanges
//   - Settings, SpeechSink, Transport: collaborators injected into the engine
//
// # Concurrency
//
// Only one turn streams at a time. All mutations of Store and History happen
// under the engine's lock; the fragment loop runs on its own goroutine and
// takes the lock once per fragment. Readers use Store.Snapshot or
// Store.Subscribe and never see a turn change underneath them.
//
// # Usage
//
//	engine, err := conversation.NewEngine(conversation.EngineConfig{
//	    Transport: transport.NewClient(),
//	    Settings:  settingsStore,
//	    Speech:    speechQueue,
//	})
//	updates, unsubscribe := engine.Store().Subscribe(1)
//	defer unsubscribe()
//	if _, err := engine.Send("Hello"); err != nil {
//	    return err
//	}
//	for snap := range updates {
//	    render(snap.Turns)
//	}
package conversation
