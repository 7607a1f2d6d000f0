// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech plays text aloud through a local text-to-speech program.
//
// A Queue accepts utterances without blocking and plays them one at a time on
// a worker goroutine. In interrupt mode a new utterance cuts off whatever is
// playing, which suits speaking a whole reply at once; in the default mode
// sentences play back to back in arrival order.
//
// Synthesis is delegated to a Synthesizer. CommandSynthesizer runs an
// external program (say, espeak-ng, espeak, spd-say, or anything configured)
// and NopSynthesizer discards everything.
package speech
