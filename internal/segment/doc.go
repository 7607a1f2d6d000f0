// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package segment splits a streamed reply into speakable sentence units.
//
// The Segmenter buffers fragments and cuts at the right-most terminator
// seen so far. Several terminators arriving in one fragment collapse into a
// single unit. This is cheaper than a sentence tokenizer and good enough for
// feeding a speech synthesizer while the reply is still streaming.
//
// # Usage
//
//	seg := segment.New(".:")
//	for _, frag := range fragments {
//	    for _, unit := range seg.Push(frag) {
//	        speak(unit)
//	    }
//	}
//	if rest, ok := seg.Flush(); ok {
//	    speak(rest)
//	}
package segment
