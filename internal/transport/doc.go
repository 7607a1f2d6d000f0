// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport speaks the raw-text streaming chat protocol.
//
// A request is a single POST whose body is the user's text as UTF-8. The
// reply body is the assistant's text, written incrementally by the server.
// There is no framing, no JSON and no role metadata on the wire: continuation
// context lives on the server and is selected by the endpoint path.
//
// # Key Types
//
//   - Client: opens streaming requests
//   - Request: base URL, endpoint path and text for one send
//   - FragmentStream: lazy, single-pass sequence of text fragments
//   - Error: classified failure (network, invalid response, bad status, canceled)
//
// # Usage
//
//	client := transport.NewClient()
//	stream, err := client.Open(ctx, transport.Request{
//	    BaseURL: "http://127.0.0.1:8080",
//	    Path:    "/chat",
//	    Text:    "Hello",
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    frag, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(frag)
//	}
package transport
