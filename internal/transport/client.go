// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Grain selects how a reply body is cut into fragments.
type Grain int

const (
	// GrainChunk yields one fragment per body read.
	GrainChunk Grain = iota
	// GrainRune yields one fragment per character.
	GrainRune
)

// String returns the config spelling of the grain.
func (g Grain) String() string {
	if g == GrainRune {
		return "rune"
	}
	return "chunk"
}

// ParseGrain parses "chunk" or "rune". Empty means chunk.
func ParseGrain(s string) (Grain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chunk":
		return GrainChunk, nil
	case "rune", "char", "character":
		return GrainRune, nil
	default:
		return GrainChunk, fmt.Errorf("unknown fragment grain %q (want chunk or rune)", s)
	}
}

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// ConnectTimeout bounds the wait for response headers (default: 30s).
	// The body itself may stream for as long as the server keeps writing.
	ConnectTimeout time.Duration

	// Grain is the fragment granularity (default: GrainChunk)
	Grain Grain

	// ReadBufferSize is the size of each body read (default: 4096)
	ReadBufferSize int

	// UserAgent sent with every request
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ConnectTimeout: 30 * time.Second,
		Grain:          GrainChunk,
		ReadBufferSize: 4096,
		UserAgent:      "parley",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Request describes one send.
type Request struct {
	BaseURL string
	Path    string
	Text    string
}

// URL joins the base URL and path. A trailing slash on the base is dropped.
func (r Request) URL() string {
	return strings.TrimSuffix(r.BaseURL, "/") + r.Path
}

// FragmentStream is a lazy, single-pass sequence of reply fragments.
//
// Next returns io.EOF when the server finishes the reply. Any other error is
// terminal and is returned again by every later call.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// Client opens streaming chat requests.
//
// The Client is safe for concurrent use. It never retries.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 4096
	}
	if config.UserAgent == "" {
		config.UserAgent = "parley"
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = config.ConnectTimeout

	return &Client{
		config: config,
		// No client timeout: replies stream for as long as they take and
		// cancellation goes through the request context.
		httpClient: &http.Client{Transport: tr},
		logger:     zerolog.Nop(),
	}
}

// WithLogger sets the logger used for request events.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig {
	return c.config
}

// =============================================================================
// OPEN
// =============================================================================

// Open posts req.Text and returns the reply as a fragment stream.
//
// A non-2xx status drains the body before returning a KindBadStatus error.
// The returned stream must be closed by the caller.
func (c *Client) Open(ctx context.Context, req Request) (FragmentStream, error) {
	url := req.URL()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(req.Text))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "text/plain; charset=utf-8")
	httpReq.Header.Set("Accept", "text/plain")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Str("url", url).Err(err).Msg("request failed")
		return nil, classifyRequestError(ctx, err)
	}

	if resp.Body == nil {
		return nil, &Error{Kind: KindInvalidResponse, Message: "response has no body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			c.logger.Debug().Str("url", url).Err(readErr).Msg("error body truncated")
		}
		c.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("bad status")
		return nil, &Error{
			Kind:       KindBadStatus,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    "bad response",
		}
	}

	if err := checkContentType(resp.Header.Get("Content-Type")); err != nil {
		drainAndClose(resp.Body)
		return nil, err
	}

	c.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("handshake", time.Since(start)).
		Msg("stream opened")

	return newStream(ctx, resp.Body, c.config.Grain, c.config.ReadBufferSize, start), nil
}

// checkContentType accepts a missing header or any text type declared as
// UTF-8 (or its ASCII subset).
func checkContentType(header string) error {
	if header == "" {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return &Error{Kind: KindInvalidResponse, Message: "unparseable content type " + header, Cause: err}
	}
	if charset, ok := params["charset"]; ok {
		switch strings.ToLower(charset) {
		case "utf-8", "utf8", "us-ascii", "ascii":
		default:
			return &Error{Kind: KindInvalidResponse, Message: "unsupported charset " + charset + " for " + mediaType}
		}
	}
	return nil
}

// classifyRequestError maps a Do or Read failure onto a Kind.
func classifyRequestError(ctx context.Context, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Message: "request canceled", Cause: err}
	}
	return &Error{Kind: KindNetwork, Message: "request failed", Cause: err}
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
