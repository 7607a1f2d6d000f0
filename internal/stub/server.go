// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
)

// Magic inputs.
const (
	InputError = "!error"
	InputCut   = "!cut"
)

// maxBodyBytes caps the request body.
const maxBodyBytes = 64 * 1024

// =============================================================================
// SERVER
// =============================================================================

// Server is the stub chat backend.
type Server struct {
	echo    *echo.Echo
	catalog *model.Catalog
	cfg     config.StubConfig
	logger  zerolog.Logger

	mu            sync.Mutex
	conversations map[string][]string // model ID -> user messages
}

// New creates a stub server serving every model in catalog.
func New(cfg config.StubConfig, catalog *model.Catalog, logger zerolog.Logger) *Server {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}

	s := &Server{
		echo:          echo.New(),
		catalog:       catalog,
		cfg:           cfg,
		logger:        logger.With().Str("component", "stub").Logger(),
		conversations: make(map[string][]string),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info().
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())

	s.RegisterRoutes(s.echo)
	return s
}

// RegisterRoutes registers the chat endpoints and the model listing.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	for _, m := range s.catalog.All() {
		e.POST(m.ChatPath, s.Chat(m, model.EndpointFresh))
		e.POST(m.ContinuePath, s.Chat(m, model.EndpointContinue))
	}
	e.GET("/models", s.ListModels)
}

// Handler returns the HTTP handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr (the configured address when empty) and blocks
// until Shutdown.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.cfg.Addr
	}
	s.logger.Info().Str("addr", addr).Int("models", len(s.catalog.All())).Msg("stub backend listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Conversation returns the user messages of a model's current conversation.
func (s *Server) Conversation(modelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.conversations[modelID]...)
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListModels returns the served catalog.
// GET /models
func (s *Server) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.catalog.All())
}

// Chat returns the handler for one model endpoint.
// POST /chat, /chat-continue, ...
func (s *Server) Chat(m model.ChatModel, endpoint model.Endpoint) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
		if err != nil {
			return c.String(http.StatusBadRequest, "could not read body")
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return c.String(http.StatusBadRequest, "empty message")
		}
		if text == InputError {
			return c.String(http.StatusInternalServerError,
				fmt.Sprintf("stub failure requested for model %s (%s)", m.ID, endpoint))
		}

		reply := s.record(m.ID, endpoint, text)

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
		res.Header().Set("Cache-Control", "no-cache")
		res.WriteHeader(http.StatusOK)

		if text == InputCut {
			half := []rune(reply)[:len([]rune(reply))/2]
			if _, err := io.WriteString(res, string(half)); err != nil {
				return err
			}
			res.Flush()
			panic(http.ErrAbortHandler)
		}

		return s.stream(c.Request().Context(), res, reply)
	}
}

// record updates the model's conversation and builds the reply.
func (s *Server) record(modelID string, endpoint model.Endpoint, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if endpoint == model.EndpointFresh {
		s.conversations[modelID] = nil
	}
	s.conversations[modelID] = append(s.conversations[modelID], text)
	n := len(s.conversations[modelID])

	return fmt.Sprintf("%s%s. This is message %d of this conversation.", s.cfg.ReplyPrefix, text, n)
}

// stream writes reply one character at a time, paced by CharsPerSec.
func (s *Server) stream(ctx context.Context, res *echo.Response, reply string) error {
	if s.cfg.CharsPerSec <= 0 {
		_, err := io.WriteString(res, reply)
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.CharsPerSec), 1)
	start := time.Now()
	for _, r := range reply {
		if err := limiter.Wait(ctx); err != nil {
			s.logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("client went away")
			return nil
		}
		if _, err := io.WriteString(res, string(r)); err != nil {
			return nil
		}
		res.Flush()
	}
	return nil
}
