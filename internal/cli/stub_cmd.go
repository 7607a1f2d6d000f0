// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stub_cmd.go - The "stub" command: a local backend for development.
//
// Examples:
//   parley stub                          Listen on stub.addr from config
//   parley stub --addr :9090 --cps 0     Unpaced replies on port 9090
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/stub"
)

// HandleStub runs the stub backend until ctx is canceled.
func HandleStub(ctx context.Context, args Args, w io.Writer) error {
	cfg := config.Global().Clone()
	p := NewArgParser(args.Raw)

	if addr := p.Flag("addr", "a"); addr != "" {
		cfg.Stub.Addr = addr
	}
	if cps := p.Flag("cps"); cps != "" {
		n, err := strconv.Atoi(cps)
		if err != nil || n < 0 {
			return &ValidationError{Field: "--cps", Value: cps, Reason: "must be a non-negative integer", Example: "parley stub --cps 40"}
		}
		cfg.Stub.CharsPerSec = n
	}
	if prefix := p.Flag("prefix"); prefix != "" {
		cfg.Stub.ReplyPrefix = prefix
	}

	// The stub runs in the foreground, so it logs to the console.
	cfg.Log.Path = logging.Stderr
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, closer, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	srv := stub.New(cfg.Stub, catalog, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Stub.Addr) }()

	if !args.Quiet {
		fmt.Fprintf(w, "%s stub backend on %s (%d models, %d chars/sec)\n",
			SuccessStyle.Render("[OK]"), cfg.Stub.Addr, len(catalog.All()), cfg.Stub.CharsPerSec)
		fmt.Fprintln(w, DimStyle.Render("Send !error or !cut to exercise failures. Ctrl+C stops."))
	}

	select {
	case err := <-errCh:
		if err != nil {
			return NewCommandError("stub", "start", "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
