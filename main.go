// parley - A streaming chat client for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/parley/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		cli.HandleErrorAndExit(err, args.JSON)
	}
	cli.ApplyConfigDir(args)

	cli.HandleErrorAndExit(run(cmd, args), args.JSON)
}

func run(cmd cli.Command, args cli.Args) error {
	// SIGTERM always ends the process. Interrupt is left to the commands
	// that use it to cancel a reply instead of exiting.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdTUI:
		return withRuntime(args, func(rt *cli.Runtime) error {
			return cli.HandleTUI(ctx, rt, args)
		})
	case cli.CmdChat:
		return withRuntime(args, func(rt *cli.Runtime) error {
			return cli.HandleChat(ctx, rt, args)
		})
	case cli.CmdAsk:
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		var in io.Reader
		if !cli.IsTTY() {
			in = os.Stdin
		}
		return withRuntime(args, func(rt *cli.Runtime) error {
			return cli.HandleAsk(ctx, rt, args, in, os.Stdout)
		})
	case cli.CmdConfig:
		return cli.HandleConfig(args, os.Stdout)
	case cli.CmdSettings:
		return cli.HandleSettings(args, os.Stdout)
	case cli.CmdModels:
		return cli.HandleModels(args, os.Stdout)
	case cli.CmdStub:
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return cli.HandleStub(ctx, args, os.Stdout)
	case cli.CmdVersion:
		return cli.HandleVersion(args, os.Stdout)
	default:
		return cli.HandleHelp(os.Stdout)
	}
}

// withRuntime builds the shared runtime, runs fn and tears it down.
func withRuntime(args cli.Args, fn func(rt *cli.Runtime) error) error {
	rt, err := cli.NewRuntime(args)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	if err := rt.Close(); err != nil && args.Verbose {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	return runErr
}
