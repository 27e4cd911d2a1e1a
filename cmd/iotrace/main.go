// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Command iotrace runs the I/O trace agent: it feeds trace logs from the
// configured sources and serves them as HTTP byte streams.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/platformbuilds/iotrace/internal/agent"
	"github.com/platformbuilds/iotrace/internal/config"
	"github.com/platformbuilds/iotrace/internal/logging"
	"github.com/platformbuilds/iotrace/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "iotrace: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("iotrace", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "/etc/iotrace/config.yaml", "path to config yaml")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.Info("iotrace"))
		return nil
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	logger.Info("iotrace starting", "version", version.Version(), "config", *cfgPath, "tracers", len(cfg.Tracers))

	a, err := agent.New(cfg, *cfgPath, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
