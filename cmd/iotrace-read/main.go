// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Command iotrace-read follows a trace stream served by the iotrace agent
// and prints one line per record.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/platformbuilds/iotrace/internal/procname"
	"github.com/platformbuilds/iotrace/internal/records"
	"github.com/platformbuilds/iotrace/internal/streamhttp"
	"github.com/platformbuilds/iotrace/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "iotrace-read: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("iotrace-read", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "http://localhost:19090", "agent address")
	list := fs.Bool("list", false, "list streams and exit")
	maxRecords := fs.Int("max", 100, "records per read")
	limit := fs.Int("limit", 0, "stop after this many records (0 = unlimited)")
	once := fs.Bool("once", false, "drain what is available and exit")
	comm := fs.Bool("comm", false, "print the process name of each record's pid")
	procPath := fs.String("proc", procname.DefaultProcPath, "procfs mount point used by -comm")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: iotrace-read [flags] <stream>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.Info("iotrace-read"))
		return nil
	}

	cli := streamhttp.NewClient(*addr, nil)
	if *list {
		return printStreams(ctx, cli, stdout)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one stream name is required")
	}

	var names *procname.Resolver
	if *comm {
		r, err := procname.New(procname.Config{ProcPath: *procPath})
		if err != nil {
			return fmt.Errorf("procfs: %w", err)
		}
		names = r
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()
	opts := streamhttp.FollowOptions{MaxRecords: *maxRecords, Limit: *limit, Once: *once}
	return cli.Follow(ctx, fs.Arg(0), opts, func(r records.Record) error {
		if names != nil {
			fmt.Fprintf(w, "%-16s ", names.Name(recordPID(r)))
		}
		fmt.Fprintln(w, r.String())
		// Flush per record so piped output keeps up with the stream.
		return w.Flush()
	})
}

func printStreams(ctx context.Context, cli *streamhttp.Client, stdout io.Writer) error {
	streams, err := cli.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCHEMA\tENTRY\tCAPACITY\tAVAILABLE\tOVERRUNS\tCLIENTS")
	for _, s := range streams {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Name, s.Schema, s.EntrySize, s.Capacity, s.Available, s.Overruns, s.Clients)
	}
	return tw.Flush()
}

func recordPID(r records.Record) uint32 {
	switch r := r.(type) {
	case *records.FileRecord:
		return r.PID
	case *records.PostCacheRecord:
		return r.PID
	case *records.ProbeRecord:
		return r.PID
	case *records.WriteRecord:
		return r.PID
	}
	return 0
}
