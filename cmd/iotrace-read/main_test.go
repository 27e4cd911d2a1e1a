// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/iotrace/internal/records"
	"github.com/platformbuilds/iotrace/internal/streamhttp"
	"github.com/platformbuilds/iotrace/internal/tracelog"
)

func serveLog(t *testing.T, pids ...uint32) string {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := tracelog.New(tracelog.Config{Name: "write_trace", EntrySize: records.WriteRecordSize, Capacity: 8}, quiet)
	require.NoError(t, err)
	logs := tracelog.NewRegistry()
	require.NoError(t, logs.Register(l))

	buf := make([]byte, records.WriteRecordSize)
	for i, pid := range pids {
		r := records.WriteRecord{PID: pid, Major: 8, Minor: 1, Inode: uint64(i + 1), Count: 512}
		require.NoError(t, r.MarshalTo(buf))
		require.NoError(t, l.Push(buf))
	}

	mux := http.NewServeMux()
	streamhttp.New(streamhttp.Config{PollInterval: 10 * time.Millisecond}, logs,
		map[string]records.Schema{"write_trace": records.SchemaWrite}, quiet, nil).Install(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRun_PrintsRecords(t *testing.T) {
	addr := serveLog(t, 10, 11)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-addr", addr, "-once", "write_trace"}, &out, &bytes.Buffer{}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "PID: 10 major: 8 minor: 1 inode: 1"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "PID: 11 "), lines[1])
}

func TestRun_CommColumn(t *testing.T) {
	proc := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(proc, "10"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proc, "10", "comm"), []byte("postgres\n"), 0o644))

	addr := serveLog(t, 10, 99)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-addr", addr, "-once", "-comm", "-proc", proc, "write_trace"}, &out, &bytes.Buffer{}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "postgres "), lines[0])
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[1]), "PID: 99"), lines[1])
}

func TestRun_List(t *testing.T) {
	addr := serveLog(t, 1, 2, 3)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-addr", addr, "-list"}, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "write_trace")
	assert.Contains(t, out.String(), "write_syscall")
}

func TestRun_Errors(t *testing.T) {
	addr := serveLog(t)
	assert.Error(t, run(context.Background(), []string{"-addr", addr}, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.ErrorContains(t, run(context.Background(), []string{"-addr", addr, "missing"}, &bytes.Buffer{}, &bytes.Buffer{}), "404")
}
