// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package procname

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProc(t *testing.T, comms map[int]string) string {
	t.Helper()
	root := t.TempDir()
	for pid, comm := range comms {
		dir := filepath.Join(root, strconv.Itoa(pid))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644))
	}
	return root
}

func TestResolver_Name(t *testing.T) {
	root := fakeProc(t, map[int]string{42: "fio", 100: "postgres"})
	r, err := New(Config{ProcPath: root})
	require.NoError(t, err)

	assert.Equal(t, "fio", r.Name(42))
	assert.Equal(t, "postgres", r.Name(100))
	assert.Equal(t, "", r.Name(7))
	assert.Equal(t, 3, r.Len())
}

func TestResolver_CachesUntilExpiry(t *testing.T) {
	root := fakeProc(t, map[int]string{42: "fio"})
	r, err := New(Config{ProcPath: root, CacheTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	require.Equal(t, "fio", r.Name(42))
	require.NoError(t, os.WriteFile(filepath.Join(root, "42", "comm"), []byte("dd\n"), 0o644))
	assert.Equal(t, "fio", r.Name(42))

	assert.Eventually(t, func() bool { return r.Name(42) == "dd" }, 2*time.Second, 10*time.Millisecond)
}

func TestNew_MissingProcPath(t *testing.T) {
	_, err := New(Config{ProcPath: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}
