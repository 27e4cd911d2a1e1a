// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemVerOrUnknown(t *testing.T) {
	v := Version()
	if v == "unknown" {
		return
	}
	semver := regexp.MustCompile(`^v\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)
	assert.Regexp(t, semver, v)
}

func TestCommit_SHADevOrUnknown(t *testing.T) {
	c := Commit()
	if c == "unknown" || c == "dev" {
		return
	}
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{7,40}$`), c)
}

func TestBuildDate_RFC3339UTCOrUnknown(t *testing.T) {
	bd := BuildDate()
	if bd == "unknown" {
		return
	}
	tm, err := time.Parse(time.RFC3339, bd)
	require.NoError(t, err, "build date must be RFC3339, e.g. 2025-08-15T14:32:05Z")
	assert.True(t, strings.HasSuffix(bd, "Z"), "build date must be UTC")
	assert.False(t, tm.After(time.Now().UTC().Add(24*time.Hour)), "build date in the future")
}

func TestInfo(t *testing.T) {
	s := Info("iotrace")
	assert.True(t, strings.HasPrefix(s, "iotrace "+Version()+" "))
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, s, Commit())
}
