// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package version holds build metadata stamped in with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

var (
	version   = "unknown"
	commit    = "unknown"
	buildDate = "unknown"
)

func Version() string   { return version }
func Commit() string    { return commit }
func BuildDate() string { return buildDate }

// Info formats the build metadata for program as printed by -version.
func Info(program string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s/%s)",
		program, version, commit, buildDate, runtime.GOOS, runtime.GOARCH)
}
