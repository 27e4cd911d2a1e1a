// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"fmt"
	"sync/atomic"
)

// DeviceFilter selects the block device a tracer records. A zero Major
// accepts any real device (major > 0), which is how the unfiltered read
// probes behaved.
type DeviceFilter struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
}

// Match reports whether major:minor passes the filter.
func (f DeviceFilter) Match(major, minor uint32) bool {
	if f.Major == 0 {
		return major > 0
	}
	return major == f.Major && minor == f.Minor
}

func (f DeviceFilter) String() string {
	if f.Major == 0 {
		return "any"
	}
	return fmt.Sprintf("%d:%d", f.Major, f.Minor)
}

// Matcher holds a DeviceFilter that can be replaced while producers are
// consulting it.
type Matcher struct {
	f atomic.Pointer[DeviceFilter]
}

// NewMatcher returns a matcher starting with f.
func NewMatcher(f DeviceFilter) *Matcher {
	m := &Matcher{}
	m.Set(f)
	return m
}

// Set replaces the filter.
func (m *Matcher) Set(f DeviceFilter) { m.f.Store(&f) }

// Get returns the current filter.
func (m *Matcher) Get() DeviceFilter { return *m.f.Load() }

// Match applies the current filter.
func (m *Matcher) Match(major, minor uint32) bool {
	return m.f.Load().Match(major, minor)
}
