// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package records

import "errors"

// DeviceOf is only supported on Linux.
func DeviceOf(string) (uint32, uint32, error) {
	return 0, 0, errors.New("records: device lookup is only supported on linux")
}
