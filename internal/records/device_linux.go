// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DeviceOf returns the major and minor numbers of the block device at
// path, or of the device holding path when it is not a device node.
func DeviceOf(path string) (major, minor uint32, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	dev := st.Dev
	if st.Mode&unix.S_IFMT == unix.S_IFBLK {
		dev = st.Rdev
	}
	return unix.Major(uint64(dev)), unix.Minor(uint64(dev)), nil
}
