// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package records

// Kernel-internal dev_t layout, as found in super_block.s_dev.
const (
	kdevMinorBits = 20
	kdevMinorMask = 1<<kdevMinorBits - 1
)

// SplitKernelDev splits a kernel-internal device number into major and
// minor numbers.
func SplitKernelDev(dev uint32) (major, minor uint32) {
	return dev >> kdevMinorBits, dev & kdevMinorMask
}

// MakeKernelDev is the inverse of SplitKernelDev.
func MakeKernelDev(major, minor uint32) uint32 {
	return major<<kdevMinorBits | minor&kdevMinorMask
}
