// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import "sync/atomic"

// Clients counts attached consumers. Producers consult HasClients before
// building a record, so the check is a single atomic load.
type Clients struct {
	n atomic.Int64
}

// Attach registers a consumer and returns the new count.
func (c *Clients) Attach() int {
	return int(c.n.Add(1))
}

// Detach unregisters a consumer and returns the new count. Detaching with
// no consumer attached returns ErrNotAttached and leaves the count at 0.
func (c *Clients) Detach() (int, error) {
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return 0, ErrNotAttached
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			return int(cur - 1), nil
		}
	}
}

// HasClients reports whether at least one consumer is attached.
func (c *Clients) HasClients() bool { return c.n.Load() > 0 }

// Count returns the number of attached consumers.
func (c *Clients) Count() int { return int(c.n.Load()) }
