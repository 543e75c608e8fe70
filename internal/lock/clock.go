// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
)

// DefaultClockSyncInterval is how often a Clock re-reads the backend time.
const DefaultClockSyncInterval = time.Minute

// TimeSource reads the current time from the server that stores the locks.
type TimeSource func(ctx context.Context) (time.Time, error)

// Clock follows the lock backend's time as an offset from the local clock.
// Every instance compares expires_at on the backend's time base, so skew
// between application hosts cannot decide who owns a lock.
type Clock struct {
	source TimeSource
	local  func() time.Time
	offset atomic.Int64
}

// NewClock creates a Clock reading from source. Until the first Sync it
// reports local time.
func NewClock(source TimeSource) *Clock {
	return &Clock{source: source, local: time.Now}
}

// Now returns the local time corrected by the last measured offset.
func (c *Clock) Now() time.Time {
	return c.local().Add(c.Offset())
}

// Offset returns how far the backend clock is ahead of the local one.
func (c *Clock) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

// Sync samples the backend and stores the new offset, taking the local
// midpoint of the round trip as the instant the sample was read.
func (c *Clock) Sync(ctx context.Context) error {
	before := c.local()
	remote, err := c.source(ctx)
	if err != nil {
		return fmt.Errorf("sync lock clock: %w", err)
	}
	after := c.local()

	mid := before.Add(after.Sub(before) / 2)
	offset := remote.Sub(mid)
	if prev := c.Offset(); prev != offset {
		slog.Debug("lock clock offset", "offset", offset.String(), "rtt", after.Sub(before).String())
	}
	c.offset.Store(int64(offset))
	return nil
}

// Run re-syncs every interval until ctx is cancelled. Failures keep the
// previous offset and are retried with backoff.
func (c *Clock) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultClockSyncInterval
	}

	boff := backoff.Backoff{
		Min: 5 * time.Second,
		Max: interval,
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		next := interval
		if err := c.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			next = boff.Duration()
			slog.Warn("lock clock sync failed", "error", err, "retry_in", next.String())
		} else {
			boff.Reset()
		}
		timer.Reset(next)
	}
}
