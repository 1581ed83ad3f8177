// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"time"

	"code.hybscloud.com/atomix"
)

// TickClock is the default [Clock].
//
// A tick is a whole number of milliseconds: 1000/ticksPerSecond, truncated.
// Rate reports the rate that tick length actually yields, which differs
// from the requested one when 1000 is not a multiple of it.
type TickClock struct {
	start  time.Time
	tick   time.Duration
	offset atomix.Int64
}

// NewTickClock returns a clock running at ticksPerSecond, clamped to
// [1, 1000].
func NewTickClock(ticksPerSecond int) *TickClock {
	ticksPerSecond = min(max(ticksPerSecond, 1), 1000)
	ms := 1000 / ticksPerSecond
	return &TickClock{
		start: time.Now(),
		tick:  time.Duration(ms) * time.Millisecond,
	}
}

func (c *TickClock) elapsed() int64 {
	return int64(time.Since(c.start) / c.tick)
}

// Ticks returns the current tick count.
func (c *TickClock) Ticks() uint64 {
	return uint64(c.elapsed() + c.offset.Load())
}

// SetTicks makes the current tick count n. It does not affect pending
// deadlines.
func (c *TickClock) SetTicks(n uint64) {
	c.offset.Store(int64(n) - c.elapsed())
}

// TickDuration returns the length of one tick.
func (c *TickClock) TickDuration() time.Duration { return c.tick }

// Rate returns the effective ticks per second.
func (c *TickClock) Rate() int {
	return int(time.Second / c.tick)
}

// Duration converts ticks to wall time. Non-positive ticks yield zero.
func Duration(clk Clock, t Ticks) time.Duration {
	if t <= 0 {
		return 0
	}
	return time.Duration(t) * clk.TickDuration()
}
