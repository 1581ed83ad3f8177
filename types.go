// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"fmt"
	"time"
)

// Handle is an opaque queue identifier.
//
// The low 32 bits address a registry slot, the high 32 bits carry the slot
// generation, so a handle to a deleted queue never resolves to a queue that
// later reuses the same slot. The zero Handle is never valid.
type Handle uint64

func (h Handle) index() uint32      { return uint32(h) - 1 }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) String() string {
	return fmt.Sprintf("msgq#%d.%d", uint32(h), h.generation())
}

// Ticks is a wait argument expressed in clock ticks.
type Ticks int32

const (
	// NoWait returns immediately when the operation cannot be satisfied now.
	NoWait Ticks = 0

	// Forever blocks with no deadline. Any negative value behaves the same.
	Forever Ticks = -1
)

// Priority selects the insertion end for a sent message.
type Priority uint8

const (
	// Normal appends the message at the tail.
	Normal Priority = iota

	// Urgent inserts the message at the head, ahead of all queued messages.
	// Urgent messages are LIFO among themselves.
	Urgent
)

func (p Priority) String() string {
	if p == Urgent {
		return "urgent"
	}
	return "normal"
}

// Order governs how blocked tasks are resolved on both sides of a queue.
type Order uint8

const (
	// Fifo resolves waiters in arrival order.
	Fifo Order = iota

	// PriorityOrder resolves the highest-priority waiter first, then by
	// arrival. Lower numeric task priority means higher priority.
	PriorityOrder
)

func (o Order) String() string {
	if o == PriorityOrder {
		return "priority"
	}
	return "fifo"
}

// Mode tells whether a queue lives in-process or in a named facility.
type Mode uint8

const (
	Local Mode = iota
	Named
)

func (m Mode) String() string {
	if m == Named {
		return "named"
	}
	return "local"
}

// EventOption is a bitset of event registration options.
type EventOption uint8

const (
	// SendOnce delivers a single event, then drops the registration.
	SendOnce EventOption = 0x1

	// AllowOverwrite lets a task replace another task's registration.
	AllowOverwrite EventOption = 0x2

	// SendIfNotEmpty delivers once at registration when messages are queued.
	SendIfNotEmpty EventOption = 0x4
)

// OpenFlag selects how Open resolves a name.
type OpenFlag uint8

const (
	// Create makes the queue if the name does not exist.
	Create OpenFlag = 1 << iota

	// Exclusive, together with Create, fails if the name exists.
	Exclusive
)

// ClosePolicy decides what happens to a named queue on its last close.
type ClosePolicy uint8

const (
	KeepOnLastClose ClosePolicy = iota
	DeleteOnLastClose
)

// TaskID identifies a task. Negative ids are anonymous callers.
type TaskID int32

// DefaultTaskPriority is reported for tasks unknown to the task table.
const DefaultTaskPriority = 100

// Tasks resolves task metadata by id.
//
// Wait sets keep only ids; priority is looked up here at insertion.
type Tasks interface {
	// Priority returns the task priority. Lower values are more urgent.
	Priority(id TaskID) int
}

// Clock is the tick source.
type Clock interface {
	// Ticks returns the monotonic tick count.
	Ticks() uint64

	// TickDuration returns the real-time length of one tick.
	TickDuration() time.Duration
}

// EventSender delivers an event mask to a task.
//
// It is called from the kernel's dispatcher goroutine, never with a queue
// lock held. Returning [iox.ErrWouldBlock] asks for a retry with backoff.
type EventSender interface {
	SendEvents(task TaskID, events uint32) error
}

// EventSenderFunc adapts a function to [EventSender].
type EventSenderFunc func(task TaskID, events uint32) error

// SendEvents calls f(task, events).
func (f EventSenderFunc) SendEvents(task TaskID, events uint32) error {
	return f(task, events)
}

// QueueStats is a point-in-time snapshot of one queue.
type QueueStats struct {
	Handle         Handle
	Mode           Mode
	Name           string
	Capacity       int
	SlotSize       int
	Depth          int
	Order          Order
	ReadersWaiting int
	WritersWaiting int
	LastOp         Priority
}

// Counters are kernel-wide operation outcome totals.
type Counters struct {
	Sends       uint64
	Receives    uint64
	Timeouts    uint64
	Unavailable uint64
	Deleted     uint64

	EventsDelivered uint64
	EventsFailed    uint64
}
