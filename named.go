// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Facility is a named message queue namespace shared between processes.
type Facility interface {
	// Open creates or attaches to name.
	Open(name string, flags OpenFlag, perm os.FileMode, capacity, slotSize int) (Backing, error)

	// Unlink removes name. Open backings stay usable until closed.
	Unlink(name string) error
}

// Backing is one open reference to a named queue.
//
// A zero deadline blocks without limit. A deadline already in the past
// polls once. Implementations report expiry as [ErrTimeout] and a full or
// empty queue under polling as [ErrUnavailable]; any other error is a
// facility error.
type Backing interface {
	Send(ctx context.Context, msg []byte, prio uint, deadline time.Time) error
	Receive(ctx context.Context, buf []byte, deadline time.Time) (int, error)
	Depth() (int, error)
	Close() error
}

// namedQueue binds a handle to a Backing.
type namedQueue struct {
	name     string
	capacity int
	slotSize int
	backing  Backing

	mu     sync.Mutex
	closed bool
	lastOp Priority
	events eventSlot
}

// nativePriority maps a send priority to the facility's priority value.
func nativePriority(pri Priority) uint {
	if pri == Urgent {
		return 1
	}
	return 0
}

// backingDeadline maps a call to a facility deadline: NoWait polls, Forever
// passes the zero time.
func backingDeadline(c *call) time.Time {
	if c.noWait {
		return time.Now()
	}
	return c.deadline
}

// result folds facility timeouts into the caller's wait mode.
func (c *call) result(err error) error {
	if c.noWait && errors.Is(err, ErrTimeout) {
		return ErrUnavailable
	}
	return err
}

func (q *namedQueue) live() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed
}

func (q *namedQueue) send(ctx context.Context, c *call, msg []byte, pri Priority) (eventNote, bool, error) {
	if !q.live() {
		return eventNote{}, false, ErrInvalidID
	}
	if len(msg) > q.slotSize {
		return eventNote{}, false, ErrInvalidLength
	}
	if err := q.backing.Send(ctx, msg, nativePriority(pri), backingDeadline(c)); err != nil {
		return eventNote{}, false, c.result(err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastOp = pri
	note, ok := q.events.fire()
	return note, ok, nil
}

func (q *namedQueue) receive(ctx context.Context, c *call, buf []byte) (int, error) {
	if !q.live() {
		return 0, ErrInvalidID
	}
	if len(buf) < q.slotSize {
		return 0, ErrInvalidLength
	}
	n, err := q.backing.Receive(ctx, buf, backingDeadline(c))
	if err != nil {
		return 0, c.result(err)
	}
	return n, nil
}

func (q *namedQueue) depth() (int, error) {
	if !q.live() {
		return 0, ErrInvalidID
	}
	return q.backing.Depth()
}

func (q *namedQueue) eventStart(self TaskID, mask uint32, opts EventOption) (eventNote, bool, error) {
	var nonEmpty bool
	if opts&SendIfNotEmpty != 0 {
		n, err := q.depth()
		if err != nil {
			return eventNote{}, false, err
		}
		nonEmpty = n > 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return eventNote{}, false, ErrInvalidID
	}
	return q.events.start(self, mask, opts, nonEmpty)
}

func (q *namedQueue) eventStop(self TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrInvalidID
	}
	return q.events.stop(self)
}

// close detaches from the backing. The record is dead afterwards even if
// the backing reports an error.
func (q *namedQueue) close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrInvalidID
	}
	q.closed = true
	q.events.clear()
	q.mu.Unlock()
	return q.backing.Close()
}

func (q *namedQueue) stat(st *QueueStats) error {
	q.mu.Lock()
	closed, lastOp := q.closed, q.lastOp
	q.mu.Unlock()
	if closed {
		return ErrInvalidID
	}
	st.Mode = Named
	st.Name = q.name
	st.Capacity = q.capacity
	st.SlotSize = q.slotSize
	st.LastOp = lastOp
	n, err := q.backing.Depth()
	if err != nil {
		return err
	}
	st.Depth = n
	return nil
}
