// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"sync"
	"time"
)

// call carries the per-call parameters of a blocking operation.
type call struct {
	task     TaskID
	prio     int
	noWait   bool
	deadline time.Time // zero means no deadline
}

func (c *call) expired() bool {
	return !c.deadline.IsZero() && !time.Now().Before(c.deadline)
}

// signal is a broadcast-only wake condition guarded by the queue lock.
// Waiters take the current channel; broadcast closes it.
type signal struct {
	ch chan struct{}
}

func (s *signal) wait() <-chan struct{} {
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

func (s *signal) broadcast() {
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
}

// localQueue is an in-process message queue.
//
// One mutex guards everything. Blocked callers park on msgAvail or
// spaceAvail with the lock released; a deleter parks on allClear until both
// wait sets are empty.
type localQueue struct {
	mu sync.Mutex

	capacity int
	slotSize int
	order    Order
	tick     time.Duration

	ring    ring
	readers waitSet
	writers waitSet
	killed  bool
	lastOp  Priority
	events  eventSlot

	msgAvail   signal
	spaceAvail signal
	allClear   signal
}

func newLocalQueue(capacity, slotSize int, order Order, tick time.Duration) *localQueue {
	return &localQueue{
		capacity: capacity,
		slotSize: slotSize,
		order:    order,
		tick:     tick,
		ring:     newRing(capacity, slotSize),
		readers:  waitSet{order: order},
		writers:  waitSet{order: order},
	}
}

// room reports whether a message of priority pri fits now. Normal traffic
// stops at capacity; urgent traffic may take the reserved slot.
func (q *localQueue) room(pri Priority) bool {
	if pri == Urgent {
		return q.ring.len() < q.capacity+1
	}
	return q.ring.len() < q.capacity
}

func (q *localQueue) put(msg []byte, pri Priority) {
	if pri == Urgent {
		q.ring.pushFront(msg)
	} else {
		q.ring.pushBack(msg)
	}
	q.lastOp = pri
	q.msgAvail.broadcast()
}

// park releases the lock until ch fires, the deadline passes or ctx is
// done. The lock is held again on return.
func (q *localQueue) park(ctx context.Context, ch <-chan struct{}, deadline time.Time) error {
	q.mu.Unlock()
	defer q.mu.Lock()

	var expire <-chan time.Time
	if !deadline.IsZero() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-ch:
	case <-expire:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// yield gives the entitled waiter one tick to make progress. It sleeps at
// most until the deadline and returns early on a wake from ch.
func (q *localQueue) yield(ctx context.Context, ch <-chan struct{}, deadline time.Time) error {
	d := q.tick
	if !deadline.IsZero() {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d <= 0 {
		return nil
	}
	return q.park(ctx, ch, time.Now().Add(d))
}

// detach unlinks w from set on any exit path and opens the deletion
// barrier when the last waiter of a killed queue leaves.
func (q *localQueue) detach(set *waitSet, w *waiter) {
	set.remove(w)
	if q.killed && q.readers.empty() && q.writers.empty() {
		q.allClear.broadcast()
	}
}

// send delivers msg. On success it returns the event note to post, if any.
func (q *localQueue) send(ctx context.Context, c *call, msg []byte, pri Priority) (eventNote, bool, error) {
	if len(msg) > q.slotSize {
		return eventNote{}, false, ErrInvalidLength
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.killed {
		return eventNote{}, false, ErrInvalidID
	}
	if q.capacity == 0 {
		return q.rendezvousSend(ctx, c, msg)
	}
	if q.room(pri) {
		q.put(msg, pri)
		note, ok := q.events.fire()
		return note, ok, nil
	}
	if c.noWait {
		return eventNote{}, false, ErrUnavailable
	}

	w := &waiter{task: c.task, prio: c.prio, pri: pri}
	q.writers.insert(w)
	defer q.detach(&q.writers, w)

	eligible := func(e *waiter) bool { return q.room(e.pri) }
	for {
		if q.killed {
			return eventNote{}, false, ErrDeleted
		}
		avail := q.room(pri)
		if avail && q.writers.resolveFor(w, eligible) {
			q.put(msg, pri)
			note, ok := q.events.fire()
			return note, ok, nil
		}
		if c.expired() {
			return eventNote{}, false, ErrTimeout
		}
		var err error
		if avail {
			err = q.yield(ctx, q.spaceAvail.wait(), c.deadline)
		} else {
			err = q.park(ctx, q.spaceAvail.wait(), c.deadline)
		}
		if err != nil {
			return eventNote{}, false, err
		}
	}
}

// rendezvousSend hands msg to a blocked reader, or blocks until one takes
// it. Urgent and normal sends behave the same here.
func (q *localQueue) rendezvousSend(ctx context.Context, c *call, msg []byte) (eventNote, bool, error) {
	if r := q.readers.head(nil); r != nil {
		r.n = copy(r.buf, msg)
		r.done = true
		q.readers.remove(r)
		q.lastOp = Normal
		q.msgAvail.broadcast()
		note, ok := q.events.fire()
		return note, ok, nil
	}
	if c.noWait {
		return eventNote{}, false, ErrUnavailable
	}

	w := &waiter{task: c.task, prio: c.prio, msg: msg}
	q.writers.insert(w)
	defer q.detach(&q.writers, w)

	for {
		if w.done {
			note, ok := q.events.fire()
			return note, ok, nil
		}
		if q.killed {
			return eventNote{}, false, ErrDeleted
		}
		if c.expired() {
			return eventNote{}, false, ErrTimeout
		}
		if err := q.park(ctx, q.spaceAvail.wait(), c.deadline); err != nil && !w.done {
			return eventNote{}, false, err
		}
	}
}

// receive copies the next message into buf and returns its length.
func (q *localQueue) receive(ctx context.Context, c *call, buf []byte) (int, error) {
	if len(buf) < q.slotSize {
		return 0, ErrInvalidLength
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.killed {
		return 0, ErrInvalidID
	}
	if q.capacity == 0 {
		return q.rendezvousReceive(ctx, c, buf)
	}

	w := &waiter{task: c.task, prio: c.prio}
	q.readers.insert(w)
	defer q.detach(&q.readers, w)

	for {
		if q.killed {
			return 0, ErrDeleted
		}
		avail := q.ring.len() > 0
		if avail && q.readers.resolveFor(w, nil) {
			n := q.ring.pop(buf)
			q.spaceAvail.broadcast()
			return n, nil
		}
		if c.noWait {
			return 0, ErrUnavailable
		}
		if c.expired() {
			return 0, ErrTimeout
		}
		var err error
		if avail {
			err = q.yield(ctx, q.msgAvail.wait(), c.deadline)
		} else {
			err = q.park(ctx, q.msgAvail.wait(), c.deadline)
		}
		if err != nil {
			return 0, err
		}
	}
}

func (q *localQueue) rendezvousReceive(ctx context.Context, c *call, buf []byte) (int, error) {
	if wr := q.writers.head(nil); wr != nil {
		n := copy(buf, wr.msg)
		wr.done = true
		q.writers.remove(wr)
		q.spaceAvail.broadcast()
		return n, nil
	}
	if c.noWait {
		return 0, ErrUnavailable
	}

	w := &waiter{task: c.task, prio: c.prio, buf: buf}
	q.readers.insert(w)
	defer q.detach(&q.readers, w)

	for {
		if w.done {
			return w.n, nil
		}
		if q.killed {
			return 0, ErrDeleted
		}
		if c.expired() {
			return 0, ErrTimeout
		}
		if err := q.park(ctx, q.msgAvail.wait(), c.deadline); err != nil && !w.done {
			return 0, err
		}
	}
}

// kill marks the queue deleted, wakes every waiter and blocks until all of
// them have detached. The storage is released afterwards.
func (q *localQueue) kill() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.killed {
		return ErrInvalidID
	}
	q.killed = true
	q.msgAvail.broadcast()
	q.spaceAvail.broadcast()
	for !q.readers.empty() || !q.writers.empty() {
		ch := q.allClear.wait()
		q.mu.Unlock()
		<-ch
		q.mu.Lock()
	}
	q.ring.release()
	q.events.clear()
	return nil
}

func (q *localQueue) depth() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.killed {
		return 0, ErrInvalidID
	}
	return q.ring.len(), nil
}

func (q *localQueue) eventStart(self TaskID, mask uint32, opts EventOption) (eventNote, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.killed {
		return eventNote{}, false, ErrInvalidID
	}
	return q.events.start(self, mask, opts, q.ring.len() > 0)
}

func (q *localQueue) eventStop(self TaskID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.killed {
		return ErrInvalidID
	}
	return q.events.stop(self)
}

func (q *localQueue) stat(st *QueueStats) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.killed {
		return ErrInvalidID
	}
	st.Mode = Local
	st.Capacity = q.capacity
	st.SlotSize = q.slotSize
	st.Depth = q.ring.len()
	st.Order = q.order
	st.ReadersWaiting = q.readers.len()
	st.WritersWaiting = q.writers.len()
	st.LastOp = q.lastOp
	return nil
}
